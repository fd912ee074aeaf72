package guardrails

import (
	"encoding/json"
	"fmt"
	"strings"
)

const Redacted = "[REDACTED]"

var sensitiveTerms = []string{"api_key", "secret", "password", "token", "credential"}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveTerms {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// toGeneric converts any JSON-serializable value into maps, slices and
// scalars so filters can walk it without reflection.
func toGeneric(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any, string, float64, bool, nil:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Redact replaces the value of every sensitive key, at any depth, with the
// redaction marker. Non-container values are returned unchanged.
func Redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitive(k) {
				out[k] = Redacted
				continue
			}
			out[k] = Redact(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Redact(val)
		}
		return out
	default:
		return v
	}
}

func redactFilter(v any) (any, error) {
	return Redact(v), nil
}

// OversizeError is the payload substituted for an output over the size cap.
type OversizeError struct {
	Error   string `json:"error"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
}

func (e *Engine) limitOutputSize(v any) (any, error) {
	limit := e.policy.MaxOutputBytes
	if limit <= 0 {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("measure output size: %w", err)
	}
	if len(b) > limit {
		return OversizeError{Error: "Output size exceeded", Size: len(b), MaxSize: limit}, nil
	}
	return v, nil
}

// IsOversize reports whether FilterOutput replaced the payload because it
// exceeded the size cap.
func IsOversize(v any) (OversizeError, bool) {
	o, ok := v.(OversizeError)
	return o, ok
}
