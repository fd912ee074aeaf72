package guardrails

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"stock-analysis-pipeline/internal/logger"
)

const maxNumericMagnitude = 1e15

// Validator inspects an input payload and returns a non-nil error to reject it.
type Validator struct {
	Name  string
	Check func(input map[string]any) error
}

// Filter transforms an output payload. Filters receive the generic JSON
// form of the payload (maps, slices and scalars).
type Filter struct {
	Name  string
	Apply func(output any) (any, error)
}

// Engine applies validators, filters and rate limits at the pipeline
// boundaries. One engine is shared by every run of a process.
type Engine struct {
	policy compiledPolicy

	mu     sync.Mutex
	counts map[string]int

	validators []Validator
	filters    []Filter
}

// New builds an engine with the default validators and filters registered.
func New(p Policy) (*Engine, error) {
	cp, err := compile(p)
	if err != nil {
		return nil, err
	}
	e := &Engine{policy: cp, counts: make(map[string]int)}
	e.validators = []Validator{
		{Name: "ticker_format", Check: e.checkTickerInput},
		{Name: "numeric_bounds", Check: checkNumericBounds},
	}
	e.filters = []Filter{
		{Name: "redact_sensitive", Apply: redactFilter},
		{Name: "limit_output_size", Apply: e.limitOutputSize},
	}
	return e, nil
}

func (e *Engine) Policy() Policy { return e.policy.Policy }

func (e *Engine) AddValidator(v Validator) { e.validators = append(e.validators, v) }

func (e *Engine) AddFilter(f Filter) { e.filters = append(e.filters, f) }

func (e *Engine) checkTickerInput(input map[string]any) error {
	t, ok := input["ticker"].(string)
	if !ok || t == "" {
		return nil
	}
	if valid, reason := e.ValidateTicker(t); !valid {
		return errors.New(reason)
	}
	return nil
}

func checkNumericBounds(input map[string]any) error {
	for k, v := range input {
		var f float64
		switch n := v.(type) {
		case int:
			f = float64(n)
		case int64:
			f = float64(n)
		case float64:
			f = n
		default:
			continue
		}
		if math.Abs(f) > maxNumericMagnitude {
			return fmt.Errorf("numeric value out of bounds: %s=%g", k, f)
		}
	}
	return nil
}

// ValidateInput runs the registered validators in order and stops at the
// first rejection. A validator that panics rejects the input.
func (e *Engine) ValidateInput(ctx context.Context, input map[string]any) error {
	for _, v := range e.validators {
		if err := runValidator(v, input); err != nil {
			logger.Guardrail(ctx, v.Name, fmt.Sprint(input["ticker"]), err.Error())
			return err
		}
	}
	return nil
}

func runValidator(v Validator, input map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validation error in %s: %v", v.Name, r)
		}
	}()
	if err := v.Check(input); err != nil {
		return fmt.Errorf("validation failed: %s: %w", v.Name, err)
	}
	return nil
}

// FilterOutput runs every filter over the generic form of payload. A filter
// that fails or panics is skipped with a warning and its input passes
// through unchanged.
func (e *Engine) FilterOutput(ctx context.Context, payload any) any {
	out, err := toGeneric(payload)
	if err != nil {
		logger.Warn(ctx, "Output filter skipped, payload is not serializable", "error", err)
		return payload
	}
	for _, f := range e.filters {
		next, err := runFilter(f, out)
		if err != nil {
			logger.Warn(ctx, "Output filter failed, passing through", "filter", f.Name, "error", err)
			continue
		}
		out = next
	}
	return out
}

func runFilter(f Filter, in any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("filter %s panicked: %v", f.Name, r)
		}
	}()
	return f.Apply(in)
}
