package narrative

import (
	"fmt"
	"strings"

	"stock-analysis-pipeline/internal/interfaces"
)

// Providers
const (
	ProviderNone  = "NONE"
	ProviderRules = "RULES"
)

// New returns the narrator for a configured provider name.
func New(provider string) (interfaces.Narrator, error) {
	switch strings.ToUpper(provider) {
	case ProviderRules:
		return NewRuleNarrator(), nil
	case ProviderNone, "":
		return NewNoopNarrator(), nil
	default:
		return nil, fmt.Errorf("unknown narrative provider: %s", provider)
	}
}
