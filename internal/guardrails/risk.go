package guardrails

import "strings"

// RiskLevel classifies an operation for auditing. It is never enforced.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var mutatingOperations = map[string]bool{"delete": true, "modify": true, "execute": true}

// AssessRisk applies static rules: mutating operations are high risk,
// anything touching an external API is medium, everything else is low.
func AssessRisk(operation string) RiskLevel {
	op := strings.ToLower(operation)
	switch {
	case mutatingOperations[op]:
		return RiskHigh
	case strings.Contains(op, "external_api"):
		return RiskMedium
	default:
		return RiskLow
	}
}
