package narrative

import (
	"context"

	"stock-analysis-pipeline/internal/types"
)

// NoopNarrator is used when no narrative provider is configured.
type NoopNarrator struct{}

func NewNoopNarrator() *NoopNarrator {
	return &NoopNarrator{}
}

// Narrate always returns an empty narrative.
func (NoopNarrator) Narrate(context.Context, types.Meta, types.MetricGroups) (string, error) {
	return "", nil
}
