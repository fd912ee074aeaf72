package interfaces

import (
	"context"

	"stock-analysis-pipeline/internal/types"
)

// Renderer turns a computed run into its presentation payload.
type Renderer interface {
	Render(ctx context.Context, run *types.PipelineRunState) (*types.PresentationPayload, error)
}

// Narrator produces an optional free-text summary appended to the report.
type Narrator interface {
	Narrate(ctx context.Context, meta types.Meta, groups types.MetricGroups) (string, error)
}
