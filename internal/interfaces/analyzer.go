package interfaces

import (
	"context"

	"stock-analysis-pipeline/internal/types"
)

type Analyzer interface {
	// Analyze runs the full pipeline. Failures are reported in the response,
	// never as a panic.
	Analyze(ctx context.Context, ticker string, periodDays int) *types.AnalysisResponse
}
