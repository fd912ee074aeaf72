package pipelineobs

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"stock-analysis-pipeline/internal/interfaces"
	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/trace"
	"stock-analysis-pipeline/internal/types"
)

// observableAnalyzer wraps an Analyzer with logging and tracing
type observableAnalyzer struct {
	analyzer interfaces.Analyzer
}

// Compile-time interface check
var _ interfaces.Analyzer = (*observableAnalyzer)(nil)

// Wrap wraps an analyzer with observability middleware
func Wrap(analyzer interfaces.Analyzer) interfaces.Analyzer {
	return &observableAnalyzer{analyzer: analyzer}
}

func (oa *observableAnalyzer) Analyze(ctx context.Context, ticker string, periodDays int) *types.AnalysisResponse {
	ctx, span := trace.StartSpan(ctx, "pipeline.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", ticker), attribute.Int("period_days", periodDays))

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting analysis", "ticker", ticker, "period_days", periodDays)

	resp := oa.analyzer.Analyze(ctx, ticker, periodDays)
	if resp.Failed() {
		span.SetAttributes(attribute.String("error_kind", string(resp.ErrorKind)))
		logger.ErrorWithErrSkip(ctx, 1, "Analysis failed", errors.New(resp.ErrorMessage),
			"ticker", resp.Ticker,
			"run_id", resp.RunID,
			"failed_stage", string(resp.FailedStage),
			"error_kind", string(resp.ErrorKind),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp
	}

	fields := []any{
		"ticker", resp.Ticker,
		"run_id", resp.RunID,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if resp.OverallRisk != nil {
		fields = append(fields, "risk_level", string(resp.OverallRisk.Level), "risk_flags", resp.OverallRisk.FlagCount)
	}
	span.SetAttributes(attribute.String("run_id", resp.RunID))
	logger.InfoSkip(ctx, 1, "Analysis completed", fields...)
	return resp
}
