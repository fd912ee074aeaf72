package pipeline

import (
	"context"
	"errors"
	"fmt"

	"stock-analysis-pipeline/internal/guardrails"
	"stock-analysis-pipeline/internal/metrics"
	"stock-analysis-pipeline/internal/types"
)

// Tool names
const (
	ToolAnalyzeStock    = "analyze_stock"
	ToolCalculateMetric = "calculate_metric"
	ToolListMetrics     = "list_metrics"
)

// RegisterTools exposes the orchestrator operations on a guarded tool
// registry.
func (o *Orchestrator) RegisterTools(reg *guardrails.ToolRegistry) {
	reg.Register(guardrails.Tool{
		Name:        ToolAnalyzeStock,
		Description: "Run the full analysis pipeline for a ticker",
		Run: func(ctx context.Context, in map[string]any) (any, error) {
			ticker, err := stringArg(in, "ticker")
			if err != nil {
				return nil, err
			}
			resp := o.Analyze(ctx, ticker, intArg(in, "period_days"))
			if resp.Failed() {
				return nil, errors.New(resp.ErrorMessage)
			}
			return resp, nil
		},
	})
	reg.Register(guardrails.Tool{
		Name:        ToolCalculateMetric,
		Description: "Compute a single metric for a ticker",
		Run: func(ctx context.Context, in map[string]any) (any, error) {
			ticker, err := stringArg(in, "ticker")
			if err != nil {
				return nil, err
			}
			key, err := stringArg(in, "metric")
			if err != nil {
				return nil, err
			}
			if _, _, ok := metrics.Lookup(key); !ok {
				return nil, fmt.Errorf("unknown metric %q", key)
			}
			period := o.guard.ValidatePeriod(intArg(in, "period_days"))
			ds, err := o.ingestor.Fetch(ctx, guardrails.NormalizeTicker(ticker), period)
			if err != nil {
				return nil, err
			}
			res, _ := metrics.Compute(key, ds)
			return res, nil
		},
	})
	reg.Register(guardrails.Tool{
		Name:        ToolListMetrics,
		Description: "List metric keys per category",
		Run: func(context.Context, map[string]any) (any, error) {
			out := make(map[types.Category][]string)
			for _, r := range metrics.All() {
				out[r.Category] = r.Keys()
			}
			return out, nil
		},
	})
}

func stringArg(in map[string]any, key string) (string, error) {
	s, ok := in[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

// intArg accepts both Go ints and JSON numbers; missing means zero.
func intArg(in map[string]any, key string) int {
	switch v := in[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
