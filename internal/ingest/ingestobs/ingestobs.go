package ingestobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"stock-analysis-pipeline/internal/interfaces"
	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/trace"
	"stock-analysis-pipeline/internal/types"
)

// observableIngestor wraps an Ingestor with logging and tracing
type observableIngestor struct {
	ingestor interfaces.Ingestor
	name     string
}

// Compile-time interface check
var _ interfaces.Ingestor = (*observableIngestor)(nil)

// Wrap wraps an ingestor with observability middleware. name identifies the
// source in logs and span attributes.
func Wrap(ingestor interfaces.Ingestor, name string) interfaces.Ingestor {
	return &observableIngestor{ingestor: ingestor, name: name}
}

func (o *observableIngestor) Fetch(ctx context.Context, ticker string, periodDays int) (*types.CanonicalDataset, error) {
	ctx, span := trace.StartSpan(ctx, "ingest.Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("ingest.source", o.name),
		attribute.String("ticker", ticker),
		attribute.Int("period_days", periodDays),
	)

	logger.InfoSkip(ctx, 1, "Fetching dataset", "source", o.name, "ticker", ticker, "period_days", periodDays)
	start := time.Now()

	ds, err := o.ingestor.Fetch(ctx, ticker, periodDays)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Dataset fetch failed", err,
			"source", o.name, "ticker", ticker, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("price_points", len(ds.PriceHistory)),
		attribute.Int("news_articles", len(ds.News)),
	)
	logger.InfoSkip(ctx, 1, "Dataset fetched",
		"source", o.name,
		"ticker", ds.Meta.Ticker,
		"price_points", len(ds.PriceHistory),
		"income_periods", len(ds.Fundamentals.IncomeStatement),
		"news_articles", len(ds.News),
		"data_quality", ds.Meta.DataQuality,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}
