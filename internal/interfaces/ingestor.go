package interfaces

import (
	"context"

	"stock-analysis-pipeline/internal/types"
)

// Ingestor produces the canonical dataset for one ticker.
type Ingestor interface {
	Fetch(ctx context.Context, ticker string, periodDays int) (*types.CanonicalDataset, error)
}
