package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"stock-analysis-pipeline/internal/types"
)

const DefaultRequestsPerSecond = 5

// FileSource reads canonical datasets exported by an upstream fetcher, one
// <TICKER>.json file per ticker. Reads are throttled so a shared data volume
// is not hammered by tight retry loops.
type FileSource struct {
	dir     string
	limiter *rate.Limiter
}

// NewFileSource creates a file source. requestsPerSecond <= 0 uses the
// default rate.
func NewFileSource(dir string, requestsPerSecond float64, burst int) *FileSource {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	if burst < 1 {
		burst = 1
	}
	return &FileSource{
		dir:     dir,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (s *FileSource) path(ticker string) string {
	return filepath.Join(s.dir, strings.ToUpper(ticker)+".json")
}

func (s *FileSource) Fetch(ctx context.Context, ticker string, periodDays int) (*types.CanonicalDataset, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(ticker))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrTickerNotFound, ticker)
		}
		return nil, fmt.Errorf("read dataset for %s: %w", ticker, err)
	}
	return Decode(b, ticker, periodDays)
}

// Decode parses a canonical dataset document and normalizes it for ticker.
func Decode(b []byte, ticker string, periodDays int) (*types.CanonicalDataset, error) {
	var ds types.CanonicalDataset
	if err := json.Unmarshal(b, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset for %s: %w", ticker, err)
	}
	trimHistory(&ds, periodDays)
	Normalize(&ds, ticker, periodDays)
	return &ds, nil
}
