package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"stock-analysis-pipeline/internal/types"
)

// StaticSource serves datasets held in memory. Every Fetch returns an
// independent copy so runs never share mutable state.
type StaticSource struct {
	mu    sync.RWMutex
	data  map[string][]byte
	calls int
}

func NewStaticSource() *StaticSource {
	return &StaticSource{data: make(map[string][]byte)}
}

// Put stores ds under its meta ticker.
func (s *StaticSource) Put(ds *types.CanonicalDataset) error {
	b, err := json.Marshal(ds)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[strings.ToUpper(ds.Meta.Ticker)] = b
	s.mu.Unlock()
	return nil
}

// LoadStaticDir preloads every <TICKER>.json dataset under dir. Files that do
// not decode are rejected up front.
func LoadStaticDir(dir string) (*StaticSource, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	s := NewStaticSource()
	for _, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		ticker := strings.ToUpper(strings.TrimSuffix(filepath.Base(file), ".json"))
		if _, err := Decode(b, ticker, 0); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		s.data[ticker] = b
	}
	return s, nil
}

func (s *StaticSource) Fetch(ctx context.Context, ticker string, periodDays int) (*types.CanonicalDataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls++
	b, ok := s.data[strings.ToUpper(ticker)]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTickerNotFound, ticker)
	}
	return Decode(b, ticker, periodDays)
}

// Calls returns how many times Fetch was invoked.
func (s *StaticSource) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}
