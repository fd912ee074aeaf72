package ingest

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"stock-analysis-pipeline/internal/interfaces"
	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/types"
)

// Cache is a file-backed TTL cache of fetched datasets.
type Cache struct {
	dir string
	ttl time.Duration
	mu  sync.RWMutex
}

type cacheEntry struct {
	Key       string          `json:"key"`
	Dataset   json.RawMessage `json:"dataset"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewCache(dir string, ttl time.Duration) *Cache {
	if dir == "" {
		dir = filepath.Join(".cache", "datasets")
	}
	return &Cache{dir: dir, ttl: ttl}
}

func (c *Cache) file(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%x.json", md5.Sum([]byte(key))))
}

// Get returns the cached document for key unless it has expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p := c.file(key)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.ttl {
		_ = os.Remove(p)
		return nil, false
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	var e cacheEntry
	if err := json.Unmarshal(b, &e); err != nil || e.Key != key {
		return nil, false
	}
	return e.Dataset, true
}

func (c *Cache) Set(key string, dataset []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(cacheEntry{Key: key, Dataset: dataset, Timestamp: time.Now()})
	if err != nil {
		return err
	}
	return os.WriteFile(c.file(key), b, 0o644)
}

// CleanupExpired removes expired entries.
func (c *Cache) CleanupExpired() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > c.ttl {
			_ = os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
	return nil
}

func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(c.dir)
}

// CachedSource serves datasets from the cache and falls back to the wrapped
// ingestor on a miss. Cache write failures are logged and ignored.
type CachedSource struct {
	next  interfaces.Ingestor
	cache *Cache
}

var _ interfaces.Ingestor = (*CachedSource)(nil)

func NewCachedSource(next interfaces.Ingestor, cache *Cache) *CachedSource {
	return &CachedSource{next: next, cache: cache}
}

func cacheKey(ticker string, periodDays int) string {
	return fmt.Sprintf("dataset:%s:%d", ticker, periodDays)
}

func (s *CachedSource) Fetch(ctx context.Context, ticker string, periodDays int) (*types.CanonicalDataset, error) {
	key := cacheKey(ticker, periodDays)
	if b, ok := s.cache.Get(key); ok {
		ds, err := Decode(b, ticker, periodDays)
		if err == nil {
			logger.Debug(ctx, "Dataset served from cache", "ticker", ticker, "period_days", periodDays)
			return ds, nil
		}
		logger.Warn(ctx, "Discarding unreadable cache entry", "ticker", ticker, "error", err)
	}

	ds, err := s.next.Fetch(ctx, ticker, periodDays)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(ds); err == nil {
		if err := s.cache.Set(key, b); err != nil {
			logger.Warn(ctx, "Failed to cache dataset", "ticker", ticker, "error", err)
		}
	}
	return ds, nil
}
