package monitor

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stock-analysis-pipeline/internal/logger"
)

const eventsFile = "events.jsonl"

// auditStore writes run records and the event stream. Every write failure is
// logged and dropped so telemetry never changes a run outcome.
type auditStore struct {
	dir string
	mu  sync.Mutex
}

type event struct {
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

func newAuditStore(dir string) *auditStore {
	return &auditStore{dir: dir}
}

func (s *auditStore) runPath(runID string) string {
	return filepath.Join(s.dir, "runs", runID+".json")
}

func (s *auditStore) eventsPath() string {
	return filepath.Join(s.dir, eventsFile)
}

func (s *auditStore) event(ctx context.Context, typ string, data map[string]any) {
	if s.dir == "" {
		return
	}
	if err := s.appendEvent(typ, data); err != nil {
		logger.Warn(ctx, "Failed to append audit event", "event_type", typ, "error", err)
	}
}

func (s *auditStore) appendEvent(typ string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.eventsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(event{Timestamp: time.Now().Format(time.RFC3339Nano), Type: typ, Data: data})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

func (s *auditStore) saveRun(ctx context.Context, run RunRecord) {
	if s.dir == "" {
		return
	}
	if err := s.writeRun(run); err != nil {
		logger.Warn(ctx, "Failed to persist run record", "run_id", run.RunID, "error", err)
	}
}

func (s *auditStore) writeRun(run RunRecord) error {
	p := s.runPath(run.RunID)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o644)
}

func isAuditFile(p string) bool {
	return strings.HasSuffix(p, ".json") || strings.HasSuffix(p, ".jsonl")
}

// compressOlder gzips audit files whose modification time is before the
// retention cutoff and removes the originals. An existing archive gets the
// file appended as a further gzip member, so the event stream can be rotated
// any number of times into the same events.jsonl.gz.
func (s *auditStore) compressOlder(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 || s.dir == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(s.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isAuditFile(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := gzipFile(p, p+".gz"); err != nil {
			logger.Warn(ctx, "Failed to compress audit file", "path", p, "error", err)
			return nil
		}
		compressed++
		return nil
	})
	if compressed > 0 {
		logger.Info(ctx, "Compressed audit files", "count", compressed, "retention_days", retentionDays)
	}
	return err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	st, err := out.Stat()
	if err != nil {
		_ = out.Close()
		return err
	}
	// rollback drops a partially written member and keeps earlier ones.
	rollback := func(cause error) error {
		_ = out.Truncate(st.Size())
		_ = out.Close()
		return cause
	}

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		return rollback(err)
	}
	if err := gw.Close(); err != nil {
		return rollback(err)
	}
	if err := out.Sync(); err != nil {
		return rollback(err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
