package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/types"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusAborted = "aborted"
)

// OperationRecord is one timed unit of work inside a run.
type OperationRecord struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
	DurationMs float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// RunRecord is the persisted audit record of one pipeline run.
type RunRecord struct {
	RunID             string             `json:"run_id"`
	Ticker            string             `json:"ticker"`
	Status            string             `json:"status"`
	Start             time.Time          `json:"start_time"`
	End               time.Time          `json:"end_time"`
	DurationMs        float64            `json:"total_duration_ms"`
	StageMs           map[string]float64 `json:"stage_duration_ms"`
	Operations        []OperationRecord  `json:"operations"`
	OperationSuccess  int                `json:"operation_success_count"`
	OperationErrors   int                `json:"operation_error_count"`
	MetricsCalculated int                `json:"metrics_calculated"`
	MetricsSuccessful int                `json:"metrics_successful"`
}

// Summary aggregates the run history.
type Summary struct {
	TotalRuns              int     `json:"total_runs"`
	SuccessRate            float64 `json:"success_rate"`
	AvgDurationMs          float64 `json:"avg_duration_ms"`
	MinDurationMs          float64 `json:"min_duration_ms"`
	MaxDurationMs          float64 `json:"max_duration_ms"`
	TotalMetricsCalculated int     `json:"total_metrics_calculated"`
}

// OperationStats aggregates every recorded execution of one operation name.
type OperationStats struct {
	Name          string  `json:"name"`
	Executions    int     `json:"executions"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	MinDurationMs float64 `json:"min_duration_ms"`
	MaxDurationMs float64 `json:"max_duration_ms"`
}

// Monitor records run telemetry. At most one run is active per monitor;
// callers that need overlapping runs use separate monitors.
type Monitor struct {
	store *auditStore

	mu      sync.Mutex
	current *RunRecord
	history []RunRecord
}

// New returns a monitor persisting under dir. An empty dir disables
// persistence.
func New(dir string) *Monitor {
	return &Monitor{store: newAuditStore(dir)}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// StartRun opens a run record and returns its ID.
func (m *Monitor) StartRun(ctx context.Context, ticker string) (string, error) {
	m.mu.Lock()
	if m.current != nil {
		active := m.current.RunID
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", types.ErrRunInProgress, active)
	}
	id := uuid.NewString()
	m.current = &RunRecord{
		RunID:   id,
		Ticker:  ticker,
		Status:  "pending",
		Start:   time.Now(),
		StageMs: make(map[string]float64),
	}
	m.mu.Unlock()

	logger.Info(ctx, "Run started", "run_id", id, "ticker", ticker)
	m.store.event(ctx, "pipeline_start", map[string]any{"run_id": id, "ticker": ticker})
	return id, nil
}

// TrackOperation times op and records its outcome on the active run. The
// error of op is returned unchanged. A panic is recorded and re-raised.
func (m *Monitor) TrackOperation(ctx context.Context, name string, op func(ctx context.Context) error) (err error) {
	rec := OperationRecord{Name: name, Start: time.Now()}
	defer func() {
		r := recover()
		rec.End = time.Now()
		rec.DurationMs = ms(rec.End.Sub(rec.Start))
		rec.Status = StatusSuccess
		switch {
		case r != nil:
			rec.Status, rec.Error = StatusError, fmt.Sprintf("panic: %v", r)
		case err != nil:
			rec.Status, rec.Error = StatusError, err.Error()
		}
		m.record(ctx, rec)
		if r != nil {
			panic(r)
		}
	}()
	return op(ctx)
}

// RecordOperation records an operation the caller timed itself, for work
// that runs on goroutines the monitor does not wrap.
func (m *Monitor) RecordOperation(ctx context.Context, name string, start, end time.Time, err error) {
	rec := OperationRecord{
		Name:       name,
		Status:     StatusSuccess,
		Start:      start,
		End:        end,
		DurationMs: ms(end.Sub(start)),
	}
	if err != nil {
		rec.Status, rec.Error = StatusError, err.Error()
	}
	m.record(ctx, rec)
}

func (m *Monitor) record(ctx context.Context, rec OperationRecord) {
	m.mu.Lock()
	runID := ""
	if m.current != nil {
		m.current.Operations = append(m.current.Operations, rec)
		runID = m.current.RunID
	}
	m.mu.Unlock()

	logger.Debug(ctx, "Operation tracked", "run_id", runID, "operation", rec.Name,
		"status", rec.Status, "duration_ms", rec.DurationMs)
	m.store.event(ctx, "operation_executed", map[string]any{
		"run_id":      runID,
		"operation":   rec.Name,
		"status":      rec.Status,
		"duration_ms": rec.DurationMs,
		"error":       rec.Error,
	})
}

// RecordStageTiming stores the duration of stage 1 (ingestion), 2 (parallel
// calculation) or 3 (presentation) on the active run.
func (m *Monitor) RecordStageTiming(ctx context.Context, stage int, d time.Duration) {
	m.mu.Lock()
	if m.current != nil {
		m.current.StageMs[fmt.Sprintf("stage_%d", stage)] = ms(d)
	}
	m.mu.Unlock()
	logger.Info(ctx, "Stage completed", "stage", stage, "duration_ms", d.Milliseconds())
}

// AddMetricCounts adds calculator tallies to the active run.
func (m *Monitor) AddMetricCounts(calculated, successful int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.MetricsCalculated += calculated
		m.current.MetricsSuccessful += successful
	}
}

// EndRun finalizes and persists the active run.
func (m *Monitor) EndRun(ctx context.Context, status string) (RunRecord, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return RunRecord{}, types.ErrNoActiveRun
	}
	run := *m.current
	m.current = nil
	run.End = time.Now()
	run.DurationMs = ms(run.End.Sub(run.Start))
	run.Status = status
	for _, op := range run.Operations {
		if op.Status == StatusSuccess {
			run.OperationSuccess++
		} else {
			run.OperationErrors++
		}
	}
	m.history = append(m.history, run)
	m.mu.Unlock()

	rate := 0.0
	if run.MetricsCalculated > 0 {
		rate = float64(run.MetricsSuccessful) / float64(run.MetricsCalculated) * 100
	}
	logger.Info(ctx, "Run completed", "run_id", run.RunID, "ticker", run.Ticker, "status", status,
		"duration_ms", run.DurationMs, "metrics_successful", run.MetricsSuccessful,
		"metrics_calculated", run.MetricsCalculated)
	m.store.event(ctx, "pipeline_end", map[string]any{
		"run_id":               run.RunID,
		"status":               status,
		"duration_ms":          run.DurationMs,
		"metrics_success_rate": rate,
	})
	m.store.saveRun(ctx, run)
	return run, nil
}

// Close aborts an active run, if any.
func (m *Monitor) Close(ctx context.Context) {
	if _, err := m.EndRun(ctx, StatusAborted); err == nil {
		logger.Warn(ctx, "Monitor closed with an active run")
	}
}

// Active returns the ID of the active run.
func (m *Monitor) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", false
	}
	return m.current.RunID, true
}

func (m *Monitor) History() []RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RunRecord(nil), m.history...)
}

func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{TotalRuns: len(m.history)}
	if s.TotalRuns == 0 {
		return s
	}
	var ok int
	var total float64
	s.MinDurationMs = m.history[0].DurationMs
	for _, r := range m.history {
		if r.Status == StatusSuccess {
			ok++
		}
		total += r.DurationMs
		s.MinDurationMs = min(s.MinDurationMs, r.DurationMs)
		s.MaxDurationMs = max(s.MaxDurationMs, r.DurationMs)
		s.TotalMetricsCalculated += r.MetricsCalculated
	}
	s.SuccessRate = float64(ok) / float64(s.TotalRuns) * 100
	s.AvgDurationMs = total / float64(s.TotalRuns)
	return s
}

// OperationPerformance aggregates the history per operation name, sorted by
// name.
func (m *Monitor) OperationPerformance() []OperationStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName := map[string]*OperationStats{}
	okByName := map[string]int{}
	for _, r := range m.history {
		for _, op := range r.Operations {
			st, found := byName[op.Name]
			if !found {
				st = &OperationStats{Name: op.Name, MinDurationMs: op.DurationMs}
				byName[op.Name] = st
			}
			st.Executions++
			st.AvgDurationMs += op.DurationMs
			st.MinDurationMs = min(st.MinDurationMs, op.DurationMs)
			st.MaxDurationMs = max(st.MaxDurationMs, op.DurationMs)
			if op.Status == StatusSuccess {
				okByName[op.Name]++
			}
		}
	}
	out := make([]OperationStats, 0, len(byName))
	for name, st := range byName {
		st.AvgDurationMs /= float64(st.Executions)
		st.SuccessRate = float64(okByName[name]) / float64(st.Executions) * 100
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Operation returns the performance of one operation name.
func (m *Monitor) Operation(name string) OperationStats {
	for _, st := range m.OperationPerformance() {
		if st.Name == name {
			return st
		}
	}
	return OperationStats{Name: name}
}

// CompressOlder gzips audit files older than retentionDays.
func (m *Monitor) CompressOlder(ctx context.Context, retentionDays int) error {
	return m.store.compressOlder(ctx, retentionDays)
}
