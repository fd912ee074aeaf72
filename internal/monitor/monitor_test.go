package monitor

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis-pipeline/internal/types"
)

func readEvents(t *testing.T, dir string) []event {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, eventsFile))
	require.NoError(t, err)
	defer f.Close()
	var out []event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRunLifecyclePersists(t *testing.T) {
	dir := t.TempDir()
	m := New(dir)
	ctx := context.Background()

	id, err := m.StartRun(ctx, "AAPL")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, m.TrackOperation(ctx, "ingest", func(context.Context) error { return nil }))
	boom := errors.New("boom")
	err = m.TrackOperation(ctx, "ratio", func(context.Context) error { return boom })
	assert.Same(t, boom, err)

	m.RecordStageTiming(ctx, 1, 150*time.Millisecond)
	m.AddMetricCounts(44, 30)

	run, err := m.EndRun(ctx, StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, 1, run.OperationSuccess)
	assert.Equal(t, 1, run.OperationErrors)
	assert.Equal(t, 150.0, run.StageMs["stage_1"])

	b, err := os.ReadFile(filepath.Join(dir, "runs", id+".json"))
	require.NoError(t, err)
	var saved RunRecord
	require.NoError(t, json.Unmarshal(b, &saved))
	assert.Equal(t, "AAPL", saved.Ticker)
	assert.Len(t, saved.Operations, 2)
	assert.Equal(t, "boom", saved.Operations[1].Error)
	assert.Equal(t, 44, saved.MetricsCalculated)

	events := readEvents(t, dir)
	require.Len(t, events, 4)
	assert.Equal(t, "pipeline_start", events[0].Type)
	assert.Equal(t, "operation_executed", events[1].Type)
	assert.Equal(t, "operation_executed", events[2].Type)
	assert.Equal(t, "pipeline_end", events[3].Type)
	assert.Equal(t, id, events[3].Data["run_id"])
}

func TestSingleActiveRun(t *testing.T) {
	m := New("")
	ctx := context.Background()

	_, err := m.StartRun(ctx, "AAPL")
	require.NoError(t, err)
	_, err = m.StartRun(ctx, "MSFT")
	assert.True(t, errors.Is(err, types.ErrRunInProgress))

	_, err = m.EndRun(ctx, StatusSuccess)
	require.NoError(t, err)
	_, err = m.EndRun(ctx, StatusSuccess)
	assert.True(t, errors.Is(err, types.ErrNoActiveRun))

	_, err = m.StartRun(ctx, "MSFT")
	assert.NoError(t, err)
}

func TestTrackOperationRepanics(t *testing.T) {
	m := New("")
	ctx := context.Background()
	_, err := m.StartRun(ctx, "AAPL")
	require.NoError(t, err)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = m.TrackOperation(ctx, "risk", func(context.Context) error { panic("kaboom") })
	})

	run, err := m.EndRun(ctx, StatusError)
	require.NoError(t, err)
	require.Len(t, run.Operations, 1)
	assert.Equal(t, StatusError, run.Operations[0].Status)
	assert.Equal(t, "panic: kaboom", run.Operations[0].Error)
}

func TestPersistenceFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// A regular file where the audit directory should be makes every write fail.
	m := New(filepath.Join(blocker, "audit"))
	ctx := context.Background()
	_, err := m.StartRun(ctx, "AAPL")
	require.NoError(t, err)
	require.NoError(t, m.TrackOperation(ctx, "ingest", func(context.Context) error { return nil }))
	_, err = m.EndRun(ctx, StatusSuccess)
	assert.NoError(t, err)
	assert.Equal(t, 1, m.Summary().TotalRuns)
}

func TestSummaryAndOperationPerformance(t *testing.T) {
	m := New("")
	ctx := context.Background()
	assert.Equal(t, Summary{}, m.Summary())

	for i, status := range []string{StatusSuccess, StatusError, StatusSuccess, StatusSuccess} {
		_, err := m.StartRun(ctx, "AAPL")
		require.NoError(t, err)
		_ = m.TrackOperation(ctx, "ingest", func(context.Context) error {
			if i == 1 {
				return errors.New("down")
			}
			return nil
		})
		_ = m.TrackOperation(ctx, "present", func(context.Context) error { return nil })
		m.AddMetricCounts(10, 8)
		_, err = m.EndRun(ctx, status)
		require.NoError(t, err)
	}

	s := m.Summary()
	assert.Equal(t, 4, s.TotalRuns)
	assert.Equal(t, 75.0, s.SuccessRate)
	assert.Equal(t, 40, s.TotalMetricsCalculated)
	assert.LessOrEqual(t, s.MinDurationMs, s.AvgDurationMs)
	assert.LessOrEqual(t, s.AvgDurationMs, s.MaxDurationMs)

	perf := m.OperationPerformance()
	require.Len(t, perf, 2)
	assert.Equal(t, "ingest", perf[0].Name)
	assert.Equal(t, 4, perf[0].Executions)
	assert.Equal(t, 75.0, perf[0].SuccessRate)
	assert.Equal(t, 100.0, m.Operation("present").SuccessRate)
	assert.Equal(t, 0, m.Operation("unknown").Executions)
}

func TestCloseAbortsActiveRun(t *testing.T) {
	m := New("")
	ctx := context.Background()
	_, err := m.StartRun(ctx, "AAPL")
	require.NoError(t, err)

	m.Close(ctx)
	_, active := m.Active()
	assert.False(t, active)
	require.Len(t, m.History(), 1)
	assert.Equal(t, StatusAborted, m.History()[0].Status)
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	m := New(dir)
	ctx := context.Background()
	id, err := m.StartRun(ctx, "AAPL")
	require.NoError(t, err)
	_, err = m.EndRun(ctx, StatusSuccess)
	require.NoError(t, err)

	runFile := filepath.Join(dir, "runs", id+".json")
	old := time.Now().AddDate(0, 0, -40)
	require.NoError(t, os.Chtimes(runFile, old, old))

	require.NoError(t, m.CompressOlder(ctx, 30))

	_, err = os.Stat(runFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, eventsFile))
	assert.NoError(t, err, "recent files stay uncompressed")

	f, err := os.Open(runFile + ".gz")
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	var saved RunRecord
	require.NoError(t, json.NewDecoder(gr).Decode(&saved))
	assert.Equal(t, id, saved.RunID)
}

func TestCompressOlderKeepsEveryEventRotation(t *testing.T) {
	dir := t.TempDir()
	m := New(dir)
	ctx := context.Background()
	events := filepath.Join(dir, eventsFile)
	old := time.Now().AddDate(0, 0, -40)

	for _, ticker := range []string{"AAPL", "MSFT"} {
		_, err := m.StartRun(ctx, ticker)
		require.NoError(t, err)
		_, err = m.EndRun(ctx, StatusSuccess)
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(events, old, old))
		require.NoError(t, m.CompressOlder(ctx, 30))
		_, err = os.Stat(events)
		require.True(t, os.IsNotExist(err))
	}

	f, err := os.Open(events + ".gz")
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)

	var started []string
	sc := bufio.NewScanner(gr)
	for sc.Scan() {
		var ev struct {
			Type string         `json:"event_type"`
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		if ev.Type == "pipeline_start" {
			started = append(started, ev.Data["ticker"].(string))
		}
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"AAPL", "MSFT"}, started)
}

func TestRecordOperation(t *testing.T) {
	m := New("")
	ctx := context.Background()
	_, err := m.StartRun(ctx, "AAPL")
	require.NoError(t, err)

	start := time.Now()
	m.RecordOperation(ctx, "calculate_ratio", start, start.Add(20*time.Millisecond), nil)
	m.RecordOperation(ctx, "calculate_risk", start, start.Add(5*time.Millisecond), errors.New("group failed"))

	run, err := m.EndRun(ctx, StatusError)
	require.NoError(t, err)
	require.Len(t, run.Operations, 2)
	assert.Equal(t, 20.0, run.Operations[0].DurationMs)
	assert.Equal(t, "group failed", run.Operations[1].Error)
	assert.Equal(t, 1, run.OperationSuccess)
	assert.Equal(t, 1, run.OperationErrors)
}
