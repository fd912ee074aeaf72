package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis-pipeline/internal/guardrails"
	"stock-analysis-pipeline/internal/ingest"
	"stock-analysis-pipeline/internal/interfaces"
	"stock-analysis-pipeline/internal/metrics"
	"stock-analysis-pipeline/internal/monitor"
	"stock-analysis-pipeline/internal/narrative"
	"stock-analysis-pipeline/internal/report"
	"stock-analysis-pipeline/internal/types"
)

func f(v float64) *float64 { return &v }

func appleDataset() *types.CanonicalDataset {
	prices := make([]types.PricePoint, 60)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range prices {
		c := 100 + float64(i%7) - float64(i%3)*0.5
		prices[i] = types.PricePoint{Date: day.AddDate(0, 0, i).Format("2006-01-02"), Close: f(c)}
	}
	return &types.CanonicalDataset{
		Meta:         types.Meta{Ticker: "AAPL", CompanyName: "Apple Inc.", Sector: "Technology", Industry: "Consumer Electronics"},
		PriceHistory: prices,
		Fundamentals: types.Fundamentals{
			IncomeStatement: types.Statement{
				"2024-09-30": {"Total Revenue": 110000, "Net Income": 22000, "Operating Income": 27500},
				"2023-09-30": {"Total Revenue": 100000, "Net Income": 20000, "Operating Income": 25000},
			},
			BalanceSheet: types.Statement{
				"2024-09-30": {"Total Assets": 300000, "Stockholders Equity": 60000, "Current Assets": 130000, "Current Liabilities": 120000},
			},
		},
		Info: types.Values{
			"gross_margins":     0.40,
			"operating_margins": 0.25,
			"current_price":     105,
			"market_cap":        2.9e12,
			"trailing_pe":       29.5,
			"beta":              1.2,
		},
	}
}

type fixture struct {
	orch *Orchestrator
	src  *ingest.StaticSource
	mon  *monitor.Monitor
}

func newFixture(t *testing.T, mutate func(*guardrails.Policy), renderer interfaces.Renderer) fixture {
	t.Helper()
	p := guardrails.DefaultPolicy()
	if mutate != nil {
		mutate(&p)
	}
	guard, err := guardrails.New(p)
	require.NoError(t, err)

	src := ingest.NewStaticSource()
	require.NoError(t, src.Put(appleDataset()))
	if renderer == nil {
		renderer = report.NewReporter(t.TempDir())
	}
	mon := monitor.New(t.TempDir())
	orch := New(guard, mon, src, renderer, narrative.NewRuleNarrator(), Options{StageTimeout: 5 * time.Second})
	return fixture{orch: orch, src: src, mon: mon}
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, *types.PipelineRunState) (*types.PresentationPayload, error) {
	return nil, errors.New("template missing")
}

type failingNarrator struct{}

func (failingNarrator) Narrate(context.Context, types.Meta, types.MetricGroups) (string, error) {
	return "", errors.New("provider down")
}

func TestAnalyzeHappyPath(t *testing.T) {
	fx := newFixture(t, nil, nil)
	resp := fx.orch.Analyze(context.Background(), "aapl", 0)

	require.Equal(t, "success", resp.Status, resp.ErrorMessage)
	assert.Equal(t, "AAPL", resp.Ticker)
	assert.NotEmpty(t, resp.RunID)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, "Apple Inc.", resp.Meta.CompanyName)
	assert.Equal(t, DefaultPeriodDays, resp.Meta.PeriodDays)

	assert.Len(t, resp.MetricGroups, 9)
	growth, ok := resp.MetricGroups.Value(types.CategoryGrowth, "revenue_growth")
	require.True(t, ok)
	assert.Equal(t, 10.0, growth)
	gross, _ := resp.MetricGroups.Metric(types.CategoryProfitability, "gross_margin")
	assert.Equal(t, types.SourcePrecomputed, gross.Source)
	assert.Equal(t, 40.0, *gross.Value)

	require.NotNil(t, resp.OverallRisk)
	assert.NotEmpty(t, resp.Valuation)
	require.NotNil(t, resp.Report)
	assert.Equal(t, "Stock Analysis Report: Apple Inc. (AAPL)", resp.Report.Title)
	assert.Contains(t, resp.Report.Narrative, "Apple Inc. (AAPL) operates in the Technology sector.")
	assert.Contains(t, resp.Report.Markdown, "## Narrative")
	require.NotNil(t, resp.TimingMs)
	assert.GreaterOrEqual(t, resp.TimingMs.Total, resp.TimingMs.Calculation)

	hist := fx.mon.History()
	require.Len(t, hist, 1)
	run := hist[0]
	assert.Equal(t, monitor.StatusSuccess, run.Status)
	assert.Equal(t, resp.RunID, run.RunID)
	assert.Equal(t, 44, run.MetricsCalculated)
	assert.Contains(t, run.StageMs, "stage_1")
	assert.Contains(t, run.StageMs, "stage_2")
	assert.Contains(t, run.StageMs, "stage_3")

	var names []string
	for _, op := range run.Operations {
		names = append(names, op.Name)
	}
	assert.Contains(t, names, "ingest")
	assert.Contains(t, names, "calculate_ratio")
	assert.Contains(t, names, "calculate_valuation")
	assert.Contains(t, names, "calculate_risk")
	assert.Contains(t, names, "present")
	assert.Equal(t, 0, run.OperationErrors)
}

func TestInvalidTickerNeverReachesIngestion(t *testing.T) {
	fx := newFixture(t, nil, nil)
	resp := fx.orch.Analyze(context.Background(), "aapl1", 30)

	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "AAPL1", resp.Ticker)
	assert.Equal(t, types.KindGuardrailViolation, resp.ErrorKind)
	assert.Equal(t, types.StateValidating, resp.FailedStage)
	assert.Contains(t, resp.ErrorMessage, "invalid ticker format")
	assert.Equal(t, 0, fx.src.Calls())

	hist := fx.mon.History()
	require.Len(t, hist, 1)
	assert.Equal(t, monitor.StatusError, hist[0].Status)
}

func TestBlockedTicker(t *testing.T) {
	fx := newFixture(t, func(p *guardrails.Policy) { p.BlockedTickers = []string{"AAPL"} }, nil)
	resp := fx.orch.Analyze(context.Background(), "AAPL", 30)
	assert.Equal(t, types.KindGuardrailViolation, resp.ErrorKind)
	assert.Contains(t, resp.ErrorMessage, "blocked")
	assert.Equal(t, 0, fx.src.Calls())
}

func TestRateLimitRejectsRun(t *testing.T) {
	fx := newFixture(t, func(p *guardrails.Policy) { p.MaxCallsPerMinute = 1 }, nil)
	ctx := context.Background()

	require.Equal(t, "success", fx.orch.Analyze(ctx, "AAPL", 30).Status)
	resp := fx.orch.Analyze(ctx, "AAPL", 30)
	assert.Equal(t, types.KindGuardrailViolation, resp.ErrorKind)
	assert.Contains(t, resp.ErrorMessage, "rate limit exceeded")
	assert.Equal(t, 1, fx.src.Calls())
}

func TestPeriodIsClamped(t *testing.T) {
	fx := newFixture(t, nil, nil)
	resp := fx.orch.Analyze(context.Background(), "AAPL", 5000)
	require.Equal(t, "success", resp.Status, resp.ErrorMessage)
	assert.Equal(t, 365, resp.Meta.PeriodDays)
}

func TestIngestionFailure(t *testing.T) {
	fx := newFixture(t, nil, nil)
	resp := fx.orch.Analyze(context.Background(), "MSFT", 30)

	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, types.KindIngestionFailure, resp.ErrorKind)
	assert.Equal(t, types.StateIngesting, resp.FailedStage)
	assert.Contains(t, resp.ErrorMessage, "ticker not found")
	assert.Nil(t, resp.MetricGroups)
}

func TestPresentationFailure(t *testing.T) {
	fx := newFixture(t, nil, failingRenderer{})
	resp := fx.orch.Analyze(context.Background(), "AAPL", 30)

	assert.Equal(t, types.KindPresentationFailure, resp.ErrorKind)
	assert.Equal(t, types.StatePresenting, resp.FailedStage)
	assert.Contains(t, resp.ErrorMessage, "template missing")

	run := fx.mon.History()[0]
	assert.Equal(t, monitor.StatusError, run.Status)
	assert.Equal(t, 44, run.MetricsCalculated, "metrics were computed before presentation failed")
}

func TestNarratorFailureIsIgnored(t *testing.T) {
	fx := newFixture(t, nil, nil)
	fx.orch.narrator = failingNarrator{}
	resp := fx.orch.Analyze(context.Background(), "AAPL", 30)
	require.Equal(t, "success", resp.Status)
	assert.Empty(t, resp.Report.Narrative)
}

func TestStageTimeout(t *testing.T) {
	fx := newFixture(t, nil, nil)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	fx.orch.stageTimeout = 50 * time.Millisecond
	fx.orch.workers = []worker{
		groupWorker(metrics.RatioGroup),
		{name: "stuck", run: func(context.Context, *types.CanonicalDataset) (types.MetricGroups, error) {
			<-release
			return types.MetricGroups{}, nil
		}},
	}

	start := time.Now()
	resp := fx.orch.Analyze(context.Background(), "AAPL", 30)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, types.KindStageTimeout, resp.ErrorKind)
	assert.Equal(t, types.StateComputingParallel, resp.FailedStage)
}

func TestGroupPanicFailsRun(t *testing.T) {
	fx := newFixture(t, nil, nil)
	fx.orch.workers = []worker{
		groupWorker(metrics.RatioGroup),
		{name: "broken", run: func(context.Context, *types.CanonicalDataset) (types.MetricGroups, error) {
			panic("nil map")
		}},
	}

	resp := fx.orch.Analyze(context.Background(), "AAPL", 30)
	assert.Equal(t, types.KindCalculationError, resp.ErrorKind)
	assert.Equal(t, types.StateComputingParallel, resp.FailedStage)
	assert.Contains(t, resp.ErrorMessage, "broken group")

	var broken *monitor.OperationRecord
	for _, op := range fx.mon.History()[0].Operations {
		if op.Name == "calculate_broken" {
			op := op
			broken = &op
		}
	}
	require.NotNil(t, broken)
	assert.Equal(t, "panic: nil map", broken.Error)
}

func TestOverlappingGroupsRejected(t *testing.T) {
	fx := newFixture(t, nil, nil)
	fx.orch.workers = []worker{groupWorker(metrics.ValuationGroup), groupWorker(metrics.ValuationGroup)}
	resp := fx.orch.Analyze(context.Background(), "AAPL", 30)
	assert.Equal(t, types.KindCalculationError, resp.ErrorKind)
	assert.Contains(t, resp.ErrorMessage, "more than one group")
}

func TestFanInIsOrderIndependent(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ds := appleDataset()

	want := make(types.MetricGroups)
	for _, g := range metrics.Groups() {
		for cat, grp := range g.Compute(ds) {
			want[cat] = grp
		}
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		var ws []worker
		for _, g := range metrics.Groups() {
			g := g
			delay := time.Duration(rng.Intn(5)) * time.Millisecond
			ws = append(ws, worker{name: g.Name, run: func(_ context.Context, ds *types.CanonicalDataset) (types.MetricGroups, error) {
				time.Sleep(delay)
				return g.Compute(ds), nil
			}})
		}
		fx.orch.workers = ws

		run := newRunState("AAPL", 30)
		run.Dataset = ds
		got, err := fx.orch.computeParallel(context.Background(), run)
		require.NoError(t, err)
		require.Equal(t, want, got, fmt.Sprintf("trial %d", trial))
	}

	seen := map[string]types.Category{}
	for cat, grp := range want {
		for key := range grp {
			prev, dup := seen[key]
			assert.False(t, dup, "%s in both %s and %s", key, prev, cat)
			seen[key] = cat
		}
	}
	assert.Len(t, seen, 44)
}

func TestOversizeOutputRejected(t *testing.T) {
	fx := newFixture(t, func(p *guardrails.Policy) { p.MaxOutputBytes = 2048 }, nil)
	resp := fx.orch.Analyze(context.Background(), "AAPL", 30)
	assert.Equal(t, types.KindGuardrailViolation, resp.ErrorKind)
	assert.Equal(t, types.StatePresenting, resp.FailedStage)
	assert.Contains(t, resp.ErrorMessage, "Output size exceeded")
}

func TestRunsAreIndependent(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()
	first := fx.orch.Analyze(ctx, "AAPL", 30)
	second := fx.orch.Analyze(ctx, "AAPL", 30)
	require.Equal(t, "success", first.Status)
	require.Equal(t, "success", second.Status)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.MetricGroups, second.MetricGroups)
	assert.Equal(t, 2, fx.mon.Summary().TotalRuns)
}

func TestRunRecordPersisted(t *testing.T) {
	dir := t.TempDir()
	fx := newFixture(t, nil, nil)
	fx.orch.monitor = monitor.New(dir)

	resp := fx.orch.Analyze(context.Background(), "AAPL", 30)
	require.Equal(t, "success", resp.Status)
	_, err := os.Stat(filepath.Join(dir, "runs", resp.RunID+".json"))
	assert.NoError(t, err)
}

func TestAdvance(t *testing.T) {
	ctx := context.Background()
	run := newRunState("AAPL", 30)

	require.Error(t, advance(ctx, run, types.StateIngesting))
	require.NoError(t, advance(ctx, run, types.StateValidating))
	require.NoError(t, advance(ctx, run, types.StateFailed))
	assert.Equal(t, types.StateValidating, run.FailedStage)
	assert.Error(t, advance(ctx, run, types.StateFailed), "terminal")
}

func TestTools(t *testing.T) {
	fx := newFixture(t, nil, nil)
	guard, err := guardrails.New(guardrails.DefaultPolicy())
	require.NoError(t, err)
	reg := guardrails.NewToolRegistry(guard)
	fx.orch.RegisterTools(reg)
	ctx := context.Background()

	assert.Equal(t, []string{ToolAnalyzeStock, ToolCalculateMetric, ToolListMetrics}, reg.Names())

	res := reg.Execute(ctx, ToolCalculateMetric, map[string]any{"ticker": "AAPL", "metric": "gross_margin"})
	require.Equal(t, "success", res.Status, res.Error)
	out := res.Output.(map[string]any)
	assert.Equal(t, 40.0, out["value"])
	assert.Equal(t, types.SourcePrecomputed, out["source"])

	res = reg.Execute(ctx, ToolCalculateMetric, map[string]any{"ticker": "AAPL", "metric": "magic"})
	assert.Contains(t, res.Error, "unknown metric")

	res = reg.Execute(ctx, ToolAnalyzeStock, map[string]any{"ticker": "AAPL", "period_days": 30.0})
	require.Equal(t, "success", res.Status, res.Error)
	assert.Equal(t, "AAPL", res.Output.(map[string]any)["ticker"])

	res = reg.Execute(ctx, ToolAnalyzeStock, map[string]any{"ticker": "MSFT"})
	assert.Equal(t, "error", res.Status)
	assert.Contains(t, res.Error, "ticker not found")

	res = reg.Execute(ctx, ToolListMetrics, nil)
	require.Equal(t, "success", res.Status)
	assert.Len(t, res.Output.(map[string]any), 9)

	assert.Equal(t, 3, reg.Stats().Success)
}
