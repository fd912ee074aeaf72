package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stock-analysis-pipeline/internal/guardrails"
	"stock-analysis-pipeline/internal/interfaces"
	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/metrics"
	"stock-analysis-pipeline/internal/monitor"
	"stock-analysis-pipeline/internal/store"
	"stock-analysis-pipeline/internal/types"
)

const (
	DefaultPeriodDays   = 252
	DefaultStageTimeout = 60 * time.Second

	rateLimitOp = "analyze"
)

type Options struct {
	StageTimeout      time.Duration
	DefaultPeriodDays int
}

func OptionsFromConfig(cfg *store.Config) Options {
	return Options{
		StageTimeout:      cfg.CalculationTimeout(),
		DefaultPeriodDays: cfg.Pipeline.DefaultPeriodDays,
	}
}

// worker computes one calculator group and returns its own result set.
type worker struct {
	name string
	run  func(ctx context.Context, ds *types.CanonicalDataset) (types.MetricGroups, error)
}

func groupWorker(g metrics.Group) worker {
	return worker{name: g.Name, run: func(_ context.Context, ds *types.CanonicalDataset) (types.MetricGroups, error) {
		return g.Compute(ds), nil
	}}
}

type groupResult struct {
	name   string
	groups types.MetricGroups
	start  time.Time
	end    time.Time
	err    error
}

// Orchestrator runs the validate, ingest, compute and present sequence for
// one ticker at a time.
type Orchestrator struct {
	guard    *guardrails.Engine
	monitor  *monitor.Monitor
	ingestor interfaces.Ingestor
	renderer interfaces.Renderer
	narrator interfaces.Narrator

	stageTimeout  time.Duration
	defaultPeriod int
	workers       []worker

	// runs are serialized; the monitor tracks one active run
	runMu sync.Mutex
}

var _ interfaces.Analyzer = (*Orchestrator)(nil)

// New wires an orchestrator. narrator may be nil.
func New(guard *guardrails.Engine, mon *monitor.Monitor, ingestor interfaces.Ingestor, renderer interfaces.Renderer, narrator interfaces.Narrator, opts Options) *Orchestrator {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}
	if opts.DefaultPeriodDays <= 0 {
		opts.DefaultPeriodDays = DefaultPeriodDays
	}
	o := &Orchestrator{
		guard:         guard,
		monitor:       mon,
		ingestor:      ingestor,
		renderer:      renderer,
		narrator:      narrator,
		stageTimeout:  opts.StageTimeout,
		defaultPeriod: opts.DefaultPeriodDays,
	}
	for _, g := range metrics.Groups() {
		o.workers = append(o.workers, groupWorker(g))
	}
	return o
}

// Close aborts any run left open on the monitor.
func (o *Orchestrator) Close(ctx context.Context) {
	o.monitor.Close(ctx)
}

// Analyze runs the full pipeline. It never panics and never returns nil; a
// failed run is reported through the response status.
func (o *Orchestrator) Analyze(ctx context.Context, ticker string, periodDays int) *types.AnalysisResponse {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := time.Now()
	if periodDays == 0 {
		periodDays = o.defaultPeriod
	}
	run := newRunState(guardrails.NormalizeTicker(ticker), periodDays)
	timing := &types.TimingMs{}

	runID, err := o.monitor.StartRun(ctx, run.Ticker)
	if err != nil {
		return o.failed(ctx, run, timing, start, types.NewPipelineError(types.KindGuardrailViolation, types.StateIdle, err))
	}
	run.RunID = runID

	resp, err := o.execute(ctx, run, timing, start)
	if err != nil {
		resp = o.failed(ctx, run, timing, start, err)
		o.endRun(ctx, monitor.StatusError)
		return resp
	}
	o.endRun(ctx, monitor.StatusSuccess)
	return resp
}

func (o *Orchestrator) execute(ctx context.Context, run *types.PipelineRunState, timing *types.TimingMs, start time.Time) (resp *types.AnalysisResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Pipeline panicked", "run_id", run.RunID, "ticker", run.Ticker, "panic", fmt.Sprint(r))
			resp = nil
			err = types.NewPipelineError(types.KindCalculationError, run.State, fmt.Errorf("unexpected panic: %v", r))
		}
	}()

	// Validating
	if err := o.step(ctx, run, types.StateValidating, "period_days", run.PeriodDays); err != nil {
		return nil, err
	}
	t := time.Now()
	err = o.validate(ctx, run)
	timing.Validation = time.Since(t).Milliseconds()
	if err != nil {
		return nil, err
	}

	// Ingesting
	if err := o.step(ctx, run, types.StateIngesting); err != nil {
		return nil, err
	}
	t = time.Now()
	err = o.ingest(ctx, run)
	o.stageDone(ctx, run, stageIngestion, t, &timing.Ingestion)
	if err != nil {
		return nil, err
	}

	// ComputingParallel
	if err := o.step(ctx, run, types.StateComputingParallel, "groups", len(o.workers)); err != nil {
		return nil, err
	}
	t = time.Now()
	groups, err := o.computeParallel(ctx, run)
	o.stageDone(ctx, run, stageCalculation, t, &timing.Calculation)
	if err != nil {
		return nil, err
	}
	o.merge(ctx, run, groups)

	// Presenting
	if err := o.step(ctx, run, types.StatePresenting); err != nil {
		return nil, err
	}
	t = time.Now()
	err = o.present(ctx, run)
	o.stageDone(ctx, run, stagePresentation, t, &timing.Presentation)
	if err != nil {
		return nil, err
	}

	timing.Total = time.Since(start).Milliseconds()
	resp = &types.AnalysisResponse{
		Status:       "success",
		Ticker:       run.Ticker,
		RunID:        run.RunID,
		Meta:         &run.Dataset.Meta,
		MetricGroups: run.Groups,
		OverallRisk:  run.OverallRisk,
		Valuation:    run.Valuation,
		Report:       run.Report,
		TimingMs:     timing,
	}
	resp, err = o.filter(ctx, resp)
	if err != nil {
		return nil, types.NewPipelineError(types.KindGuardrailViolation, types.StatePresenting, err)
	}

	if err := o.step(ctx, run, types.StateCompleted, "total_ms", timing.Total); err != nil {
		return nil, err
	}
	return resp, nil
}

func (o *Orchestrator) step(ctx context.Context, run *types.PipelineRunState, to types.PipelineState, fields ...any) error {
	if err := advance(ctx, run, to, fields...); err != nil {
		return types.NewPipelineError(types.KindCalculationError, run.State, err)
	}
	return nil
}

func (o *Orchestrator) stageDone(ctx context.Context, run *types.PipelineRunState, stage int, start time.Time, out *int64) {
	d := time.Since(start)
	run.StageTiming[stage] = d
	*out = d.Milliseconds()
	o.monitor.RecordStageTiming(ctx, stage, d)
}

func (o *Orchestrator) validate(ctx context.Context, run *types.PipelineRunState) error {
	fail := func(err error) error {
		return types.NewPipelineError(types.KindGuardrailViolation, types.StateValidating, err)
	}

	if ok, reason := o.guard.ValidateTicker(run.Ticker); !ok {
		logger.Guardrail(ctx, "ticker", run.Ticker, reason)
		return fail(errors.New(reason))
	}

	period := o.guard.ValidatePeriod(run.PeriodDays)
	if period != run.PeriodDays {
		logger.Guardrail(ctx, "period", run.Ticker, "period adjusted to policy bounds",
			"requested", run.PeriodDays, "applied", period)
		run.PeriodDays = period
	}

	if err := o.guard.ValidateInput(ctx, map[string]any{"ticker": run.Ticker, "period_days": period}); err != nil {
		return fail(err)
	}
	if err := o.guard.CheckRateLimit(ctx, rateLimitOp); err != nil {
		return fail(err)
	}
	return nil
}

func (o *Orchestrator) ingest(ctx context.Context, run *types.PipelineRunState) error {
	var ds *types.CanonicalDataset
	err := o.monitor.TrackOperation(ctx, "ingest", func(ctx context.Context) error {
		var err error
		ds, err = o.ingestor.Fetch(ctx, run.Ticker, run.PeriodDays)
		if err == nil && ds == nil {
			err = errors.New("ingestor returned no dataset")
		}
		return err
	})
	if err != nil {
		return types.NewPipelineError(types.KindIngestionFailure, types.StateIngesting,
			fmt.Errorf("fetch %s: %w", run.Ticker, err))
	}

	ds.Meta.Ticker = strings.ToUpper(strings.TrimSpace(ds.Meta.Ticker))
	if ds.Meta.Ticker == "" {
		ds.Meta.Ticker = run.Ticker
	}
	run.Dataset = ds
	logger.Info(ctx, "Dataset ingested", "run_id", run.RunID, "ticker", run.Ticker,
		"price_points", len(ds.PriceHistory), "news", len(ds.News), "data_quality", ds.Meta.DataQuality)
	return nil
}

// computeParallel fans the dataset out to every calculator group and merges
// the returned result sets. The barrier is bounded by the stage timeout;
// groups still running at expiry are abandoned.
func (o *Orchestrator) computeParallel(ctx context.Context, run *types.PipelineRunState) (types.MetricGroups, error) {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	ds := run.Dataset
	results := make(chan groupResult, len(o.workers))
	var g errgroup.Group
	for _, w := range o.workers {
		w := w
		g.Go(func() error {
			res := runWorker(ctx, w, ds)
			results <- res
			if res.err != nil {
				return fmt.Errorf("%s group: %w", w.name, res.err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var groupErr error
	select {
	case groupErr = <-done:
	case <-ctx.Done():
		err := fmt.Errorf("parallel stage did not complete within %s: %w", o.stageTimeout, ctx.Err())
		logger.ErrorWithErr(ctx, "Calculation stage timed out", err, "run_id", run.RunID, "ticker", run.Ticker)
		o.recordGroups(ctx, results)
		return nil, types.NewPipelineError(types.KindStageTimeout, types.StateComputingParallel, err)
	}
	close(results)

	merged := make(types.MetricGroups)
	for res := range results {
		o.monitor.RecordOperation(ctx, "calculate_"+res.name, res.start, res.end, res.err)
		for cat, grp := range res.groups {
			if _, dup := merged[cat]; dup && groupErr == nil {
				groupErr = fmt.Errorf("category %s written by more than one group", cat)
			}
			merged[cat] = grp
		}
	}
	if groupErr != nil {
		return nil, types.NewPipelineError(types.KindCalculationError, types.StateComputingParallel, groupErr)
	}
	return merged, nil
}

// recordGroups drains whatever groups finished before a timeout.
func (o *Orchestrator) recordGroups(ctx context.Context, results <-chan groupResult) {
	for {
		select {
		case res := <-results:
			o.monitor.RecordOperation(ctx, "calculate_"+res.name, res.start, res.end, res.err)
		default:
			return
		}
	}
}

func runWorker(ctx context.Context, w worker, ds *types.CanonicalDataset) (res groupResult) {
	timer := logger.StartOperation(ctx, "calculate."+w.name, "group", w.name)
	res = groupResult{name: w.name, start: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			res.groups = nil
			res.err = fmt.Errorf("panic: %v", r)
		}
		res.end = time.Now()
		if res.err != nil {
			timer.EndWithError(res.err)
		} else {
			timer.End("categories", len(res.groups))
		}
	}()
	res.groups, res.err = w.run(timer.GetContext(), ds)
	return res
}

func (o *Orchestrator) merge(ctx context.Context, run *types.PipelineRunState, groups types.MetricGroups) {
	run.Groups = groups

	calculated, successful := 0, 0
	debug := logger.IsDebugEnabled()
	for cat, g := range groups {
		if debug {
			for key, r := range g {
				logger.Metric(ctx, string(cat), key, string(r.Status), r.Value, r.NullReason)
			}
		}
		ok, inapplicable, failed := g.Counts()
		calculated += ok + inapplicable + failed
		successful += ok + inapplicable
	}
	o.monitor.AddMetricCounts(calculated, successful)

	risk := metrics.AssessOverallRisk(groups[types.CategoryMarketRisk], groups[types.CategoryFinancialRisk])
	run.OverallRisk = &risk
	run.Valuation = metrics.ValuationSummary(groups[types.CategoryValuation])

	logger.Info(ctx, "Metric groups merged", "run_id", run.RunID, "ticker", run.Ticker,
		"categories", len(groups), "metrics", calculated, "successful", successful,
		"risk_level", string(risk.Level), "risk_flags", risk.FlagCount)
}

func (o *Orchestrator) present(ctx context.Context, run *types.PipelineRunState) error {
	if o.narrator != nil {
		text, err := o.narrator.Narrate(ctx, run.Dataset.Meta, run.Groups)
		if err != nil {
			logger.Warn(ctx, "Narrative unavailable", "run_id", run.RunID, "error", err)
		} else {
			run.Narrative = text
		}
	}

	err := o.monitor.TrackOperation(ctx, "present", func(ctx context.Context) error {
		payload, err := o.renderer.Render(ctx, run)
		if err == nil && payload == nil {
			err = errors.New("renderer returned no payload")
		}
		run.Report = payload
		return err
	})
	if err != nil {
		run.Report = nil
		// metrics stay recoverable from the log
		logger.ErrorWithErr(ctx, "Presentation failed", err,
			"run_id", run.RunID, "ticker", run.Ticker, "metric_groups", run.Groups, "overall_risk", run.OverallRisk)
		return types.NewPipelineError(types.KindPresentationFailure, types.StatePresenting, err)
	}
	if run.Narrative != "" && run.Report.Narrative == "" {
		run.Report.Narrative = run.Narrative
	}
	return nil
}

// filter passes the response through the guardrail output filters and
// decodes the filtered form back into a response.
func (o *Orchestrator) filter(ctx context.Context, resp *types.AnalysisResponse) (*types.AnalysisResponse, error) {
	filtered := o.guard.FilterOutput(ctx, resp)
	if over, ok := guardrails.IsOversize(filtered); ok {
		return nil, fmt.Errorf("%s: %d bytes exceeds %d", over.Error, over.Size, over.MaxSize)
	}
	b, err := json.Marshal(filtered)
	if err != nil {
		logger.Warn(ctx, "Filtered output could not be re-encoded", "error", err)
		return resp, nil
	}
	var out types.AnalysisResponse
	if err := json.Unmarshal(b, &out); err != nil {
		logger.Warn(ctx, "Filtered output could not be decoded", "error", err)
		return resp, nil
	}
	return &out, nil
}

func (o *Orchestrator) failed(ctx context.Context, run *types.PipelineRunState, timing *types.TimingMs, start time.Time, err error) *types.AnalysisResponse {
	kind := types.KindOf(err)
	if !run.State.Terminal() {
		_ = advance(ctx, run, types.StateFailed, "error_kind", string(kind))
	}
	stage := run.FailedStage
	timing.Total = time.Since(start).Milliseconds()

	logger.ErrorWithErr(ctx, "Pipeline run failed", err,
		"run_id", run.RunID, "ticker", run.Ticker, "failed_stage", string(stage), "error_kind", string(kind))

	return &types.AnalysisResponse{
		Status:       "error",
		Ticker:       run.Ticker,
		RunID:        run.RunID,
		ErrorMessage: err.Error(),
		ErrorKind:    kind,
		FailedStage:  stage,
		TimingMs:     timing,
	}
}

func (o *Orchestrator) endRun(ctx context.Context, status string) {
	if _, err := o.monitor.EndRun(ctx, status); err != nil {
		logger.Warn(ctx, "Monitor run could not be closed", "error", err)
	}
}
