package pipeline

import (
	"context"
	"fmt"
	"time"

	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/types"
)

// Stage numbers used for monitor timings.
const (
	stageIngestion    = 1
	stageCalculation  = 2
	stagePresentation = 3
)

var transitions = map[types.PipelineState]types.PipelineState{
	types.StateIdle:              types.StateValidating,
	types.StateValidating:        types.StateIngesting,
	types.StateIngesting:         types.StateComputingParallel,
	types.StateComputingParallel: types.StatePresenting,
	types.StatePresenting:        types.StateCompleted,
}

func newRunState(ticker string, periodDays int) *types.PipelineRunState {
	return &types.PipelineRunState{
		Ticker:      ticker,
		PeriodDays:  periodDays,
		State:       types.StateIdle,
		StageTiming: make(map[int]time.Duration),
	}
}

// advance moves the run to the next state. Failed is reachable from any
// non-terminal state; everything else follows the linear sequence.
func advance(ctx context.Context, run *types.PipelineRunState, to types.PipelineState, fields ...any) error {
	if run.State.Terminal() {
		return fmt.Errorf("run is already %s", run.State)
	}
	if to != types.StateFailed && transitions[run.State] != to {
		return fmt.Errorf("illegal transition %s -> %s", run.State, to)
	}
	from := run.State
	if to == types.StateFailed {
		run.FailedStage = from
	}
	run.State = to
	logger.Stage(ctx, run.RunID, run.Ticker, string(to), append([]any{"from", string(from)}, fields...)...)
	return nil
}
