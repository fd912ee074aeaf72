package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindGuardrailViolation      ErrorKind = "guardrail_violation"
	KindIngestionFailure        ErrorKind = "ingestion_failure"
	KindCalculationError        ErrorKind = "calculation_error"
	KindCalculationInapplicable ErrorKind = "calculation_inapplicable"
	KindStageTimeout            ErrorKind = "stage_timeout"
	KindPresentationFailure     ErrorKind = "presentation_failure"
)

var (
	ErrTickerNotFound    = errors.New("ticker not found")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrRunInProgress     = errors.New("a run is already active on this monitor")
	ErrNoActiveRun       = errors.New("no active run")
)

// PipelineError is a run-fatal failure tagged with the stage it happened in.
type PipelineError struct {
	Kind  ErrorKind
	Stage PipelineState
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func NewPipelineError(kind ErrorKind, stage PipelineState, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

// KindOf extracts the error kind, or "" when err is not a PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
