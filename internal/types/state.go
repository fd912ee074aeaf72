package types

import "time"

type PipelineState string

const (
	StateIdle              PipelineState = "idle"
	StateValidating        PipelineState = "validating"
	StateIngesting         PipelineState = "ingesting"
	StateComputingParallel PipelineState = "computing_parallel"
	StatePresenting        PipelineState = "presenting"
	StateCompleted         PipelineState = "completed"
	StateFailed            PipelineState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s PipelineState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type RiskLevel string

const (
	RiskModerate RiskLevel = "moderate"
	RiskElevated RiskLevel = "elevated"
	RiskHigh     RiskLevel = "high"
)

type OverallRiskAssessment struct {
	Flags     []string  `json:"flags"`
	Level     RiskLevel `json:"level"`
	Label     string    `json:"label"`
	FlagCount int       `json:"flag_count"`
}

// PresentationPayload is what the rendering collaborator returns.
type PresentationPayload struct {
	Title     string         `json:"title"`
	Sections  map[string]any `json:"sections"`
	Markdown  string         `json:"markdown,omitempty"`
	HTML      string         `json:"html,omitempty"`
	Text      string         `json:"text,omitempty"`
	Narrative string         `json:"narrative,omitempty"`
}

// PipelineRunState is owned by exactly one orchestrator run. Groups are
// written once per category by the orchestrator after fan-in.
type PipelineRunState struct {
	RunID       string                 `json:"run_id"`
	Ticker      string                 `json:"ticker"`
	PeriodDays  int                    `json:"period_days"`
	State       PipelineState          `json:"state"`
	Dataset     *CanonicalDataset      `json:"-"`
	Groups      MetricGroups           `json:"metric_groups,omitempty"`
	OverallRisk *OverallRiskAssessment `json:"overall_risk,omitempty"`
	Valuation   string                 `json:"valuation_summary,omitempty"`
	Narrative   string                 `json:"narrative,omitempty"`
	Report      *PresentationPayload   `json:"report,omitempty"`
	StageTiming map[int]time.Duration  `json:"-"`
	FailedStage PipelineState          `json:"failed_stage,omitempty"`
}

// TimingMs is the per-stage timing block in responses.
type TimingMs struct {
	Validation   int64 `json:"validation"`
	Ingestion    int64 `json:"ingestion"`
	Calculation  int64 `json:"calculation"`
	Presentation int64 `json:"presentation"`
	Total        int64 `json:"total"`
}

// AnalysisResponse is the invocation-surface result for both outcomes.
type AnalysisResponse struct {
	Status       string                 `json:"status"`
	Ticker       string                 `json:"ticker"`
	RunID        string                 `json:"run_id,omitempty"`
	Meta         *Meta                  `json:"meta,omitempty"`
	MetricGroups MetricGroups           `json:"metric_groups,omitempty"`
	OverallRisk  *OverallRiskAssessment `json:"overall_risk,omitempty"`
	Valuation    string                 `json:"valuation_summary,omitempty"`
	Report       *PresentationPayload   `json:"report,omitempty"`
	TimingMs     *TimingMs              `json:"timing_ms,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	ErrorKind    ErrorKind              `json:"error_kind,omitempty"`
	FailedStage  PipelineState          `json:"failed_stage,omitempty"`
}

func (r *AnalysisResponse) Failed() bool { return r.Status == "error" }
