package guardrails

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"stock-analysis-pipeline/internal/logger"
)

var ErrToolNotFound = errors.New("tool not found")

// Tool is a named operation executed behind the guardrails.
type Tool struct {
	Name        string
	Description string
	Risk        RiskLevel
	Run         func(ctx context.Context, input map[string]any) (any, error)
}

// Execution is one entry of the tool execution history.
type Execution struct {
	Tool       string    `json:"tool_name"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	DurationMs int64     `json:"duration_ms"`
	Status     string    `json:"status"`
	Risk       RiskLevel `json:"risk_level"`
	Error      string    `json:"error,omitempty"`
}

// ToolResult is the outcome of Execute. Output is already filtered.
type ToolResult struct {
	Status string `json:"status"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ExecutionStats struct {
	Total       int            `json:"total_executions"`
	Success     int            `json:"success_count"`
	Errors      int            `json:"error_count"`
	SuccessRate float64        `json:"success_rate"`
	ByTool      map[string]int `json:"executions_by_tool"`
}

// ToolRegistry executes registered tools through the engine's validators,
// rate limit and output filters and keeps an execution history.
type ToolRegistry struct {
	engine *Engine

	mu      sync.Mutex
	tools   map[string]Tool
	history []Execution
}

func NewToolRegistry(e *Engine) *ToolRegistry {
	return &ToolRegistry{engine: e, tools: make(map[string]Tool)}
}

// Register adds or replaces a tool. A tool without an explicit risk level is
// classified with AssessRisk.
func (r *ToolRegistry) Register(t Tool) {
	if t.Risk == "" {
		t.Risk = AssessRisk(t.Name)
	}
	r.mu.Lock()
	r.tools[t.Name] = t
	r.mu.Unlock()
}

// Names lists the registered tools in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *ToolRegistry) Tool(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// Execute runs a tool. Rejected input and exhausted rate limits are not
// recorded in the history; tool failures are.
func (r *ToolRegistry) Execute(ctx context.Context, name string, input map[string]any) ToolResult {
	t, ok := r.Tool(name)
	if !ok {
		return ToolResult{Status: "error", Error: fmt.Sprintf("%v: %s", ErrToolNotFound, name)}
	}
	if err := r.engine.ValidateInput(ctx, input); err != nil {
		return ToolResult{Status: "error", Error: fmt.Sprintf("Input validation failed: %v", err)}
	}
	if err := r.engine.CheckRateLimit(ctx, name); err != nil {
		return ToolResult{Status: "error", Error: err.Error()}
	}

	start := time.Now()
	out, err := runTool(ctx, t, input)
	rec := Execution{
		Tool:       name,
		StartTime:  start,
		EndTime:    time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
		Status:     "success",
		Risk:       t.Risk,
	}
	if err != nil {
		rec.Status, rec.Error = "error", err.Error()
	}
	r.mu.Lock()
	r.history = append(r.history, rec)
	r.mu.Unlock()

	if err != nil {
		logger.ErrorWithErr(ctx, "Tool execution failed", err, "tool", name, "risk_level", string(t.Risk))
		return ToolResult{Status: "error", Error: err.Error()}
	}
	return ToolResult{Status: "success", Output: r.engine.FilterOutput(ctx, out)}
}

func runTool(ctx context.Context, t Tool, input map[string]any) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.Name, rec)
		}
	}()
	return t.Run(ctx, input)
}

func (r *ToolRegistry) History() []Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Execution(nil), r.history...)
}

func (r *ToolRegistry) ClearHistory() {
	r.mu.Lock()
	r.history = nil
	r.mu.Unlock()
}

func (r *ToolRegistry) Stats() ExecutionStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := ExecutionStats{Total: len(r.history), ByTool: make(map[string]int)}
	for _, e := range r.history {
		if e.Status == "success" {
			s.Success++
		}
		s.ByTool[e.Tool]++
	}
	s.Errors = s.Total - s.Success
	if s.Total > 0 {
		s.SuccessRate = float64(s.Success) / float64(s.Total) * 100
	}
	return s
}

// ExportLog writes the execution history as indented JSON.
func (r *ToolRegistry) ExportLog(path string) error {
	b, err := json.MarshalIndent(r.History(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
