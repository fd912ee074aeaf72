package guardrails

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis-pipeline/internal/types"
)

func newEngine(t *testing.T, mutate func(*Policy)) *Engine {
	t.Helper()
	p := DefaultPolicy()
	if mutate != nil {
		mutate(&p)
	}
	e, err := New(p)
	require.NoError(t, err)
	return e
}

func TestValidateTicker(t *testing.T) {
	e := newEngine(t, func(p *Policy) { p.BlockedTickers = []string{"scam"} })

	cases := []struct {
		in    string
		valid bool
	}{
		{"AAPL", true},
		{"aapl", true},
		{" msft ", true},
		{"A", true},
		{"aapl1", false},
		{"GOOGLE", false},
		{"BRK.B", false},
		{"", false},
		{"SCAM", false},
	}
	for _, tc := range cases {
		ok, reason := e.ValidateTicker(tc.in)
		assert.Equal(t, tc.valid, ok, tc.in)
		if tc.valid {
			assert.Empty(t, reason, tc.in)
		} else {
			assert.NotEmpty(t, reason, tc.in)
		}
	}

	_, reason := e.ValidateTicker("scam")
	assert.Contains(t, reason, "blocked")
}

func TestCustomTickerPattern(t *testing.T) {
	e := newEngine(t, func(p *Policy) { p.TickerPattern = `^[A-Z]{1,5}(\.[A-Z])?$` })
	ok, _ := e.ValidateTicker("brk.b")
	assert.True(t, ok)

	_, err := New(Policy{TickerPattern: "^[A-Z"})
	assert.Error(t, err)
}

func TestValidatePeriod(t *testing.T) {
	e := newEngine(t, nil)
	assert.Equal(t, 30, e.ValidatePeriod(0))
	assert.Equal(t, 30, e.ValidatePeriod(-5))
	assert.Equal(t, 1, e.ValidatePeriod(1))
	assert.Equal(t, 252, e.ValidatePeriod(252))
	assert.Equal(t, 365, e.ValidatePeriod(365))
	assert.Equal(t, 365, e.ValidatePeriod(366))
	assert.Equal(t, 365, e.ValidatePeriod(10000))
}

func TestRateLimitHasNoAutomaticExpiry(t *testing.T) {
	e := newEngine(t, func(p *Policy) { p.MaxCallsPerMinute = 3 })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, e.CheckRateLimit(ctx, "analyze"))
	}
	err := e.CheckRateLimit(ctx, "analyze")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrRateLimitExceeded))
	assert.Equal(t, 3, e.CallCount("analyze"))

	require.NoError(t, e.CheckRateLimit(ctx, "other"))

	e.ResetRateLimits()
	assert.NoError(t, e.CheckRateLimit(ctx, "analyze"))
}

func TestRateLimitDisabled(t *testing.T) {
	e := newEngine(t, func(p *Policy) { p.MaxCallsPerMinute = 1; p.EnableRateLimiting = false })
	for i := 0; i < 5; i++ {
		assert.NoError(t, e.CheckRateLimit(context.Background(), "analyze"))
	}
}

func TestResetLoop(t *testing.T) {
	e := newEngine(t, func(p *Policy) { p.MaxCallsPerMinute = 1 })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.CheckRateLimit(ctx, "analyze"))
	require.Error(t, e.CheckRateLimit(ctx, "analyze"))

	e.StartResetLoop(ctx, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return e.CallCount("analyze") == 0 }, time.Second, 5*time.Millisecond)
}

func TestValidateInputShortCircuits(t *testing.T) {
	e := newEngine(t, nil)
	called := false
	e.AddValidator(Validator{Name: "spy", Check: func(map[string]any) error { called = true; return nil }})

	err := e.ValidateInput(context.Background(), map[string]any{"ticker": "aapl1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker_format")
	assert.False(t, called)

	err = e.ValidateInput(context.Background(), map[string]any{"ticker": "AAPL", "shares": 2e15})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numeric_bounds")

	require.NoError(t, e.ValidateInput(context.Background(), map[string]any{"ticker": "AAPL", "period_days": 252}))
	assert.True(t, called)
}

func TestValidatorPanicRejects(t *testing.T) {
	e := newEngine(t, nil)
	e.AddValidator(Validator{Name: "boom", Check: func(map[string]any) error { panic("bad") }})
	err := e.ValidateInput(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFilterOutputRedactsNestedKeys(t *testing.T) {
	e := newEngine(t, nil)
	payload := map[string]any{
		"ticker":  "AAPL",
		"API_KEY": "abc",
		"nested": map[string]any{
			"db_password": "hunter2",
			"value":       1.5,
			"items":       []any{map[string]any{"access_token": "t", "ok": true}},
		},
	}

	out, ok := e.FilterOutput(context.Background(), payload).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AAPL", out["ticker"])
	assert.Equal(t, Redacted, out["API_KEY"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, Redacted, nested["db_password"])
	assert.Equal(t, 1.5, nested["value"])
	item := nested["items"].([]any)[0].(map[string]any)
	assert.Equal(t, Redacted, item["access_token"])
	assert.Equal(t, true, item["ok"])

	// the input is not mutated
	assert.Equal(t, "abc", payload["API_KEY"])
}

func TestFilterOutputStructPayload(t *testing.T) {
	e := newEngine(t, nil)
	type creds struct {
		User   string `json:"user"`
		Secret string `json:"client_secret"`
	}
	out := e.FilterOutput(context.Background(), creds{User: "u", Secret: "s"}).(map[string]any)
	assert.Equal(t, "u", out["user"])
	assert.Equal(t, Redacted, out["client_secret"])
}

func TestFilterOutputSizeCap(t *testing.T) {
	e := newEngine(t, func(p *Policy) { p.MaxOutputBytes = 1024 })

	small := e.FilterOutput(context.Background(), map[string]any{"a": "b"})
	_, over := IsOversize(small)
	assert.False(t, over)

	big := e.FilterOutput(context.Background(), map[string]any{"blob": strings.Repeat("x", 2048)})
	o, over := IsOversize(big)
	require.True(t, over)
	assert.Equal(t, 1024, o.MaxSize)
	assert.Equal(t, "Output size exceeded", o.Error)
}

func TestFailingFilterPassesThrough(t *testing.T) {
	e := newEngine(t, nil)
	e.AddFilter(Filter{Name: "boom", Apply: func(any) (any, error) { panic("bad filter") }})
	e.AddFilter(Filter{Name: "tag", Apply: func(v any) (any, error) {
		m := v.(map[string]any)
		m["tagged"] = true
		return m, nil
	}})

	out := e.FilterOutput(context.Background(), map[string]any{"password": "p"}).(map[string]any)
	assert.Equal(t, Redacted, out["password"])
	assert.Equal(t, true, out["tagged"])
}

func TestAssessRisk(t *testing.T) {
	assert.Equal(t, RiskHigh, AssessRisk("delete"))
	assert.Equal(t, RiskHigh, AssessRisk("execute"))
	assert.Equal(t, RiskMedium, AssessRisk("fetch_external_api"))
	assert.Equal(t, RiskLow, AssessRisk("calculate_metric"))
	assert.Equal(t, RiskLow, AssessRisk("delete_cache"))
}

func TestToolRegistry(t *testing.T) {
	e := newEngine(t, func(p *Policy) { p.MaxCallsPerMinute = 2 })
	reg := NewToolRegistry(e)
	reg.Register(Tool{Name: "echo", Run: func(_ context.Context, in map[string]any) (any, error) {
		return map[string]any{"ticker": in["ticker"], "token": "x"}, nil
	}})
	reg.Register(Tool{Name: "fail", Run: func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("upstream unavailable")
	}})
	ctx := context.Background()

	res := reg.Execute(ctx, "echo", map[string]any{"ticker": "AAPL"})
	require.Equal(t, "success", res.Status)
	assert.Equal(t, Redacted, res.Output.(map[string]any)["token"])

	res = reg.Execute(ctx, "echo", map[string]any{"ticker": "aapl1"})
	assert.Equal(t, "error", res.Status)
	assert.Contains(t, res.Error, "Input validation failed")

	res = reg.Execute(ctx, "fail", nil)
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "upstream unavailable", res.Error)

	res = reg.Execute(ctx, "missing", nil)
	assert.Contains(t, res.Error, "tool not found")

	reg.Execute(ctx, "echo", map[string]any{"ticker": "MSFT"})
	res = reg.Execute(ctx, "echo", map[string]any{"ticker": "MSFT"})
	assert.Contains(t, res.Error, "rate limit exceeded")

	stats := reg.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Success)
	assert.Equal(t, 1, stats.Errors)
	assert.InDelta(t, 66.67, stats.SuccessRate, 0.01)
	assert.Equal(t, map[string]int{"echo": 2, "fail": 1}, stats.ByTool)

	tool, ok := reg.Tool("echo")
	require.True(t, ok)
	assert.Equal(t, RiskLow, tool.Risk)
	assert.Equal(t, []string{"echo", "fail"}, reg.Names())

	path := filepath.Join(t.TempDir(), "tools", "log.json")
	require.NoError(t, reg.ExportLog(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var hist []Execution
	require.NoError(t, json.Unmarshal(b, &hist))
	assert.Len(t, hist, 3)

	reg.ClearHistory()
	assert.Equal(t, 0, reg.Stats().Total)
}
