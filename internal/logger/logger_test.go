package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, detailed bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(LogConfig{Level: "DEBUG", Format: "json", DetailedLogging: detailed, Output: &buf}))
	t.Cleanup(func() { detailedLogging = false })
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestGuardrailEvent(t *testing.T) {
	buf := capture(t, false)
	Guardrail(context.Background(), "ticker", "AAPL1", "invalid ticker format")

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "GUARDRAIL", entries[0]["type"])
	assert.Equal(t, "AAPL1", entries[0]["subject"])
}

func TestDebugRequiresDetailedLogging(t *testing.T) {
	buf := capture(t, false)
	Debug(context.Background(), "hidden")
	Metric(context.Background(), "profitability", "gross_margin", "success", nil, "")
	assert.Empty(t, buf.String())

	buf = capture(t, true)
	v := 40.0
	Metric(context.Background(), "profitability", "gross_margin", "success", &v, "")
	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, 40.0, entries[0]["value"])
	assert.Contains(t, entries[0], "source")
}

func TestOperationTimerEndWithError(t *testing.T) {
	buf := capture(t, false)
	op := StartOperation(context.Background(), "ingest", "ticker", "AAPL")
	op.EndWithError(errors.New("upstream down"))

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Operation failed", entries[0]["msg"])
	assert.Equal(t, "ingest", entries[0]["operation"])
	assert.Equal(t, "upstream down", entries[0]["error"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "WARN", parseLogLevel("warn").String())
	assert.Equal(t, "INFO", parseLogLevel("bogus").String())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_DETAILED", "true")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, "DEBUG", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.True(t, cfg.DetailedLogging)
}

func TestIsDebugEnabledFollowsConfig(t *testing.T) {
	capture(t, true)
	assert.True(t, IsDebugEnabled())
	capture(t, false)
	assert.False(t, IsDebugEnabled())
}
