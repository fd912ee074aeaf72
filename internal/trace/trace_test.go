package trace

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTracingIsNoop(t *testing.T) {
	require.NoError(t, InitWithConfig(Config{Enabled: false}))
	ctx, span := StartSpan(context.Background(), "pipeline.Analyze")
	span.End()

	assert.False(t, Enabled())
	_, _, ok := GetTraceFields(ctx)
	assert.False(t, ok)
}

func TestSpansAreExported(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(Config{Enabled: true, Output: &buf}))
	t.Cleanup(func() { _ = InitWithConfig(Config{Enabled: false}) })

	ctx, span := StartSpan(context.Background(), "ingest.Fetch")
	traceID, spanID, ok := GetTraceFields(ctx)
	require.True(t, ok)
	assert.Len(t, traceID, 32)
	assert.Len(t, spanID, 16)
	span.End()

	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "ingest.Fetch")
	assert.Contains(t, buf.String(), ServiceName)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_TRACING_ENABLED", "false")
	t.Setenv("TRACE_PRETTY", "true")

	cfg := LoadConfigFromEnv()
	assert.False(t, cfg.Enabled)
	assert.True(t, cfg.Pretty)
	assert.NotNil(t, cfg.Output)
}
