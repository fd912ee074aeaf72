package guardrails

import (
	"context"
	"fmt"
	"time"

	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/types"
)

// CheckRateLimit counts one call of operation and fails once the per-minute
// budget is spent. Counters never expire on their own; ResetRateLimits or a
// reset loop clears them.
func (e *Engine) CheckRateLimit(ctx context.Context, operation string) error {
	if !e.policy.EnableRateLimiting {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.counts[operation]
	if n >= e.policy.MaxCallsPerMinute {
		logger.Guardrail(ctx, "rate_limit", operation, "rate limit exceeded",
			"calls", n, "limit", e.policy.MaxCallsPerMinute)
		return fmt.Errorf("%w for %s (%d calls)", types.ErrRateLimitExceeded, operation, e.policy.MaxCallsPerMinute)
	}
	e.counts[operation] = n + 1
	return nil
}

func (e *Engine) ResetRateLimits() {
	e.mu.Lock()
	clear(e.counts)
	e.mu.Unlock()
}

// CallCount returns the current counter of operation.
func (e *Engine) CallCount(operation string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[operation]
}

// StartResetLoop clears the counters every interval until ctx is done.
func (e *Engine) StartResetLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.ResetRateLimits()
				logger.Debug(ctx, "Rate limit counters reset")
			}
		}
	}()
}
