package guardrails

import (
	"fmt"
	"regexp"
	"strings"

	"stock-analysis-pipeline/internal/store"
)

const (
	DefaultTickerPattern = `^[A-Z]{1,5}$`
	defaultPeriodDays    = 30
)

// Policy is the static rule set enforced at the pipeline boundaries.
type Policy struct {
	MaxCallsPerMinute   int
	TickerPattern       string
	BlockedTickers      []string
	MaxPriceHistoryDays int
	MaxOutputBytes      int
	EnableRateLimiting  bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxCallsPerMinute:   100,
		TickerPattern:       DefaultTickerPattern,
		MaxPriceHistoryDays: 365,
		MaxOutputBytes:      10 * 1024 * 1024,
		EnableRateLimiting:  true,
	}
}

// PolicyFromConfig maps the guardrails section of the config file.
func PolicyFromConfig(cfg *store.Config) Policy {
	g := cfg.Guardrails
	return Policy{
		MaxCallsPerMinute:   g.MaxAPICallsPerMinute,
		TickerPattern:       g.AllowedTickerPattern,
		BlockedTickers:      g.BlockedTickers,
		MaxPriceHistoryDays: g.MaxPriceHistoryDays,
		MaxOutputBytes:      g.MaxOutputBytes,
		EnableRateLimiting:  cfg.RateLimitingEnabled(),
	}
}

type compiledPolicy struct {
	Policy
	pattern *regexp.Regexp
	blocked map[string]struct{}
}

func compile(p Policy) (compiledPolicy, error) {
	if p.TickerPattern == "" {
		p.TickerPattern = DefaultTickerPattern
	}
	re, err := regexp.Compile(p.TickerPattern)
	if err != nil {
		return compiledPolicy{}, fmt.Errorf("compile ticker pattern: %w", err)
	}
	blocked := make(map[string]struct{}, len(p.BlockedTickers))
	for _, t := range p.BlockedTickers {
		blocked[NormalizeTicker(t)] = struct{}{}
	}
	return compiledPolicy{Policy: p, pattern: re, blocked: blocked}, nil
}

// NormalizeTicker trims and uppercases a user supplied ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ValidateTicker checks the normalized ticker against the blocklist and the
// allowed pattern. The returned reason is empty when the ticker is valid.
func (e *Engine) ValidateTicker(ticker string) (bool, string) {
	t := NormalizeTicker(ticker)
	if t == "" {
		return false, "ticker is required"
	}
	if _, ok := e.policy.blocked[t]; ok {
		return false, fmt.Sprintf("ticker %s is blocked", t)
	}
	if !e.policy.pattern.MatchString(t) {
		return false, fmt.Sprintf("invalid ticker format %q: must match %s", ticker, e.policy.TickerPattern)
	}
	return true, ""
}

// ValidatePeriod clamps the requested history length. Values below one fall
// back to 30 days; values above the policy maximum are capped.
func (e *Engine) ValidatePeriod(days int) int {
	if days < 1 {
		return defaultPeriodDays
	}
	if limit := e.policy.MaxPriceHistoryDays; limit > 0 && days > limit {
		return limit
	}
	return days
}
