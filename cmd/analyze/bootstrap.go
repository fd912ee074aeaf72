package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"stock-analysis-pipeline/internal/guardrails"
	"stock-analysis-pipeline/internal/ingest"
	"stock-analysis-pipeline/internal/ingest/ingestobs"
	"stock-analysis-pipeline/internal/interfaces"
	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/monitor"
	"stock-analysis-pipeline/internal/narrative"
	"stock-analysis-pipeline/internal/narrative/narrativeobs"
	"stock-analysis-pipeline/internal/report"
	"stock-analysis-pipeline/internal/store"
	"stock-analysis-pipeline/internal/trace"

	"github.com/joho/godotenv"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.InitWithConfig(logger.LoadConfigFromEnv()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.InitWithConfig(trace.LoadConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeIngestor builds the dataset source chain: base source, optional
// news enrichment, optional on-disk cache, observability on the outside.
func initializeIngestor(ctx context.Context, cfg *store.Config) (interfaces.Ingestor, error) {
	in := cfg.Ingest

	var src interfaces.Ingestor
	switch in.Source {
	case "STATIC":
		static, err := ingest.LoadStaticDir(in.DataDir)
		if err != nil {
			return nil, fmt.Errorf("load static datasets: %w", err)
		}
		logger.Info(ctx, "Using STATIC datasets preloaded from disk", "dir", in.DataDir)
		src = static
	default:
		logger.Info(ctx, "Reading datasets from files", "dir", in.DataDir, "rps", in.RequestsPerSecond)
		src = ingest.NewFileSource(in.DataDir, in.RequestsPerSecond, in.Burst)
	}
	name := in.Source

	if len(in.NewsFeeds) > 0 {
		src = ingest.NewNewsEnricher(src, in.NewsFeeds, in.MaxArticles)
		name += "+news"
	}

	if in.CacheDir != "" {
		cache := ingest.NewCache(in.CacheDir, cfg.CacheTTL())
		if err := cache.CleanupExpired(); err != nil {
			logger.Warn(ctx, "Failed to clean dataset cache", "error", err)
		}
		src = ingest.NewCachedSource(src, cache)
		name += "+cache"
	}

	return ingestobs.Wrap(src, name), nil
}

func initializeNarrator(ctx context.Context, cfg *store.Config) (interfaces.Narrator, error) {
	n, err := narrative.New(cfg.Narrative.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.Narrative.Provider == narrative.ProviderNone {
		logger.Warn(ctx, "Narrative disabled - reports will carry metrics only")
	}
	return narrativeobs.Wrap(n), nil
}

// initializeGuardrails builds the guardrail engine and, when configured,
// starts the periodic rate limit reset tied to ctx.
func initializeGuardrails(ctx context.Context, cfg *store.Config) (*guardrails.Engine, error) {
	guard, err := guardrails.New(guardrails.PolicyFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	if secs := cfg.Guardrails.RateLimitResetSeconds; secs > 0 && cfg.RateLimitingEnabled() {
		guard.StartResetLoop(ctx, time.Duration(secs)*time.Second)
	}
	return guard, nil
}

// initializeMonitor creates the run monitor and compresses audit files past
// the retention window.
func initializeMonitor(ctx context.Context, cfg *store.Config) *monitor.Monitor {
	mon := monitor.New(cfg.Monitor.LogDir)
	if cfg.Monitor.RetentionDays > 0 {
		if err := mon.CompressOlder(ctx, cfg.Monitor.RetentionDays); err != nil {
			logger.Warn(ctx, "Failed to compress old audit files", "error", err)
		}
	}
	return mon
}

func initializeReporter(cfg *store.Config) *report.Reporter {
	outputDir := cfg.Report.OutputDir
	if outputDir == "" {
		outputDir = "reports"
	}
	return report.NewReporter(outputDir)
}
