package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-analysis-pipeline/internal/guardrails"
	"stock-analysis-pipeline/internal/logger"
	"stock-analysis-pipeline/internal/pipeline"
	"stock-analysis-pipeline/internal/pipeline/pipelineobs"
	"stock-analysis-pipeline/internal/report"
	"stock-analysis-pipeline/internal/trace"
	"stock-analysis-pipeline/internal/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	ticker := flag.String("ticker", "", "stock ticker to analyze (required)")
	period := flag.Int("period", 0, "price history window in trading days (0 = config default)")
	format := flag.String("format", "", "output format: json, text, markdown or html (default from config)")
	outputFile := flag.String("output", "", "write the rendered report to this file")
	save := flag.Bool("save", false, "auto-save the report under report.output_dir")
	metric := flag.String("metric", "", "compute a single metric through the tool registry instead of the full report")
	stats := flag.Bool("stats", false, "print monitor statistics after the run")
	flag.Parse()

	if *ticker == "" {
		fmt.Fprintln(os.Stderr, "Error: -ticker is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	os.Exit(run(ctx, cancel, *configPath, *ticker, *period, *format, *outputFile, *save, *metric, *stats))
}

// run wires the pipeline and returns the process exit code.
func run(ctx context.Context, cancel context.CancelFunc, configPath, ticker string, period int, format, outputFile string, save bool, metric string, stats bool) int {
	defer cancel()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	if format == "" {
		format = cfg.Report.Format
	}
	reportFormat, err := report.ParseFormat(format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ingestor, err := initializeIngestor(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating data source: %v\n", err)
		return 1
	}
	narrator, err := initializeNarrator(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating narrator: %v\n", err)
		return 1
	}
	guard, err := initializeGuardrails(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating guardrails: %v\n", err)
		return 1
	}
	mon := initializeMonitor(ctx, cfg)
	reporter := initializeReporter(cfg)

	orch := pipeline.New(guard, mon, ingestor, reporter, narrator, pipeline.OptionsFromConfig(cfg))
	defer orch.Close(context.Background())

	if metric != "" {
		return runMetricTool(ctx, guard, orch, ticker, period, metric)
	}

	analyzer := pipelineobs.Wrap(orch)
	resp := analyzer.Analyze(ctx, ticker, period)
	if resp.Failed() {
		printJSON(os.Stderr, resp)
		return 1
	}

	content, err := renderedContent(resp, reportFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering report: %v\n", err)
		return 1
	}
	fmt.Println(content)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving report to file: %v\n", err)
			return 1
		}
		logger.Info(ctx, "Report saved", "path", outputFile)
	} else if save {
		path, err := reporter.SaveReport(resp.Report, resp.Ticker, reportFormat)
		if err != nil {
			logger.Warn(ctx, "Could not auto-save report", "error", err)
		} else {
			logger.Info(ctx, "Report auto-saved", "path", path)
		}
	}

	if stats {
		printJSON(os.Stderr, map[string]any{
			"summary":    mon.Summary(),
			"operations": mon.OperationPerformance(),
		})
	}
	return 0
}

// runMetricTool computes one metric through the guarded tool registry.
func runMetricTool(ctx context.Context, guard *guardrails.Engine, orch *pipeline.Orchestrator, ticker string, period int, metric string) int {
	reg := guardrails.NewToolRegistry(guard)
	orch.RegisterTools(reg)

	res := reg.Execute(ctx, pipeline.ToolCalculateMetric, map[string]any{
		"ticker":      ticker,
		"metric":      metric,
		"period_days": period,
	})
	if res.Status != "success" {
		printJSON(os.Stderr, res)
		return 1
	}
	printJSON(os.Stdout, res.Output)
	return 0
}

// renderedContent picks the requested rendering out of the response. JSON
// prints the full response so metric groups and timing stay visible.
func renderedContent(resp *types.AnalysisResponse, format report.ReportFormat) (string, error) {
	if format == report.FormatJSON {
		b, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if resp.Report == nil {
		return "", fmt.Errorf("response carries no report")
	}
	switch format {
	case report.FormatText:
		return resp.Report.Text, nil
	case report.FormatHTML:
		return resp.Report.HTML, nil
	default:
		return resp.Report.Markdown, nil
	}
}

func printJSON(f *os.File, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(f, "%v\n", v)
		return
	}
	fmt.Fprintln(f, string(b))
}
