package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"stock-analysis-pipeline/internal/types"
)

// ReportFormat specifies the output format for analysis reports
type ReportFormat string

const (
	FormatJSON     ReportFormat = "json"
	FormatText     ReportFormat = "text"
	FormatMarkdown ReportFormat = "markdown"
	FormatHTML     ReportFormat = "html"
)

var extensions = map[ReportFormat]string{
	FormatJSON:     "json",
	FormatText:     "txt",
	FormatMarkdown: "md",
	FormatHTML:     "html",
}

func ParseFormat(s string) (ReportFormat, error) {
	f := ReportFormat(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := extensions[f]; !ok {
		return "", fmt.Errorf("unsupported format: %s", s)
	}
	return f, nil
}

const stylesheet = `body { font-family: Arial, sans-serif; max-width: 900px; margin: 0 auto; padding: 20px; }
h1 { color: #1a73e8; border-bottom: 2px solid #1a73e8; padding-bottom: 10px; }
h2 { color: #34a853; margin-top: 30px; }
h3 { color: #5f6368; }
.positive { color: #34a853; }
.negative { color: #ea4335; }
.disclaimer { font-size: 0.9em; color: #666; margin-top: 40px; padding: 15px; background: #fff3cd; border-radius: 5px; }
table.metrics { width: 100%; border-collapse: collapse; margin: 10px 0; }
table.metrics th, table.metrics td { padding: 8px; text-align: left; border-bottom: 1px solid #ddd; }
table.metrics th { background: #f1f3f4; }`

// Reporter builds and renders analysis reports
type Reporter struct {
	outputDir string
	md        goldmark.Markdown
	now       func() time.Time
}

// NewReporter creates a new reporter writing saved reports under outputDir
func NewReporter(outputDir string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		md:        goldmark.New(goldmark.WithExtensions(extension.Table)),
		now:       time.Now,
	}
}

// Render builds the report for a run and renders every text format into the
// presentation payload.
func (r *Reporter) Render(ctx context.Context, run *types.PipelineRunState) (*types.PresentationPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rep, err := Build(run, r.now())
	if err != nil {
		return nil, err
	}
	rep.Narrative = run.Narrative

	sections, err := toSections(rep)
	if err != nil {
		return nil, err
	}
	md, err := r.GenerateReport(rep, FormatMarkdown)
	if err != nil {
		return nil, err
	}
	htmlDoc, err := r.GenerateReport(rep, FormatHTML)
	if err != nil {
		return nil, err
	}
	text, err := r.GenerateReport(rep, FormatText)
	if err != nil {
		return nil, err
	}
	return &types.PresentationPayload{
		Title:     rep.Title(),
		Sections:  sections,
		Markdown:  md,
		HTML:      htmlDoc,
		Text:      text,
		Narrative: rep.Narrative,
	}, nil
}

// GenerateReport creates a report in the specified format
func (r *Reporter) GenerateReport(rep *Report, format ReportFormat) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatText:
		return r.generateTextReport(rep), nil
	case FormatMarkdown:
		return r.generateMarkdownReport(rep), nil
	case FormatHTML:
		return r.generateHTMLReport(rep)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// SaveReport writes an already rendered payload to disk and returns the path.
func (r *Reporter) SaveReport(payload *types.PresentationPayload, ticker string, format ReportFormat) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("no report to save")
	}
	var content string
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(payload.Sections, "", "  ")
		if err != nil {
			return "", err
		}
		content = string(data)
	case FormatText:
		content = payload.Text
	case FormatMarkdown:
		content = payload.Markdown
	case FormatHTML:
		content = payload.HTML
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", err
	}

	timestamp := r.now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_report_%s.%s", ticker, timestamp, extensions[format])
	path := filepath.Join(r.outputDir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// toSections exposes the report in its generic JSON form so output filters
// can walk it.
func toSections(rep *Report) (map[string]any, error) {
	b, err := json.Marshal(rep)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reporter) generateMarkdownReport(rep *Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", rep.Title())
	fmt.Fprintf(&sb, "*Generated: %s | Period: %d days", rep.Meta.GeneratedAt.Format(time.RFC3339), rep.Meta.PeriodDays)
	if rep.Meta.RunID != "" {
		fmt.Fprintf(&sb, " | Run: %s", rep.Meta.RunID)
	}
	sb.WriteString("*\n\n")

	es := rep.ExecutiveSummary
	sb.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&sb, "- **Company:** %s\n", es.Company)
	fmt.Fprintf(&sb, "- **Current Price:** %s\n", es.CurrentPrice)
	fmt.Fprintf(&sb, "- **Risk Level:** %s\n\n", es.RiskLevel)
	sb.WriteString(es.Summary + "\n\n")
	sb.WriteString("### Key Metrics\n\n")
	writeList(&sb, es.KeyMetrics)

	co := rep.CompanyOverview
	sb.WriteString("## Company Overview\n\n")
	sb.WriteString("| Field | Value |\n|---|---|\n")
	for _, row := range [][2]string{
		{"Ticker", co.Ticker},
		{"Company", co.CompanyName},
		{"Sector", co.Sector},
		{"Industry", co.Industry},
		{"Current Price", money(co.CurrentPrice)},
		{"Market Cap", money(co.MarketCap)},
		{"52 Week High", money(co.FiftyTwoWeekHigh)},
		{"52 Week Low", money(co.FiftyTwoWeekLow)},
	} {
		fmt.Fprintf(&sb, "| %s | %s |\n", cell(row[0]), cell(row[1]))
	}
	sb.WriteString("\n")

	sb.WriteString("## Financial Analysis\n\n")
	for _, s := range rep.FinancialAnalysis {
		writeSection(&sb, s)
	}

	sb.WriteString("## Valuation Analysis\n\n")
	writeSection(&sb, rep.ValuationAnalysis.Section)
	fmt.Fprintf(&sb, "**Summary:** %s\n\n", rep.ValuationAnalysis.Summary)

	ra := rep.RiskAssessment
	sb.WriteString("## Risk Assessment\n\n")
	writeSection(&sb, ra.MarketRisk)
	writeSection(&sb, ra.FinancialRisk)
	if ra.OverallAssessment != nil {
		sb.WriteString("### Overall Risk\n\n")
		fmt.Fprintf(&sb, "**%s** (%d flags)\n\n", ra.OverallAssessment.Label, ra.OverallAssessment.FlagCount)
		writeList(&sb, ra.OverallAssessment.Flags)
	}

	rec := rep.Recommendation
	sb.WriteString("## Investment Recommendation\n\n")
	fmt.Fprintf(&sb, "**Outlook:** %s\n\n", rec.Outlook)
	sb.WriteString("### Positives\n\n")
	writeList(&sb, rec.Positives)
	sb.WriteString("### Concerns\n\n")
	writeList(&sb, rec.Concerns)
	sb.WriteString("### Considerations\n\n")
	writeList(&sb, rec.Considerations)

	if len(rep.News) > 0 {
		sb.WriteString("## Recent News\n\n")
		for _, n := range rep.News {
			title := n.Title
			if n.URL != "" {
				title = fmt.Sprintf("[%s](%s)", n.Title, n.URL)
			}
			sb.WriteString("- " + title)
			if n.Source != "" {
				fmt.Fprintf(&sb, " (%s)", n.Source)
			}
			if n.PublishedAt != "" {
				fmt.Fprintf(&sb, " - %s", n.PublishedAt)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if rep.Narrative != "" {
		sb.WriteString("## Narrative\n\n")
		sb.WriteString(strings.TrimSpace(rep.Narrative) + "\n\n")
	}
	if len(rep.Meta.DataQuality) > 0 {
		sb.WriteString("## Data Quality\n\n")
		writeList(&sb, rep.Meta.DataQuality)
	}

	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "**Disclaimer:** %s\n", rep.Disclaimer)
	return sb.String()
}

func writeSection(sb *strings.Builder, s Section) {
	fmt.Fprintf(sb, "### %s\n\n", s.Title)
	if len(s.Lines) == 0 {
		sb.WriteString("_No data available._\n\n")
		return
	}
	sb.WriteString("| Metric | Value | Interpretation |\n|---|---|---|\n")
	for _, l := range s.Lines {
		fmt.Fprintf(sb, "| %s | %s | %s |\n", cell(l.Name), cell(l.Value), cell(l.Interpretation))
	}
	sb.WriteString("\n")
	if s.Unavailable > 0 {
		fmt.Fprintf(sb, "_%d metrics unavailable from the supplied data._\n\n", s.Unavailable)
	}
}

func writeList(sb *strings.Builder, items []string) {
	if len(items) == 0 {
		sb.WriteString("_None identified._\n\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
	sb.WriteString("\n")
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func money(v *float64) string {
	if v == nil {
		return "N/A"
	}
	x := *v
	switch {
	case x >= 1e12:
		return fmt.Sprintf("$%.2fT", x/1e12)
	case x >= 1e9:
		return fmt.Sprintf("$%.2fB", x/1e9)
	case x >= 1e6:
		return fmt.Sprintf("$%.2fM", x/1e6)
	default:
		return fmt.Sprintf("$%.2f", x)
	}
}

// generateHTMLReport converts the Markdown rendering and decorates the result
// with classes for styling.
func (r *Reporter) generateHTMLReport(rep *Report) (string, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(r.generateMarkdownReport(rep)), &body); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(&body)
	if err != nil {
		return "", err
	}
	doc.Find("table").AddClass("metrics")
	doc.Find("h3").Each(func(_ int, h *goquery.Selection) {
		switch h.Text() {
		case "Positives":
			h.NextFiltered("ul").Find("li").AddClass("positive")
		case "Concerns":
			h.NextFiltered("ul").Find("li").AddClass("negative")
		}
	})
	doc.Find("p").Last().AddClass("disclaimer")
	doc.Find("head").AppendHtml(fmt.Sprintf("<meta charset=\"utf-8\"/><title>%s</title><style>%s</style>",
		html.EscapeString(rep.Title()), stylesheet))

	out, err := doc.Html()
	if err != nil {
		return "", err
	}
	return "<!DOCTYPE html>\n" + out, nil
}

func (r *Reporter) generateTextReport(rep *Report) string {
	var sb strings.Builder
	rule := strings.Repeat("=", 80) + "\n"
	thin := strings.Repeat("-", 80) + "\n"

	sb.WriteString(rule)
	fmt.Fprintf(&sb, "STOCK ANALYSIS REPORT - %s (%s)\n", rep.Meta.CompanyName, rep.Meta.Ticker)
	sb.WriteString(rule)
	fmt.Fprintf(&sb, "Generated: %s\n", rep.Meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current Price: %s\n", rep.ExecutiveSummary.CurrentPrice)
	fmt.Fprintf(&sb, "Risk Level: %s\n", rep.ExecutiveSummary.RiskLevel)
	fmt.Fprintf(&sb, "Outlook: %s\n\n", rep.Recommendation.Outlook)

	sections := append([]Section{}, rep.FinancialAnalysis...)
	sections = append(sections, rep.ValuationAnalysis.Section, rep.RiskAssessment.MarketRisk, rep.RiskAssessment.FinancialRisk)
	for _, s := range sections {
		fmt.Fprintf(&sb, "%s\n", strings.ToUpper(s.Title))
		sb.WriteString(thin)
		if len(s.Lines) == 0 {
			sb.WriteString("  No data available.\n")
		}
		for _, l := range s.Lines {
			fmt.Fprintf(&sb, "  %-28s %s\n", l.Name, l.Value)
			if l.Interpretation != "" {
				fmt.Fprintf(&sb, "  %-28s %s\n", "", l.Interpretation)
			}
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Valuation: %s\n\n", rep.ValuationAnalysis.Summary)

	writeTextList(&sb, "POSITIVES", rep.Recommendation.Positives)
	writeTextList(&sb, "CONCERNS", rep.Recommendation.Concerns)

	if len(rep.News) > 0 {
		headlines := make([]string, 0, len(rep.News))
		for _, n := range rep.News {
			headlines = append(headlines, n.Title)
		}
		writeTextList(&sb, "RECENT NEWS", headlines)
	}
	if rep.Narrative != "" {
		sb.WriteString("NARRATIVE\n" + thin)
		sb.WriteString(strings.TrimSpace(rep.Narrative) + "\n\n")
	}

	sb.WriteString(rule)
	fmt.Fprintf(&sb, "DISCLAIMER: %s\n", rep.Disclaimer)
	return sb.String()
}

func writeTextList(sb *strings.Builder, title string, items []string) {
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", 80) + "\n")
	if len(items) == 0 {
		sb.WriteString("  None identified.\n\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(sb, "  - %s\n", it)
	}
	sb.WriteString("\n")
}
