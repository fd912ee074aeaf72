package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis-pipeline/internal/types"
)

func f(v float64) *float64 { return &v }

func metric(v float64, unit types.Unit, interp string) types.MetricResult {
	return types.MetricResult{Status: types.StatusSuccess, Value: f(v), Unit: unit, Interpretation: interp}
}

func sampleRun() *types.PipelineRunState {
	return &types.PipelineRunState{
		RunID:      "run-1",
		Ticker:     "AAPL",
		PeriodDays: 252,
		Dataset: &types.CanonicalDataset{
			Meta: types.Meta{Ticker: "AAPL", CompanyName: "Apple & Co", Sector: "Technology"},
			Info: types.Values{"current_price": 189.5, "market_cap": 2.9e12},
		},
		Groups: types.MetricGroups{
			types.CategoryProfitability: {
				"roe":          metric(24.5, types.UnitPercent, "Excellent"),
				"gross_margin": metric(44.1, types.UnitPercent, "Strong"),
				"roic":         {Status: types.StatusError, NullReason: "ROIC data not available"},
			},
			types.CategoryLiquidity: {
				"current_ratio": metric(0.9, types.UnitRatio, "Weak liquidity"),
			},
			types.CategoryEfficiency: {
				"inventory_turnover": {Status: types.StatusSuccess, Unit: types.UnitRatio, NullReason: "Not applicable for Financial Services sector"},
			},
			types.CategoryValuation: {
				"pe_ratio":  metric(29.3, types.UnitRatio, "Growth premium"),
				"peg_ratio": metric(0.8, types.UnitRatio, "Undervalued relative to growth"),
			},
			types.CategoryMarketRisk: {
				"var_95": metric(2.1, types.UnitPercent, ""),
			},
			types.CategoryFinancialRisk: {},
		},
		OverallRisk: &types.OverallRiskAssessment{
			Flags:     []string{"High volatility"},
			Level:     types.RiskElevated,
			Label:     "Moderate to Elevated Risk",
			FlagCount: 1,
		},
		Valuation: "PEG < 1 suggests undervaluation relative to growth",
	}
}

func newTestReporter(t *testing.T) *Reporter {
	r := NewReporter(t.TempDir())
	r.now = func() time.Time { return time.Date(2024, 9, 30, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestBuildSections(t *testing.T) {
	rep, err := Build(sampleRun(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "Apple & Co (AAPL)", rep.ExecutiveSummary.Company)
	assert.Equal(t, "$189.50", rep.ExecutiveSummary.CurrentPrice)
	assert.Equal(t, []string{"P/E Ratio: 29.3x (Growth premium)", "ROE: 24.5%"}, rep.ExecutiveSummary.KeyMetrics)
	assert.Equal(t, "Moderate to Elevated Risk", rep.ExecutiveSummary.RiskLevel)
	assert.Equal(t, "Unknown", rep.CompanyOverview.Industry)
	require.NotNil(t, rep.CompanyOverview.MarketCap)

	require.Len(t, rep.FinancialAnalysis, 6)
	prof := rep.FinancialAnalysis[0]
	assert.Equal(t, "Profitability", prof.Title)
	require.Len(t, prof.Lines, 2)
	assert.Equal(t, "Gross Margin", prof.Lines[0].Name, "registry order")
	assert.Equal(t, "44.1%", prof.Lines[0].Value)
	assert.Equal(t, "ROE", prof.Lines[1].Name)
	assert.Equal(t, 1, prof.Unavailable)

	eff := rep.FinancialAnalysis[3]
	require.Len(t, eff.Lines, 1)
	assert.Equal(t, "N/A (Not applicable for Financial Services sector)", eff.Lines[0].Value)

	assert.Equal(t, "VaR 95", rep.RiskAssessment.MarketRisk.Lines[0].Name)
	assert.Equal(t, "P/E Ratio", rep.ValuationAnalysis.Lines[0].Name)
}

func TestBuildRequiresDatasetAndMetrics(t *testing.T) {
	_, err := Build(&types.PipelineRunState{Ticker: "AAPL"}, time.Now())
	assert.Error(t, err)

	run := sampleRun()
	run.Groups = nil
	_, err = Build(run, time.Now())
	assert.Error(t, err)
}

func TestRecommendation(t *testing.T) {
	rep, err := Build(sampleRun(), time.Now())
	require.NoError(t, err)
	rec := rep.Recommendation
	assert.Equal(t, []string{"Strong ROE of 24.5%", "PEG < 1 suggests undervaluation"}, rec.Positives)
	assert.Equal(t, []string{"Low current ratio indicates liquidity risk", "High volatility"}, rec.Concerns)
	assert.Equal(t, OutlookNeutral, rec.Outlook)
	assert.Len(t, rec.Considerations, 3)

	groups := types.MetricGroups{types.CategoryValuation: {"peg_ratio": metric(2.5, types.UnitRatio, "")}}
	assert.Equal(t, OutlookCautious, recommend(groups, nil).Outlook)
	groups = types.MetricGroups{types.CategoryLiquidity: {"current_ratio": metric(2, types.UnitRatio, "")}}
	assert.Equal(t, OutlookPositive, recommend(groups, nil).Outlook)
	assert.Equal(t, OutlookNeutral, recommend(types.MetricGroups{}, nil).Outlook)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "12.5%", formatValue(metric(12.5, types.UnitPercent, "")))
	assert.Equal(t, "$3.1B", formatValue(metric(3.1, types.UnitCurrencyBillions, "")))
	assert.Equal(t, "72/100", formatValue(metric(72, types.UnitScore, "")))
	assert.Equal(t, "1.25x", formatValue(metric(1.25, types.UnitRatio, "")))
	assert.Equal(t, "2.4", formatValue(metric(2.4, types.UnitDimensionless, "")))
	assert.Equal(t, "N/A (Data not available)", formatValue(types.MetricResult{Status: types.StatusSuccess}))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "EV To EBITDA", displayName("ev_to_ebitda"))
	assert.Equal(t, "Operating Cash Flow Ratio", displayName("operating_cash_flow_ratio"))
	assert.Equal(t, "FCF Growth", displayName("fcf_growth"))
}

func TestRenderPayload(t *testing.T) {
	run := sampleRun()
	run.Narrative = "Apple shows strong returns."
	payload, err := newTestReporter(t).Render(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, "Stock Analysis Report: Apple & Co (AAPL)", payload.Title)
	assert.Equal(t, "Apple shows strong returns.", payload.Narrative)
	assert.Contains(t, payload.Markdown, "# Stock Analysis Report: Apple & Co (AAPL)")
	assert.Contains(t, payload.Markdown, "| ROE | 24.5% | Excellent |")
	assert.Contains(t, payload.Markdown, "## Narrative")
	assert.Contains(t, payload.Text, "STOCK ANALYSIS REPORT - Apple & Co (AAPL)")
	assert.Contains(t, payload.Text, "DISCLAIMER:")

	meta, isMap := payload.Sections["meta"].(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, "run-1", meta["run_id"])
	assert.Contains(t, payload.Sections, "investment_recommendation")
}

func TestRecentNews(t *testing.T) {
	run := sampleRun()
	for i := 0; i < 7; i++ {
		run.Dataset.News = append(run.Dataset.News, types.Article{Title: fmt.Sprintf("Headline %d", i), Source: "Wire"})
	}
	run.Dataset.News[0].URL = "https://example.com/a"
	run.Dataset.News[1].Title = "  "

	payload, err := newTestReporter(t).Render(context.Background(), run)
	require.NoError(t, err)

	news, isList := payload.Sections["recent_news"].([]any)
	require.True(t, isList)
	assert.Len(t, news, maxNewsItems)
	assert.Contains(t, payload.Markdown, "- [Headline 0](https://example.com/a) (Wire)")
	assert.NotContains(t, payload.Markdown, "Headline 1")
	assert.Contains(t, payload.Text, "RECENT NEWS")
}

func TestRenderHTML(t *testing.T) {
	payload, err := newTestReporter(t).Render(context.Background(), sampleRun())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(payload.HTML, "<!DOCTYPE html>"))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload.HTML))
	require.NoError(t, err)

	assert.Equal(t, "Stock Analysis Report: Apple & Co (AAPL)", doc.Find("title").Text())
	assert.Equal(t, "Stock Analysis Report: Apple & Co (AAPL)", doc.Find("h1").First().Text())
	assert.Greater(t, doc.Find("table.metrics").Length(), 3)
	assert.Equal(t, 2, doc.Find("li.positive").Length())
	assert.Equal(t, 2, doc.Find("li.negative").Length())
	assert.Contains(t, doc.Find("p.disclaimer").Text(), "does not constitute financial advice")

	var roeRow *goquery.Selection
	doc.Find("td").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Text() == "ROE" {
			roeRow = s.Parent()
			return false
		}
		return true
	})
	require.NotNil(t, roeRow)
	assert.Equal(t, "24.5%", roeRow.Find("td").Eq(1).Text())
}

func TestRenderFailsWithoutMetrics(t *testing.T) {
	_, err := newTestReporter(t).Render(context.Background(), &types.PipelineRunState{Ticker: "AAPL"})
	assert.Error(t, err)
}

func TestSaveReport(t *testing.T) {
	r := newTestReporter(t)
	payload, err := r.Render(context.Background(), sampleRun())
	require.NoError(t, err)

	path, err := r.SaveReport(payload, "AAPL", FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "AAPL_report_20240930_120000.md", filepath.Base(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload.Markdown, string(b))

	path, err = r.SaveReport(payload, "AAPL", FormatJSON)
	require.NoError(t, err)
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	var sections map[string]any
	require.NoError(t, json.Unmarshal(b, &sections))
	assert.Contains(t, sections, "disclaimer")

	_, err = r.SaveReport(payload, "AAPL", ReportFormat("pdf"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	got, err := ParseFormat(" HTML ")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, got)
	_, err = ParseFormat("csv")
	assert.Error(t, err)
}
