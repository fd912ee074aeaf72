package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"stock-analysis-pipeline/internal/metrics"
	"stock-analysis-pipeline/internal/types"
)

const (
	ReportType = "comprehensive_analysis"

	Disclaimer = "This report is for informational purposes only and does not constitute " +
		"financial advice. All metrics are calculated from publicly available data and may " +
		"not reflect real-time market conditions. Always consult with a qualified financial " +
		"advisor before making investment decisions."
)

// Outlooks
const (
	OutlookPositive = "Positive"
	OutlookNeutral  = "Neutral"
	OutlookCautious = "Cautious"
)

var considerations = []string{
	"Past performance does not guarantee future results",
	"Consider your personal risk tolerance",
	"Diversification is recommended",
}

type Meta struct {
	Ticker      string    `json:"ticker"`
	CompanyName string    `json:"company_name"`
	RunID       string    `json:"run_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	ReportType  string    `json:"report_type"`
	PeriodDays  int       `json:"period_days"`
	DataQuality []string  `json:"data_quality,omitempty"`
}

type ExecutiveSummary struct {
	Company      string   `json:"company"`
	CurrentPrice string   `json:"current_price"`
	KeyMetrics   []string `json:"key_metrics"`
	RiskLevel    string   `json:"risk_level"`
	Summary      string   `json:"summary"`
}

type CompanyOverview struct {
	Ticker           string   `json:"ticker"`
	CompanyName      string   `json:"company_name"`
	Sector           string   `json:"sector"`
	Industry         string   `json:"industry"`
	CurrentPrice     *float64 `json:"current_price"`
	MarketCap        *float64 `json:"market_cap"`
	FiftyTwoWeekHigh *float64 `json:"52_week_high"`
	FiftyTwoWeekLow  *float64 `json:"52_week_low"`
}

// Section is the formatted view of one metric category.
type Section struct {
	Category types.Category `json:"category"`
	Title    string         `json:"title"`
	Lines    []MetricLine   `json:"metrics"`
	// Unavailable counts metrics that failed for lack of data.
	Unavailable int `json:"unavailable"`
}

type ValuationAnalysis struct {
	Section
	Summary string `json:"summary"`
}

type RiskAssessment struct {
	MarketRisk        Section                      `json:"market_risk"`
	FinancialRisk     Section                      `json:"financial_risk"`
	OverallAssessment *types.OverallRiskAssessment `json:"overall_assessment,omitempty"`
}

type Recommendation struct {
	Outlook        string   `json:"outlook"`
	Positives      []string `json:"positives"`
	Concerns       []string `json:"concerns"`
	Considerations []string `json:"considerations"`
}

// maxNewsItems caps the headlines carried into a report.
const maxNewsItems = 5

type NewsItem struct {
	Title       string   `json:"title"`
	Source      string   `json:"source,omitempty"`
	URL         string   `json:"url,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Sentiment   *float64 `json:"sentiment,omitempty"`
}

// Report is the structured document built from one completed run.
type Report struct {
	Meta              Meta              `json:"meta"`
	ExecutiveSummary  ExecutiveSummary  `json:"executive_summary"`
	CompanyOverview   CompanyOverview   `json:"company_overview"`
	FinancialAnalysis []Section         `json:"financial_analysis"`
	ValuationAnalysis ValuationAnalysis `json:"valuation_analysis"`
	RiskAssessment    RiskAssessment    `json:"risk_assessment"`
	Recommendation    Recommendation    `json:"investment_recommendation"`
	News              []NewsItem        `json:"recent_news,omitempty"`
	Narrative         string            `json:"narrative,omitempty"`
	Disclaimer        string            `json:"disclaimer"`
}

// Title is the document heading.
func (r *Report) Title() string {
	return fmt.Sprintf("Stock Analysis Report: %s (%s)", r.Meta.CompanyName, r.Meta.Ticker)
}

// Build assembles the report sections. The run must carry a dataset and
// metric groups.
func Build(run *types.PipelineRunState, now time.Time) (*Report, error) {
	if run == nil || run.Dataset == nil {
		return nil, fmt.Errorf("no dataset to report on")
	}
	if len(run.Groups) == 0 {
		return nil, fmt.Errorf("no metric groups to report on")
	}
	ds := run.Dataset
	ticker := run.Ticker
	if ticker == "" {
		ticker = ds.Meta.Ticker
	}
	name := ds.Meta.CompanyName
	if name == "" || name == "Unknown" {
		name = ticker
	}

	rep := &Report{
		Meta: Meta{
			Ticker:      ticker,
			CompanyName: name,
			RunID:       run.RunID,
			GeneratedAt: now,
			ReportType:  ReportType,
			PeriodDays:  run.PeriodDays,
			DataQuality: ds.Meta.DataQuality,
		},
		CompanyOverview: companyOverview(ds, ticker),
		Disclaimer:      Disclaimer,
	}

	for _, reg := range metrics.RatioGroup.Registries {
		rep.FinancialAnalysis = append(rep.FinancialAnalysis, section(reg, run.Groups[reg.Category]))
	}

	valuation := run.Valuation
	if valuation == "" {
		valuation = "No valuation summary available"
	}
	rep.ValuationAnalysis = ValuationAnalysis{
		Section: section(metrics.Valuation, run.Groups[types.CategoryValuation]),
		Summary: valuation,
	}
	rep.RiskAssessment = RiskAssessment{
		MarketRisk:        section(metrics.MarketRisk, run.Groups[types.CategoryMarketRisk]),
		FinancialRisk:     section(metrics.FinancialRisk, run.Groups[types.CategoryFinancialRisk]),
		OverallAssessment: run.OverallRisk,
	}

	rep.ExecutiveSummary = executiveSummary(ds, run, name, ticker)
	rep.Recommendation = recommend(run.Groups, run.OverallRisk)
	rep.News = recentNews(ds.News)
	return rep, nil
}

func recentNews(articles []types.Article) []NewsItem {
	var out []NewsItem
	for _, a := range articles {
		if strings.TrimSpace(a.Title) == "" {
			continue
		}
		out = append(out, NewsItem{Title: a.Title, Source: a.Source, URL: a.URL, PublishedAt: a.PublishedAt, Sentiment: a.Sentiment})
		if len(out) == maxNewsItems {
			break
		}
	}
	return out
}

func executiveSummary(ds *types.CanonicalDataset, run *types.PipelineRunState, name, ticker string) ExecutiveSummary {
	s := ExecutiveSummary{
		Company:      fmt.Sprintf("%s (%s)", name, ticker),
		CurrentPrice: "N/A",
		KeyMetrics:   []string{},
		RiskLevel:    "Not assessed",
		Summary:      fmt.Sprintf("Comprehensive analysis of %s covering financial health, valuation, and risk factors.", name),
	}
	if p, ok := ds.Info.Get("current_price"); ok && p > 0 {
		s.CurrentPrice = fmt.Sprintf("$%.2f", p)
	}
	if r, ok := run.Groups.Metric(types.CategoryValuation, "pe_ratio"); ok {
		if pe, ok := r.Float(); ok {
			s.KeyMetrics = append(s.KeyMetrics, fmt.Sprintf("P/E Ratio: %sx (%s)", num(pe), r.Interpretation))
		}
	}
	if roe, ok := run.Groups.Value(types.CategoryProfitability, "roe"); ok {
		s.KeyMetrics = append(s.KeyMetrics, fmt.Sprintf("ROE: %s%%", num(roe)))
	}
	if run.OverallRisk != nil {
		s.RiskLevel = run.OverallRisk.Label
	}
	return s
}

func companyOverview(ds *types.CanonicalDataset, ticker string) CompanyOverview {
	opt := func(key string) *float64 {
		if v, ok := ds.Info.Get(key); ok {
			return &v
		}
		return nil
	}
	o := CompanyOverview{
		Ticker:           ticker,
		CompanyName:      orUnknown(ds.Meta.CompanyName),
		Sector:           orUnknown(ds.Meta.Sector),
		Industry:         orUnknown(ds.Meta.Industry),
		CurrentPrice:     opt("current_price"),
		FiftyTwoWeekHigh: opt("fifty_two_week_high"),
		FiftyTwoWeekLow:  opt("fifty_two_week_low"),
	}
	if mc, ok := ds.MarketCap(); ok {
		o.MarketCap = &mc
	}
	return o
}

// recommend weighs a handful of headline metrics and the overall risk
// flags into an outlook.
func recommend(groups types.MetricGroups, risk *types.OverallRiskAssessment) Recommendation {
	rec := Recommendation{
		Positives:      []string{},
		Concerns:       []string{},
		Considerations: append([]string(nil), considerations...),
	}

	if roe, ok := groups.Value(types.CategoryProfitability, "roe"); ok && roe > 15 {
		rec.Positives = append(rec.Positives, fmt.Sprintf("Strong ROE of %s%%", num(roe)))
	}
	if cr, ok := groups.Value(types.CategoryLiquidity, "current_ratio"); ok {
		switch {
		case cr > 1.5:
			rec.Positives = append(rec.Positives, "Healthy liquidity position")
		case cr > 0 && cr < 1:
			rec.Concerns = append(rec.Concerns, "Low current ratio indicates liquidity risk")
		}
	}
	if peg, ok := groups.Value(types.CategoryValuation, "peg_ratio"); ok {
		switch {
		case peg > 0 && peg < 1:
			rec.Positives = append(rec.Positives, "PEG < 1 suggests undervaluation")
		case peg > 2:
			rec.Concerns = append(rec.Concerns, "PEG > 2 suggests premium valuation")
		}
	}
	if risk != nil {
		rec.Concerns = append(rec.Concerns, risk.Flags...)
	}

	switch {
	case len(rec.Positives) > len(rec.Concerns):
		rec.Outlook = OutlookPositive
	case len(rec.Concerns) > len(rec.Positives):
		rec.Outlook = OutlookCautious
	default:
		rec.Outlook = OutlookNeutral
	}
	return rec
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// num prints a rounded metric value without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var acronyms = map[string]string{
	"roa": "ROA", "roe": "ROE", "roic": "ROIC", "pe": "P/E", "peg": "PEG",
	"ev": "EV", "ebitda": "EBITDA", "eps": "EPS", "fcf": "FCF", "var": "VaR",
}

// displayName turns a metric key such as "ev_to_ebitda" into "EV To EBITDA".
func displayName(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if a, ok := acronyms[p]; ok {
			parts[i] = a
			continue
		}
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
