package report

import (
	"fmt"

	"stock-analysis-pipeline/internal/metrics"
	"stock-analysis-pipeline/internal/types"
)

// MetricLine is one display row. Value reads "N/A (reason)" for metrics that
// are known not to apply.
type MetricLine struct {
	Key            string `json:"key"`
	Name           string `json:"name"`
	Value          string `json:"value"`
	Interpretation string `json:"interpretation,omitempty"`
	Source         string `json:"source,omitempty"`
}

var sectionTitles = map[types.Category]string{
	types.CategoryProfitability: "Profitability",
	types.CategoryLiquidity:     "Liquidity",
	types.CategoryLeverage:      "Leverage",
	types.CategoryEfficiency:    "Efficiency",
	types.CategoryGrowth:        "Growth",
	types.CategoryCashflow:      "Cash Flow",
	types.CategoryValuation:     "Valuation",
	types.CategoryMarketRisk:    "Market Risk",
	types.CategoryFinancialRisk: "Financial Risk",
}

// section formats a group in registry order. Errored metrics are counted
// but not listed.
func section(reg metrics.Registry, g types.MetricGroup) Section {
	s := Section{Category: reg.Category, Title: sectionTitles[reg.Category], Lines: []MetricLine{}}
	for _, key := range reg.Keys() {
		r, ok := g[key]
		if !ok {
			continue
		}
		if r.Status != types.StatusSuccess {
			s.Unavailable++
			continue
		}
		s.Lines = append(s.Lines, MetricLine{
			Key:            key,
			Name:           displayName(key),
			Value:          formatValue(r),
			Interpretation: r.Interpretation,
			Source:         r.Source,
		})
	}
	return s
}

func formatValue(r types.MetricResult) string {
	if r.Value == nil {
		reason := r.NullReason
		if reason == "" {
			reason = "Data not available"
		}
		return fmt.Sprintf("N/A (%s)", reason)
	}
	v := *r.Value
	switch r.Unit {
	case types.UnitPercent:
		return num(v) + "%"
	case types.UnitCurrencyBillions:
		return fmt.Sprintf("$%sB", num(v))
	case types.UnitCurrency:
		return "$" + num(v)
	case types.UnitScore:
		return num(v) + "/100"
	case types.UnitDays:
		return num(v) + " days"
	case types.UnitRatio:
		return num(v) + "x"
	default:
		return num(v)
	}
}
