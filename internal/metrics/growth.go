package metrics

import (
	"fmt"
	"math"

	"stock-analysis-pipeline/internal/types"
)

const insufficientPeriods = "insufficient historical periods"

// periodGrowth computes period-over-period growth of a line item over the two
// most recent reporting periods of stmt.
func periodGrowth(stmt types.Statement, label, formula string, items ...string) types.MetricResult {
	if len(stmt.Periods()) < 2 {
		return unavailable(insufficientPeriods)
	}
	cur, prior, ok := lastTwo(stmt, items...)
	if !ok {
		return unavailable(fmt.Sprintf("%s not reported for the two most recent periods", items[0]))
	}
	if prior == 0 {
		return unavailable(fmt.Sprintf("prior period %s is zero", items[0]))
	}
	return percent((cur-prior)/math.Abs(prior), formula, types.SourceFundamentals, interpretGrowth(label))
}

func RevenueGrowth(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "(Current Revenue - Prior Revenue) / Prior Revenue × 100"
	if v, ok := info(ds, "revenue_growth"); ok {
		return percent(v, formula, types.SourcePrecomputed, interpretGrowth("revenue"))
	}
	return periodGrowth(ds.Fundamentals.IncomeStatement, "revenue", formula, revenueItems...)
}

func NetIncomeGrowth(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "(Current Net Income - Prior Net Income) / Prior Net Income × 100"
	if v, ok := info(ds, "earnings_growth"); ok {
		return percent(v, formula, types.SourcePrecomputed, interpretGrowth("earnings"))
	}
	return periodGrowth(ds.Fundamentals.IncomeStatement, "earnings", formula, "Net Income", "Net Income Common Stockholders")
}

// EPSGrowth prefers the forward-versus-trailing estimate, then reported EPS
// across the two latest periods.
func EPSGrowth(ds *types.CanonicalDataset) types.MetricResult {
	feps, okF := info(ds, "forward_eps")
	eps, okT := info(ds, "earnings_per_share")
	if okF && okT && eps != 0 {
		return percent((feps-eps)/math.Abs(eps),
			"(Forward EPS - Trailing EPS) / Trailing EPS × 100", types.SourceForward, interpretGrowth("EPS"))
	}
	return periodGrowth(ds.Fundamentals.IncomeStatement, "EPS",
		"(Current EPS - Prior EPS) / Prior EPS × 100", "Diluted EPS", "Basic EPS")
}

func FCFGrowth(ds *types.CanonicalDataset) types.MetricResult {
	return periodGrowth(ds.Fundamentals.CashflowStatement, "free cash flow",
		"(Current FCF - Prior FCF) / Prior FCF × 100", "Free Cash Flow")
}

func OperatingIncomeGrowth(ds *types.CanonicalDataset) types.MetricResult {
	return periodGrowth(ds.Fundamentals.IncomeStatement, "operating income",
		"(Current EBIT - Prior EBIT) / Prior EBIT × 100", "Operating Income", "EBIT")
}
