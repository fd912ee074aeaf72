package metrics

import "stock-analysis-pipeline/internal/types"

const taxRate = 0.21

var revenueItems = []string{"Total Revenue", "Operating Revenue"}

// marginFromIncome derives item/revenue from the latest income statement.
func marginFromIncome(ds *types.CanonicalDataset, item ...string) (float64, bool) {
	inc, ok := latestIncome(ds)
	if !ok {
		return 0, false
	}
	num, ok := inc.First(item...)
	if !ok {
		return 0, false
	}
	rev, ok := inc.First(revenueItems...)
	if !ok || rev <= 0 {
		return 0, false
	}
	return num / rev, true
}

func GrossMargin(ds *types.CanonicalDataset) types.MetricResult {
	if v, ok := info(ds, "gross_margins"); ok {
		return percent(v, "(Revenue - COGS) / Revenue × 100", types.SourcePrecomputed, interpretGrossMargin)
	}
	if v, ok := marginFromIncome(ds, "Gross Profit"); ok {
		return percent(v, "Gross Profit / Revenue × 100", types.SourceFundamentals, interpretGrossMargin)
	}
	return unavailable("gross margin data not available (needs gross_margins or Gross Profit and Total Revenue)")
}

func OperatingMargin(ds *types.CanonicalDataset) types.MetricResult {
	if v, ok := info(ds, "operating_margins"); ok {
		return percent(v, "Operating Income / Revenue × 100", types.SourcePrecomputed, interpretOperatingMargin)
	}
	if v, ok := marginFromIncome(ds, "Operating Income", "EBIT"); ok {
		return percent(v, "Operating Income / Revenue × 100", types.SourceFundamentals, interpretOperatingMargin)
	}
	return unavailable("operating margin data not available (needs operating_margins or Operating Income and Total Revenue)")
}

func NetMargin(ds *types.CanonicalDataset) types.MetricResult {
	if v, ok := info(ds, "profit_margins"); ok {
		return percent(v, "Net Income / Revenue × 100", types.SourcePrecomputed, interpretNetMargin)
	}
	if v, ok := marginFromIncome(ds, "Net Income"); ok {
		return percent(v, "Net Income / Revenue × 100", types.SourceFundamentals, interpretNetMargin)
	}
	return unavailable("net margin data not available (needs profit_margins or Net Income and Total Revenue)")
}

func ROA(ds *types.CanonicalDataset) types.MetricResult {
	if v, ok := info(ds, "return_on_assets"); ok {
		return percent(v, "Net Income / Total Assets × 100", types.SourcePrecomputed, interpretROA)
	}
	inc, okInc := latestIncome(ds)
	bal, okBal := latestBalance(ds)
	if okInc && okBal {
		ni, okNI := inc.Get("Net Income")
		ta, okTA := bal.Get("Total Assets")
		if okNI && okTA && ta > 0 {
			return percent(ni/ta, "Net Income / Total Assets × 100", types.SourceFundamentals, interpretROA)
		}
	}
	return unavailable("ROA data not available (needs return_on_assets or Net Income and Total Assets)")
}

func ROE(ds *types.CanonicalDataset) types.MetricResult {
	if v, ok := info(ds, "return_on_equity"); ok {
		return percent(v, "Net Income / Shareholders' Equity × 100", types.SourcePrecomputed, interpretROE)
	}
	inc, okInc := latestIncome(ds)
	bal, okBal := latestBalance(ds)
	if okInc && okBal {
		ni, okNI := inc.Get("Net Income")
		eq, okEq := bal.First("Stockholders Equity", "Total Equity Gross Minority Interest")
		if okNI && okEq && eq > 0 {
			return percent(ni/eq, "Net Income / Shareholders' Equity × 100", types.SourceFundamentals, interpretROE)
		}
	}
	return unavailable("ROE data not available (needs return_on_equity or Net Income and Stockholders Equity)")
}

// ROIC has no upstream field; it is always derived. Missing debt or cash
// lines count as none held, missing operating income or equity abort.
func ROIC(ds *types.CanonicalDataset) types.MetricResult {
	inc, okInc := latestIncome(ds)
	bal, okBal := latestBalance(ds)
	if !okInc || !okBal {
		return unavailable("ROIC requires income statement and balance sheet data")
	}
	opInc, ok := inc.First("Operating Income", "EBIT")
	if !ok {
		return unavailable("ROIC requires Operating Income or EBIT")
	}
	equity, ok := bal.First("Stockholders Equity", "Total Equity Gross Minority Interest")
	if !ok {
		return unavailable("ROIC requires Stockholders Equity")
	}
	debt, _ := bal.First("Total Debt", "Long Term Debt")
	cash, _ := bal.Get("Cash And Cash Equivalents")
	invested := debt + equity - cash
	if invested <= 0 {
		return unavailable("invested capital is not positive")
	}
	nopat := opInc * (1 - taxRate)
	return percent(nopat/invested, "NOPAT / (Total Debt + Equity - Cash) × 100", types.SourceFundamentals, interpretROIC)
}
