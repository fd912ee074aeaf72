package metrics

import "stock-analysis-pipeline/internal/types"

// normalizeDebtToEquity converts an upstream percentage-style D/E into a ratio.
func normalizeDebtToEquity(v float64) float64 {
	if v > 10 {
		return v / 100
	}
	return v
}

func DebtToEquity(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Total Debt / Shareholders' Equity"
	if v, ok := info(ds, "debt_to_equity"); ok {
		v = normalizeDebtToEquity(v)
		return success(v, types.UnitRatio, formula, types.SourcePrecomputed, interpretDebtToEquity(v))
	}
	if bal, ok := latestBalance(ds); ok {
		debt, okDebt := bal.First("Total Debt", "Long Term Debt")
		eq, okEq := bal.First("Stockholders Equity", "Total Equity Gross Minority Interest")
		if okDebt && okEq && eq > 0 {
			v := debt / eq
			return success(v, types.UnitRatio, formula, types.SourceFundamentals, interpretDebtToEquity(v))
		}
	}
	return unavailable("debt-to-equity data not available (needs debt_to_equity or Total Debt and Stockholders Equity)")
}

func DebtToAssets(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Total Debt / Total Assets"
	debt, okDebt := info(ds, "total_debt")
	assets, okAssets := info(ds, "total_assets")
	if okDebt && okAssets && assets > 0 {
		v := debt / assets
		return success(v, types.UnitRatio, formula, types.SourceInfo, interpretDebtToAssets(v))
	}
	if bal, ok := latestBalance(ds); ok {
		long, okLong := bal.First("Total Debt", "Long Term Debt")
		short, okShort := bal.First("Current Debt", "Short Long Term Debt")
		ta, okTA := bal.Get("Total Assets")
		if (okLong || okShort) && okTA && ta > 0 {
			v := (long + short) / ta
			return success(v, types.UnitRatio, formula, types.SourceFundamentals, interpretDebtToAssets(v))
		}
	}
	return unavailable("debt-to-assets data not available (needs total_debt and total_assets or balance sheet debt lines)")
}

// InterestCoverage is EBIT over interest expense. A company reporting EBIT
// without any interest expense is debt-free, which is not a data gap.
func InterestCoverage(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "EBIT / Interest Expense"
	inc, ok := latestIncome(ds)
	if !ok {
		return unavailable("interest coverage requires income statement data")
	}
	ebit, okEBIT := inc.First("EBIT", "Operating Income")
	if !okEBIT || ebit == 0 {
		return unavailable("interest coverage requires EBIT or Operating Income")
	}
	interest, okInt := inc.First("Interest Expense", "Interest Expense Non Operating")
	if !okInt || interest == 0 {
		if net, ok := inc.Get("Net Interest Income"); ok && net < 0 {
			interest, okInt = -net, true
		}
	}
	if !okInt || interest == 0 {
		return inapplicable(types.UnitRatio, formula,
			"No interest expense (debt-free company)",
			"Company has no interest expense - excellent financial position")
	}
	v := ebit / interest
	if v < 0 {
		v = -v
	}
	return success(v, types.UnitRatio, formula, types.SourceFundamentals, interpretInterestCoverage(v))
}
