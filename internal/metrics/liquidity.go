package metrics

import "stock-analysis-pipeline/internal/types"

func CurrentRatio(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Current Assets / Current Liabilities"
	if v, ok := info(ds, "current_ratio"); ok {
		return success(v, types.UnitRatio, formula, types.SourcePrecomputed, interpretCurrentRatio(v))
	}
	if bal, ok := latestBalance(ds); ok {
		ca, okCA := bal.Get("Current Assets")
		cl, okCL := bal.Get("Current Liabilities")
		if okCA && okCL && cl > 0 {
			v := ca / cl
			return success(v, types.UnitRatio, formula, types.SourceFundamentals, interpretCurrentRatio(v))
		}
	}
	return unavailable("current ratio data not available (needs current_ratio or Current Assets and Current Liabilities)")
}

func QuickRatio(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "(Current Assets - Inventory) / Current Liabilities"
	if v, ok := info(ds, "quick_ratio"); ok {
		return success(v, types.UnitRatio, formula, types.SourcePrecomputed, interpretQuickRatio(v))
	}
	if bal, ok := latestBalance(ds); ok {
		ca, okCA := bal.Get("Current Assets")
		cl, okCL := bal.Get("Current Liabilities")
		inv, okInv := bal.Get("Inventory")
		if !okInv {
			// A balance sheet without an inventory line holds none.
			inv, okInv = 0, okCA
		}
		if okCA && okCL && okInv && cl > 0 {
			v := (ca - inv) / cl
			return success(v, types.UnitRatio, formula, types.SourceFundamentals, interpretQuickRatio(v))
		}
	}
	return unavailable("quick ratio data not available (needs quick_ratio or Current Assets and Current Liabilities)")
}

func CashRatio(ds *types.CanonicalDataset) types.MetricResult {
	bal, ok := latestBalance(ds)
	if !ok {
		return unavailable("cash ratio requires balance sheet data")
	}
	cash, okCash := bal.First("Cash And Cash Equivalents", "Cash Cash Equivalents And Short Term Investments")
	cl, okCL := bal.Get("Current Liabilities")
	if !okCash || !okCL || cl <= 0 {
		return unavailable("cash ratio requires Cash And Cash Equivalents and Current Liabilities")
	}
	v := cash / cl
	return success(v, types.UnitRatio, "Cash / Current Liabilities", types.SourceFundamentals, interpretCashRatio(v))
}

func WorkingCapital(ds *types.CanonicalDataset) types.MetricResult {
	bal, ok := latestBalance(ds)
	if !ok {
		return unavailable("working capital requires balance sheet data")
	}
	ca, okCA := bal.Get("Current Assets")
	cl, okCL := bal.Get("Current Liabilities")
	if !okCA || !okCL {
		return unavailable("working capital requires Current Assets and Current Liabilities")
	}
	wc := ca - cl
	interp := "Negative - potential liquidity concern"
	if wc > 0 {
		interp = "Positive"
	}
	return billions(wc, "Current Assets - Current Liabilities", types.SourceFundamentals, interp)
}
