package metrics

import "stock-analysis-pipeline/internal/types"

func fcfInterpretation(v float64) string {
	if v > 0 {
		return "Positive"
	}
	return "Negative - cash burn"
}

func FreeCashFlow(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Operating Cash Flow - Capital Expenditures"
	if v, ok := info(ds, "free_cash_flow"); ok {
		return billions(v, formula, types.SourcePrecomputed, fcfInterpretation(v))
	}
	if cf, ok := latestCashflow(ds); ok {
		if v, ok := cf.Get("Free Cash Flow"); ok {
			return billions(v, formula, types.SourceFundamentals, fcfInterpretation(v))
		}
		ocf, okOCF := cf.Get("Operating Cash Flow")
		capex, okCapex := cf.Get("Capital Expenditure")
		if okOCF && okCapex {
			// Capital expenditure is reported as an outflow (negative).
			v := ocf + capex
			if capex > 0 {
				v = ocf - capex
			}
			return billions(v, formula, types.SourceFundamentals, fcfInterpretation(v))
		}
	}
	return unavailable("free cash flow data not available (needs free_cash_flow or cash flow statement)")
}

// operatingCashFlow returns OCF with its provenance.
func operatingCashFlow(ds *types.CanonicalDataset) (float64, string, bool) {
	if v, ok := info(ds, "operating_cash_flow"); ok && v != 0 {
		return v, types.SourceInfo, true
	}
	if cf, ok := latestCashflow(ds); ok {
		if v, ok := cf.Get("Operating Cash Flow"); ok && v != 0 {
			return v, types.SourceFundamentals, true
		}
	}
	return 0, "", false
}

func OperatingCashFlowRatio(ds *types.CanonicalDataset) types.MetricResult {
	ocf, source, ok := operatingCashFlow(ds)
	if !ok {
		return unavailable("operating cash flow ratio requires operating cash flow")
	}
	bal, ok := latestBalance(ds)
	if !ok {
		return unavailable("operating cash flow ratio requires balance sheet data")
	}
	cl, ok := bal.Get("Current Liabilities")
	if !ok || cl <= 0 {
		return unavailable("operating cash flow ratio requires Current Liabilities")
	}
	v := ocf / cl
	interp := "Weak cash coverage"
	if round2(v) > 1 {
		interp = "Strong"
	}
	return success(v, types.UnitRatio, "Operating Cash Flow / Current Liabilities", source, interp)
}

func CashFlowMargin(ds *types.CanonicalDataset) types.MetricResult {
	ocf, source, ok := operatingCashFlow(ds)
	if !ok {
		return unavailable("cash flow margin requires operating cash flow")
	}
	rev, ok := positiveInfo(ds, "revenue")
	if !ok {
		if inc, okInc := latestIncome(ds); okInc {
			rev, ok = inc.First(revenueItems...)
			source = types.SourceFundamentals
		}
	}
	if !ok || rev <= 0 {
		return unavailable("cash flow margin requires revenue")
	}
	return percent(ocf/rev, "Operating Cash Flow / Revenue × 100", source, interpretNetMargin)
}
