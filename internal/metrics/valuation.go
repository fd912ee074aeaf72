package metrics

import (
	"fmt"
	"math"

	"stock-analysis-pipeline/internal/types"
)

func PERatio(ds *types.CanonicalDataset) types.MetricResult {
	if pe, ok := positiveInfo(ds, "trailing_pe"); ok {
		return success(pe, types.UnitRatio, "Stock Price / Earnings Per Share (TTM)", types.SourcePrecomputed, interpretPE(pe))
	}
	price, okPrice := positiveInfo(ds, "current_price")
	eps, okEPS := info(ds, "earnings_per_share")
	if okPrice && okEPS && eps > 0 {
		pe := price / eps
		return success(pe, types.UnitRatio, "Stock Price / Earnings Per Share", types.SourceInfo, interpretPE(pe))
	}
	if okEPS && eps < 0 {
		if fpe, ok := positiveInfo(ds, "forward_pe"); ok {
			return unavailable(fmt.Sprintf("Company has negative earnings (EPS: $%.2f). See Forward P/E (%.1fx) for future outlook.", eps, fpe))
		}
		return unavailable(fmt.Sprintf("Company has negative earnings (EPS: $%.2f) - P/E ratio not meaningful", eps))
	}
	return unavailable("P/E ratio not available (earnings data missing)")
}

func ForwardPE(ds *types.CanonicalDataset) types.MetricResult {
	if v, ok := positiveInfo(ds, "forward_pe"); ok {
		return success(v, types.UnitRatio, "Stock Price / Forward Earnings Per Share", types.SourcePrecomputed, interpretForwardPE(v))
	}
	price, okPrice := positiveInfo(ds, "current_price")
	feps, okFEPS := positiveInfo(ds, "forward_eps")
	if okPrice && okFEPS {
		v := price / feps
		return success(v, types.UnitRatio, "Stock Price / Forward Earnings Per Share", types.SourceForward, interpretForwardPE(v))
	}
	return unavailable("forward P/E not available (needs forward_pe or current_price and forward_eps)")
}

func PriceToBook(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Stock Price / Book Value Per Share"
	if v, ok := positiveInfo(ds, "price_to_book"); ok {
		return success(v, types.UnitRatio, formula, types.SourcePrecomputed, interpretPriceToBook(v))
	}
	price, okPrice := positiveInfo(ds, "current_price")
	bv, okBV := positiveInfo(ds, "book_value")
	if okPrice && okBV {
		v := price / bv
		return success(v, types.UnitRatio, formula, types.SourceInfo, interpretPriceToBook(v))
	}
	return unavailable("price-to-book not available (needs price_to_book or current_price and book_value)")
}

func PriceToSales(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Market Cap / Revenue (TTM)"
	if v, ok := positiveInfo(ds, "price_to_sales"); ok {
		return success(v, types.UnitRatio, formula, types.SourcePrecomputed, interpretPriceToSales(v))
	}
	mc, okMC := ds.MarketCap()
	rev, okRev := positiveInfo(ds, "revenue")
	if okMC && okRev && mc > 0 {
		v := mc / rev
		return success(v, types.UnitRatio, formula, types.SourceInfo, interpretPriceToSales(v))
	}
	return unavailable("price-to-sales not available (needs price_to_sales or market_cap and revenue)")
}

func EVToEBITDA(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Enterprise Value / EBITDA"
	if v, ok := positiveInfo(ds, "enterprise_to_ebitda"); ok {
		return success(v, types.UnitRatio, formula, types.SourcePrecomputed, interpretEVToEBITDA(v))
	}
	ev, okEV := positiveInfo(ds, "enterprise_value")
	if inc, ok := latestIncome(ds); ok && okEV {
		if ebitda, ok := inc.First("EBITDA", "Normalized EBITDA"); ok && ebitda > 0 {
			v := ev / ebitda
			return success(v, types.UnitRatio, formula, types.SourceFundamentals, interpretEVToEBITDA(v))
		}
	}
	return unavailable("EV/EBITDA not available (needs enterprise_to_ebitda or enterprise_value and EBITDA)")
}

// PEGRatio walks its fallbacks in a fixed order: upstream PEG, trailing P/E
// over earnings growth, forward P/E over the EPS growth implied by forward
// estimates, then forward P/E over earnings growth.
func PEGRatio(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "P/E Ratio / EPS Growth Rate"
	if v, ok := positiveInfo(ds, "peg_ratio"); ok {
		return success(v, types.UnitRatio, formula, types.SourcePrecomputed, interpretPEG(v))
	}
	pe, okPE := positiveInfo(ds, "trailing_pe")
	growth, okGrowth := positiveInfo(ds, "earnings_growth")
	if okPE && okGrowth {
		v := pe / (growth * 100)
		return success(v, types.UnitRatio, formula, types.SourceInfo, interpretPEG(v))
	}
	eps, okEPS := info(ds, "earnings_per_share")
	if fpe, ok := positiveInfo(ds, "forward_pe"); ok {
		if feps, okF := info(ds, "forward_eps"); okF && okEPS && eps > 0 {
			implied := (feps - eps) / math.Abs(eps) * 100
			if implied > 0 {
				v := fpe / implied
				return success(v, types.UnitRatio, "Forward P/E / Implied EPS Growth", types.SourceForward, interpretPEG(v))
			}
		}
		if okGrowth {
			v := fpe / (growth * 100)
			return success(v, types.UnitRatio, "Forward P/E / Earnings Growth Rate", types.SourceForward, interpretPEG(v))
		}
	}
	if okEPS && eps < 0 {
		return unavailable("Company has negative earnings - PEG ratio not meaningful")
	}
	return unavailable("PEG ratio not available (requires positive P/E and growth data)")
}

func EnterpriseValue(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Market Cap + Total Debt - Cash"
	interp := func(v float64) string {
		return fmt.Sprintf("Total enterprise value of $%.1fB", v/1e9)
	}
	if v, ok := info(ds, "enterprise_value"); ok {
		return billions(v, formula, types.SourcePrecomputed, interp(v))
	}
	mc, okMC := ds.MarketCap()
	bal, okBal := latestBalance(ds)
	if okMC && okBal {
		debt, okDebt := bal.First("Total Debt", "Long Term Debt")
		cash, okCash := bal.First("Cash And Cash Equivalents", "Cash Cash Equivalents And Short Term Investments")
		if okDebt && okCash {
			v := mc + debt - cash
			return billions(v, formula, types.SourceFundamentals, interp(v))
		}
	}
	return unavailable("enterprise value not available (needs enterprise_value or market cap, debt and cash)")
}

func EarningsYield(ds *types.CanonicalDataset) types.MetricResult {
	eps, okEPS := info(ds, "earnings_per_share")
	price, okPrice := positiveInfo(ds, "current_price")
	if !okEPS || eps == 0 || !okPrice {
		return unavailable("earnings yield not available (needs earnings_per_share and current_price)")
	}
	return percent(eps/price, "EPS / Stock Price × 100", types.SourceInfo, interpretEarningsYield)
}

func BookValuePerShare(ds *types.CanonicalDataset) types.MetricResult {
	v, ok := info(ds, "book_value")
	if !ok {
		return unavailable("book value per share not available")
	}
	return success(v, types.UnitCurrency, "Shareholders' Equity / Shares Outstanding", types.SourcePrecomputed,
		fmt.Sprintf("Net asset value of $%.2f per share", round2(v)))
}

// normalizeDividendYield accepts a yield quoted as a fraction (0.02) or as a
// percentage (2.0). Values that still exceed 20 after scaling are treated as
// double-scaled and divided by 100 again.
func normalizeDividendYield(raw float64) float64 {
	v := raw
	if raw <= 1 {
		v = raw * 100
	}
	if v > 20 {
		v /= 100
	}
	return v
}

func DividendYield(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Annual Dividend / Stock Price × 100"
	if raw, ok := info(ds, "dividend_yield"); ok {
		v := normalizeDividendYield(raw)
		return success(v, types.UnitPercent, formula, types.SourcePrecomputed, interpretDividendYield(round2(v)))
	}
	rate, okRate := positiveInfo(ds, "dividend_rate")
	price, okPrice := positiveInfo(ds, "current_price")
	if okRate && okPrice {
		return percent(rate/price, formula, types.SourceInfo, interpretDividendYield)
	}
	if rate, ok := info(ds, "dividend_rate"); ok && rate == 0 {
		return success(0, types.UnitPercent, formula, types.SourcePrecomputed, "Company does not pay dividends")
	}
	return unavailable("dividend data not available (needs dividend_yield or dividend_rate and current_price)")
}
