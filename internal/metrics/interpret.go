package metrics

import "fmt"

// band is one threshold of a descending or ascending interpretation ladder.
type band struct {
	limit float64
	label string
}

// above returns the label of the first band whose limit v exceeds.
func above(v float64, bands []band, otherwise string) string {
	for _, b := range bands {
		if v > b.limit {
			return b.label
		}
	}
	return otherwise
}

// below returns the label of the first band whose limit v is under.
func below(v float64, bands []band, otherwise string) string {
	for _, b := range bands {
		if v < b.limit {
			return b.label
		}
	}
	return otherwise
}

func interpretGrossMargin(v float64) string {
	return above(v, []band{
		{50, "Excellent - strong pricing power"},
		{30, "Good - healthy margins"},
		{20, "Moderate - competitive industry"},
	}, "Low - may indicate pricing pressure")
}

func interpretOperatingMargin(v float64) string {
	return above(v, []band{
		{25, "Excellent - efficient operations"},
		{15, "Good - well-managed costs"},
		{10, "Moderate"},
	}, "Low - may need cost improvements")
}

func interpretNetMargin(v float64) string {
	return above(v, []band{
		{20, "Excellent"},
		{10, "Good"},
		{5, "Moderate"},
	}, "Low")
}

func interpretROA(v float64) string {
	return above(v, []band{
		{15, "Excellent - highly efficient asset utilization"},
		{10, "Good - efficient use of assets"},
		{5, "Moderate"},
	}, "Low - may indicate inefficiency")
}

func interpretROE(v float64) string {
	return above(v, []band{
		{20, "Excellent - strong returns for shareholders"},
		{15, "Good"},
		{10, "Moderate"},
	}, "Low")
}

func interpretROIC(v float64) string {
	return above(v, []band{
		{15, "Excellent - creating significant value"},
		{10, "Good - creating value"},
		{5, "Moderate"},
	}, "Low - may be destroying value")
}

func interpretCurrentRatio(v float64) string {
	return above(v, []band{
		{2, "Strong liquidity"},
		{1.5, "Adequate liquidity"},
		{1, "Acceptable"},
	}, "Potential liquidity risk")
}

func interpretQuickRatio(v float64) string {
	return above(v, []band{
		{1.5, "Strong liquidity"},
		{1, "Adequate liquidity"},
	}, "May face short-term challenges")
}

func interpretCashRatio(v float64) string {
	return above(v, []band{
		{1, "Very strong cash position"},
		{0.5, "Adequate cash"},
	}, "Limited cash cushion")
}

func interpretDebtToEquity(v float64) string {
	return below(v, []band{
		{0.5, "Conservative - low leverage"},
		{1, "Moderate leverage"},
		{2, "Higher leverage"},
	}, "High leverage - potential risk")
}

func interpretDebtToAssets(v float64) string {
	return below(v, []band{
		{0.3, "Conservative - low debt reliance"},
		{0.5, "Moderate"},
	}, "High debt reliance")
}

func interpretInterestCoverage(v float64) string {
	return above(v, []band{
		{10, "Excellent - easily covers interest"},
		{5, "Good"},
		{2, "Adequate"},
	}, "Low - potential debt service risk")
}

func interpretAssetTurnover(v float64) string {
	return above(v, []band{
		{1.5, "Efficient asset utilization"},
		{1, "Moderate efficiency"},
	}, "Lower efficiency - capital intensive")
}

func interpretGrowth(what string) func(float64) string {
	return func(v float64) string {
		return above(v, []band{
			{20, "Strong " + what + " growth"},
			{10, "Healthy " + what + " growth"},
			{0, "Modest " + what + " growth"},
			{-10, "Slight " + what + " decline"},
		}, "Significant "+what+" decline")
	}
}

func interpretPE(v float64) string {
	return below(v, []band{
		{15, "Low valuation - potentially undervalued or low growth"},
		{25, "Moderate valuation"},
		{40, "High valuation - high growth expected"},
	}, "Very high valuation - requires exceptional growth")
}

func interpretForwardPE(v float64) string {
	return below(v, []band{
		{15, "Low forward valuation"},
		{20, "Moderate forward valuation"},
		{30, "High forward valuation"},
	}, "Very high forward valuation")
}

func interpretPriceToBook(v float64) string {
	return below(v, []band{
		{1, "Trading below book value - potentially undervalued"},
		{3, "Moderate valuation relative to assets"},
		{5, "Premium valuation"},
	}, "High premium - asset-light or intangible-heavy business")
}

func interpretPriceToSales(v float64) string {
	return below(v, []band{
		{2, "Low valuation relative to sales"},
		{5, "Moderate valuation"},
		{10, "High valuation"},
	}, "Very high valuation relative to sales")
}

func interpretEVToEBITDA(v float64) string {
	return below(v, []band{
		{10, "Low valuation - potentially undervalued"},
		{15, "Moderate valuation"},
		{20, "High valuation"},
	}, "Very high valuation")
}

func interpretPEG(v float64) string {
	return below(v, []band{
		{1, "Potentially undervalued relative to growth"},
		{1.5, "Fair valuation relative to growth"},
		{2, "Premium valuation relative to growth"},
	}, "High valuation relative to growth rate")
}

func interpretEarningsYield(v float64) string {
	return above(v, []band{
		{8, "High earnings yield - potentially undervalued"},
		{5, "Moderate earnings yield"},
		{2, "Low earnings yield - growth stock characteristics"},
	}, "Very low earnings yield")
}

func interpretDividendYield(v float64) string {
	return above(v, []band{
		{5, "High yield - income stock"},
		{2, "Moderate yield"},
		{0, "Low yield - growth focused"},
	}, "No dividend")
}

func interpretBeta(v float64) string {
	return below(v, []band{
		{0.8, "Low volatility - defensive stock"},
		{1.2, "Average market volatility"},
		{1.5, "Above average volatility"},
	}, "High volatility - aggressive stock")
}

func interpretAlpha(v float64) string {
	return above(v, []band{
		{10, "Strong outperformance vs market"},
		{5, "Moderate outperformance"},
		{0, "Slight outperformance"},
		{-5, "Slight underperformance"},
	}, "Underperforming market expectations")
}

func interpretVolatility(v float64) string {
	return below(v, []band{
		{20, "Low volatility"},
		{30, "Moderate volatility"},
		{50, "High volatility"},
	}, "Very high volatility")
}

func interpretSharpe(v float64) string {
	return above(v, []band{
		{1.5, "Excellent risk-adjusted return"},
		{1, "Good risk-adjusted return"},
		{0.5, "Moderate risk-adjusted return"},
		{0, "Low but positive risk-adjusted return"},
	}, "Negative risk-adjusted return")
}

func interpretMaxDrawdown(v float64) string {
	return below(v, []band{
		{10, "Low drawdown - stable"},
		{20, "Moderate drawdown"},
		{30, "Significant drawdown"},
	}, "Severe drawdown - high risk")
}

func interpretZScore(v float64) string {
	return above(v, []band{
		{2.99, "Safe Zone - low bankruptcy risk"},
		{1.81, "Grey Zone - moderate risk, needs monitoring"},
	}, "Distress Zone - high bankruptcy risk")
}

func interpretRiskScore(kind string) func(float64) string {
	return func(v float64) string {
		return below(v, []band{
			{30, fmt.Sprintf("Low %s risk", kind)},
			{50, fmt.Sprintf("Moderate %s risk", kind)},
			{70, fmt.Sprintf("Elevated %s risk", kind)},
		}, fmt.Sprintf("High %s risk", kind))
	}
}
