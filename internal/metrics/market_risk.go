package metrics

import (
	"fmt"
	"math"

	"stock-analysis-pipeline/internal/ta"
	"stock-analysis-pipeline/internal/types"
)

const (
	tradingDays      = 252
	riskFreeRate     = 0.05
	marketReturn     = 0.10
	minCloses        = 30
	minDrawdownDays  = 20
	minAlphaReturns  = 20
	maxDailyMove     = 0.5
	maxAbsoluteAlpha = 200
)

func insufficientPrices(need, got int) types.MetricResult {
	return unavailable(fmt.Sprintf("insufficient price history: need at least %d valid closing prices, have %d", need, got))
}

func Beta(ds *types.CanonicalDataset) types.MetricResult {
	v, ok := info(ds, "beta")
	if !ok {
		return unavailable("beta not available")
	}
	return success(v, types.UnitDimensionless, "Covariance(Stock, Market) / Variance(Market)", types.SourcePrecomputed, interpretBeta(v))
}

// Alpha is Jensen's alpha from compounded daily returns annualized over the
// elapsed trading days.
func Alpha(ds *types.CanonicalDataset) types.MetricResult {
	beta, ok := info(ds, "beta")
	if !ok {
		return unavailable("alpha requires beta and at least 30 days of prices")
	}
	closes := ds.DatedCloses()
	if len(closes) < minCloses {
		return insufficientPrices(minCloses, len(closes))
	}
	growth, n := ta.CompoundedGrowth(closes, maxDailyMove)
	if n < minAlphaReturns {
		return unavailable(fmt.Sprintf("insufficient valid daily returns for alpha: need %d, have %d", minAlphaReturns, n))
	}
	years := float64(n) / tradingDays
	annualized := math.Pow(growth, 1/years) - 1
	expected := riskFreeRate + beta*(marketReturn-riskFreeRate)
	alpha := (annualized - expected) * 100
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) || math.Abs(alpha) > maxAbsoluteAlpha {
		return unavailable(fmt.Sprintf("alpha calculation yielded an unrealistic value (|alpha| > %d%%)", maxAbsoluteAlpha))
	}
	return success(alpha, types.UnitPercent, "Annualized(∏(1+r_daily)) - [Rf + β × (Rm - Rf)]",
		types.SourceCompoundedReturns, interpretAlpha(round2(alpha)))
}

func Volatility(ds *types.CanonicalDataset) types.MetricResult {
	closes := ds.Closes()
	if len(closes) < minCloses {
		return insufficientPrices(minCloses, len(closes))
	}
	v := ta.StdDev(ta.Returns(closes)) * math.Sqrt(tradingDays) * 100
	return success(v, types.UnitPercent, "StdDev(Daily Returns) × √252 × 100", types.SourcePriceHistory, interpretVolatility(round2(v)))
}

func SharpeRatio(ds *types.CanonicalDataset) types.MetricResult {
	closes := ds.Closes()
	if len(closes) < minCloses {
		return insufficientPrices(minCloses, len(closes))
	}
	annualReturn := (closes[len(closes)-1]/closes[0] - 1) * (tradingDays / float64(len(closes)))
	annualVol := ta.StdDev(ta.Returns(closes)) * math.Sqrt(tradingDays)
	if annualVol == 0 {
		return unavailable("Sharpe ratio undefined for zero volatility")
	}
	v := (annualReturn - riskFreeRate) / annualVol
	return success(v, types.UnitDimensionless, "(Annual Return - Risk-Free Rate) / Annual Volatility", types.SourcePriceHistory, interpretSharpe(round2(v)))
}

func MaxDrawdown(ds *types.CanonicalDataset) types.MetricResult {
	closes := ds.Closes()
	if len(closes) < minDrawdownDays {
		return insufficientPrices(minDrawdownDays, len(closes))
	}
	return percent(ta.MaxDrawdown(closes), "(Peak - Trough) / Peak × 100", types.SourcePriceHistory, interpretMaxDrawdown)
}

func ValueAtRisk95(ds *types.CanonicalDataset) types.MetricResult {
	closes := ds.Closes()
	if len(closes) < minCloses {
		return insufficientPrices(minCloses, len(closes))
	}
	v := math.Abs(ta.Percentile(ta.Returns(closes), 5) * 100)
	r := round2(v)
	return success(v, types.UnitPercent, "5th percentile of daily returns × 100", types.SourcePriceHistory,
		fmt.Sprintf("95%% confident daily loss won't exceed %.2f%%", r))
}
