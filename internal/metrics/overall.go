package metrics

import (
	"strings"

	"stock-analysis-pipeline/internal/types"
)

// AssessOverallRisk builds qualitative risk flags from the market and
// financial risk groups.
func AssessOverallRisk(market, financial types.MetricGroup) types.OverallRiskAssessment {
	flags := []string{}
	value := func(g types.MetricGroup, key string) (float64, bool) {
		r, ok := g[key]
		if !ok {
			return 0, false
		}
		return r.Float()
	}

	if v, ok := value(market, "beta"); ok && v > 1.5 {
		flags = append(flags, "High beta - above-market volatility")
	}
	if v, ok := value(market, "volatility"); ok && v > 40 {
		flags = append(flags, "High volatility")
	}
	if v, ok := value(financial, "altman_z_score"); ok {
		if v < 1.81 {
			flags = append(flags, "Distress zone - elevated bankruptcy risk")
		} else if v < 2.99 {
			flags = append(flags, "Grey zone - monitor financial health")
		}
	}
	if v, ok := value(financial, "credit_risk_score"); ok && v > 70 {
		flags = append(flags, "High credit risk")
	}
	if v, ok := value(market, "max_drawdown"); ok && v > 30 {
		flags = append(flags, "Significant historical drawdown")
	}

	a := types.OverallRiskAssessment{Flags: flags, FlagCount: len(flags)}
	switch {
	case len(flags) == 0:
		a.Level, a.Label = types.RiskModerate, "Low to Moderate Risk"
	case len(flags) <= 2:
		a.Level, a.Label = types.RiskElevated, "Moderate to Elevated Risk"
	default:
		a.Level, a.Label = types.RiskHigh, "High Risk"
	}
	return a
}

// ValuationSummary condenses the valuation group into short signals.
func ValuationSummary(valuation types.MetricGroup) string {
	var signals []string
	if r, ok := valuation["pe_ratio"]; ok {
		if pe, ok := r.Float(); ok {
			if pe < 15 {
				signals = append(signals, "Low P/E suggests value opportunity or concerns")
			} else if pe > 30 {
				signals = append(signals, "High P/E indicates growth expectations")
			}
		}
	}
	if r, ok := valuation["peg_ratio"]; ok {
		if peg, ok := r.Float(); ok {
			if peg < 1 {
				signals = append(signals, "PEG < 1 suggests undervaluation relative to growth")
			} else if peg > 2 {
				signals = append(signals, "PEG > 2 suggests premium pricing")
			}
		}
	}
	if r, ok := valuation["price_to_book"]; ok {
		if pb, ok := r.Float(); ok && pb < 1 {
			signals = append(signals, "Trading below book value")
		}
	}
	if len(signals) == 0 {
		return "Fair valuation based on available metrics"
	}
	return strings.Join(signals, "; ")
}
