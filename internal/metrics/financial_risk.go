package metrics

import (
	"fmt"
	"strings"

	"stock-analysis-pipeline/internal/types"
)

// AltmanZScore requires every input line; a partial score is not reported.
func AltmanZScore(ds *types.CanonicalDataset) types.MetricResult {
	bal, okBal := latestBalance(ds)
	inc, okInc := latestIncome(ds)
	if !okBal || !okInc {
		return unavailable("Altman Z-Score requires balance sheet and income statement data")
	}
	var missing []string
	need := func(v types.Values, label string, keys ...string) float64 {
		f, ok := v.First(keys...)
		if !ok {
			missing = append(missing, label)
		}
		return f
	}
	ta := need(bal, "Total Assets", "Total Assets")
	ca := need(bal, "Current Assets", "Current Assets")
	cl := need(bal, "Current Liabilities", "Current Liabilities")
	re := need(bal, "Retained Earnings", "Retained Earnings")
	tl := need(bal, "Total Liabilities", "Total Liabilities Net Minority Interest", "Total Liabilities")
	ebit := need(inc, "EBIT", "EBIT", "Operating Income")
	rev := need(inc, "Total Revenue", revenueItems...)
	mc, ok := ds.MarketCap()
	if !ok {
		missing = append(missing, "market cap")
	}
	if len(missing) > 0 {
		return unavailable(fmt.Sprintf("Altman Z-Score missing required inputs: %s", strings.Join(missing, ", ")))
	}
	if ta <= 0 || tl <= 0 {
		return unavailable("Altman Z-Score requires positive Total Assets and Total Liabilities")
	}
	z := 1.2*(ca-cl)/ta + 1.4*re/ta + 3.3*ebit/ta + 0.6*mc/tl + 1.0*rev/ta
	return success(z, types.UnitDimensionless,
		"1.2×(WC/TA) + 1.4×(RE/TA) + 3.3×(EBIT/TA) + 0.6×(MC/TL) + 1.0×(Rev/TA)",
		types.SourceFundamentals, interpretZScore(round2(z)))
}

// ratioInput returns the raw upstream field when present, otherwise the
// value of the derived calculator.
func ratioInput(ds *types.CanonicalDataset, key string, derive Calculator) (float64, bool) {
	if v, ok := info(ds, key); ok {
		return v, true
	}
	return derive(ds).Float()
}

func CreditRiskScore(ds *types.CanonicalDataset) types.MetricResult {
	de, okDE := ratioInput(ds, "debt_to_equity", DebtToEquity)
	cr, okCR := ratioInput(ds, "current_ratio", CurrentRatio)
	if !okDE && !okCR {
		return unavailable("credit risk score requires debt-to-equity or current ratio")
	}
	s := 50.0
	if okDE {
		de = normalizeDebtToEquity(de)
		switch {
		case de < 0.5:
			s -= 20
		case de < 1:
			s -= 10
		case de < 2:
			s += 10
		default:
			s += 25
		}
	}
	if okCR {
		switch {
		case cr > 2:
			s -= 15
		case cr > 1.5:
			s -= 5
		case cr < 1:
			s += 20
		}
	}
	return score(s, "Composite of D/E ratio and current ratio", interpretRiskScore("credit")(s))
}

func LiquidityRiskScore(ds *types.CanonicalDataset) types.MetricResult {
	cr, okCR := ratioInput(ds, "current_ratio", CurrentRatio)
	qr, okQR := ratioInput(ds, "quick_ratio", QuickRatio)
	if !okCR && !okQR {
		return unavailable("liquidity risk score requires current ratio or quick ratio")
	}
	s := 50.0
	if okCR {
		switch {
		case cr > 2:
			s -= 25
		case cr > 1.5:
			s -= 15
		case cr > 1:
			s -= 5
		case cr < 0.8:
			s += 25
		}
	}
	if okQR {
		switch {
		case qr > 1.5:
			s -= 15
		case qr > 1:
			s -= 5
		case qr < 0.5:
			s += 15
		}
	}
	return score(s, "Composite of current ratio and quick ratio", interpretRiskScore("liquidity")(s))
}

// marginInput returns a margin as a fraction, from info or derived fundamentals.
func marginInput(ds *types.CanonicalDataset, key string, items ...string) (float64, bool) {
	if v, ok := info(ds, key); ok {
		return v, true
	}
	return marginFromIncome(ds, items...)
}

func OperationalRiskScore(ds *types.CanonicalDataset) types.MetricResult {
	om, okOM := marginInput(ds, "operating_margins", "Operating Income", "EBIT")
	pm, okPM := marginInput(ds, "profit_margins", "Net Income")
	if !okOM && !okPM {
		return unavailable("operational risk score requires operating or profit margins")
	}
	s := 50.0
	if okOM {
		om *= 100
		switch {
		case om > 20:
			s -= 20
		case om > 10:
			s -= 10
		case om > 5:
			s -= 5
		case om < 0:
			s += 25
		}
	}
	if okPM {
		pm *= 100
		switch {
		case pm > 15:
			s -= 15
		case pm > 5:
			s -= 5
		case pm < 0:
			s += 20
		}
	}
	return score(s, "Composite of operating and profit margins", interpretRiskScore("operational")(s))
}
