package metrics

import (
	"fmt"
	"math"

	"stock-analysis-pipeline/internal/types"
)

// Calculator maps a dataset to one metric result. Calculators are pure and
// must not mutate the dataset.
type Calculator func(ds *types.CanonicalDataset) types.MetricResult

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func success(v float64, unit types.Unit, formula, source, interpretation string) types.MetricResult {
	r := round2(v)
	return types.MetricResult{
		Status:         types.StatusSuccess,
		Value:          &r,
		Unit:           unit,
		Formula:        formula,
		Source:         source,
		Interpretation: interpretation,
	}
}

func percent(ratio float64, formula, source string, interpret func(float64) string) types.MetricResult {
	v := round2(ratio * 100)
	return success(v, types.UnitPercent, formula, source, interpret(v))
}

func billions(v float64, formula, source, interpretation string) types.MetricResult {
	return success(v/1e9, types.UnitCurrencyBillions, formula, source, interpretation)
}

func score(v float64, formula, interpretation string) types.MetricResult {
	s := math.Round(math.Max(0, math.Min(100, v)))
	return types.MetricResult{
		Status:         types.StatusSuccess,
		Value:          &s,
		Unit:           types.UnitScore,
		Formula:        formula,
		Source:         types.SourceComposite,
		Interpretation: interpretation,
	}
}

func inapplicable(unit types.Unit, formula, reason, interpretation string) types.MetricResult {
	return types.MetricResult{
		Status:         types.StatusSuccess,
		Unit:           unit,
		Formula:        formula,
		Interpretation: interpretation,
		NullReason:     reason,
	}
}

func unavailable(reason string) types.MetricResult {
	return types.MetricResult{
		Status:     types.StatusError,
		NullReason: reason,
	}
}

// guard runs calc and turns a panic into an error result. A non-finite value
// is also reported as an error rather than surfaced.
func guard(key string, calc Calculator, ds *types.CanonicalDataset) (res types.MetricResult) {
	defer func() {
		if r := recover(); r != nil {
			res = unavailable(fmt.Sprintf("calculation fault in %s: %v", key, r))
		}
	}()
	res = calc(ds)
	if res.Value != nil && (math.IsNaN(*res.Value) || math.IsInf(*res.Value, 0)) {
		return unavailable(fmt.Sprintf("%s produced a non-finite value", key))
	}
	if res.Status == types.StatusError {
		res.Value = nil
	}
	return res
}

// info returns a finite precomputed field.
func info(ds *types.CanonicalDataset, key string) (float64, bool) {
	return ds.Info.Get(key)
}

func positiveInfo(ds *types.CanonicalDataset, key string) (float64, bool) {
	v, ok := ds.Info.Get(key)
	return v, ok && v > 0
}

func latestIncome(ds *types.CanonicalDataset) (types.Values, bool) {
	return ds.Fundamentals.IncomeStatement.Latest()
}

func latestBalance(ds *types.CanonicalDataset) (types.Values, bool) {
	return ds.Fundamentals.BalanceSheet.Latest()
}

func latestCashflow(ds *types.CanonicalDataset) (types.Values, bool) {
	return ds.Fundamentals.CashflowStatement.Latest()
}

// lastTwo returns the first present line item for the two most recent
// periods of a statement.
func lastTwo(stmt types.Statement, items ...string) (current, prior float64, ok bool) {
	periods := stmt.Periods()
	if len(periods) < 2 {
		return 0, 0, false
	}
	current, okCur := stmt[periods[0]].First(items...)
	prior, okPrev := stmt[periods[1]].First(items...)
	return current, prior, okCur && okPrev
}
