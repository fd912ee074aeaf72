package types

type MetricStatus string

const (
	StatusSuccess MetricStatus = "success"
	StatusError   MetricStatus = "error"
)

type Unit string

const (
	UnitPercent          Unit = "percent"
	UnitRatio            Unit = "ratio"
	UnitCurrencyBillions Unit = "currency_billions"
	UnitCurrency         Unit = "currency"
	UnitScore            Unit = "score_0_100"
	UnitDays             Unit = "days"
	UnitDimensionless    Unit = "dimensionless"
)

// Provenance tags.
const (
	SourcePrecomputed       = "precomputed"
	SourceFundamentals      = "derived.fundamentals"
	SourceInfo              = "derived.info"
	SourceForward           = "derived.forward"
	SourcePriceHistory      = "derived.price_history"
	SourceCompoundedReturns = "derived.price_history.compounded_daily"
	SourceComposite         = "derived.composite"
)

// MetricResult is the outcome of a single calculator. A success with a nil
// Value is a known inapplicability and always carries NullReason; an error
// means the inputs were missing or insufficient.
type MetricResult struct {
	Status         MetricStatus `json:"status"`
	Value          *float64     `json:"value"`
	Unit           Unit         `json:"unit,omitempty"`
	Formula        string       `json:"formula,omitempty"`
	Source         string       `json:"source,omitempty"`
	Interpretation string       `json:"interpretation,omitempty"`
	NullReason     string       `json:"null_reason,omitempty"`
}

func (r MetricResult) OK() bool { return r.Status == StatusSuccess && r.Value != nil }

// Inapplicable reports a successful result that legitimately has no value.
func (r MetricResult) Inapplicable() bool { return r.Status == StatusSuccess && r.Value == nil }

// Float returns the value when the result carries one.
func (r MetricResult) Float() (float64, bool) {
	if r.Status != StatusSuccess || r.Value == nil {
		return 0, false
	}
	return *r.Value, true
}

type Category string

const (
	CategoryProfitability Category = "profitability"
	CategoryLiquidity     Category = "liquidity"
	CategoryLeverage      Category = "leverage"
	CategoryEfficiency    Category = "efficiency"
	CategoryGrowth        Category = "growth"
	CategoryCashflow      Category = "cashflow"
	CategoryValuation     Category = "valuation"
	CategoryMarketRisk    Category = "marketRisk"
	CategoryFinancialRisk Category = "financialRisk"
)

// MetricGroup maps metric key to result for one category.
type MetricGroup map[string]MetricResult

// Counts returns the number of results per outcome.
func (g MetricGroup) Counts() (success, inapplicable, failed int) {
	for _, r := range g {
		switch {
		case r.Status == StatusError:
			failed++
		case r.Value == nil:
			inapplicable++
		default:
			success++
		}
	}
	return
}

// Metric looks up a result across groups of the given category.
func (groups MetricGroups) Metric(c Category, key string) (MetricResult, bool) {
	g, ok := groups[c]
	if !ok {
		return MetricResult{}, false
	}
	r, ok := g[key]
	return r, ok
}

// Value is a shorthand for a successful numeric metric.
func (groups MetricGroups) Value(c Category, key string) (float64, bool) {
	r, ok := groups.Metric(c, key)
	if !ok {
		return 0, false
	}
	return r.Float()
}

type MetricGroups map[Category]MetricGroup
