package metrics

import (
	"stock-analysis-pipeline/internal/types"
)

// Entry binds a metric key to its calculator.
type Entry struct {
	Key  string
	Calc Calculator
}

// Registry is the ordered calculator list of one category.
type Registry struct {
	Category types.Category
	Entries  []Entry
}

// Compute runs every calculator of the registry against ds.
func (r Registry) Compute(ds *types.CanonicalDataset) types.MetricGroup {
	g := make(types.MetricGroup, len(r.Entries))
	for _, e := range r.Entries {
		g[e.Key] = guard(e.Key, e.Calc, ds)
	}
	return g
}

// Keys returns the metric keys in registration order.
func (r Registry) Keys() []string {
	keys := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		keys[i] = e.Key
	}
	return keys
}

var (
	Profitability = Registry{types.CategoryProfitability, []Entry{
		{"gross_margin", GrossMargin},
		{"operating_margin", OperatingMargin},
		{"net_margin", NetMargin},
		{"roa", ROA},
		{"roe", ROE},
		{"roic", ROIC},
	}}
	Liquidity = Registry{types.CategoryLiquidity, []Entry{
		{"current_ratio", CurrentRatio},
		{"quick_ratio", QuickRatio},
		{"cash_ratio", CashRatio},
		{"working_capital", WorkingCapital},
	}}
	Leverage = Registry{types.CategoryLeverage, []Entry{
		{"debt_to_equity", DebtToEquity},
		{"debt_to_assets", DebtToAssets},
		{"interest_coverage", InterestCoverage},
	}}
	Efficiency = Registry{types.CategoryEfficiency, []Entry{
		{"asset_turnover", AssetTurnover},
		{"inventory_turnover", InventoryTurnover},
		{"receivables_turnover", ReceivablesTurnover},
	}}
	Growth = Registry{types.CategoryGrowth, []Entry{
		{"revenue_growth", RevenueGrowth},
		{"net_income_growth", NetIncomeGrowth},
		{"eps_growth", EPSGrowth},
		{"fcf_growth", FCFGrowth},
		{"operating_income_growth", OperatingIncomeGrowth},
	}}
	Cashflow = Registry{types.CategoryCashflow, []Entry{
		{"free_cash_flow", FreeCashFlow},
		{"operating_cash_flow_ratio", OperatingCashFlowRatio},
		{"cash_flow_margin", CashFlowMargin},
	}}
	Valuation = Registry{types.CategoryValuation, []Entry{
		{"pe_ratio", PERatio},
		{"forward_pe", ForwardPE},
		{"peg_ratio", PEGRatio},
		{"price_to_book", PriceToBook},
		{"price_to_sales", PriceToSales},
		{"ev_to_ebitda", EVToEBITDA},
		{"enterprise_value", EnterpriseValue},
		{"earnings_yield", EarningsYield},
		{"book_value_per_share", BookValuePerShare},
		{"dividend_yield", DividendYield},
	}}
	MarketRisk = Registry{types.CategoryMarketRisk, []Entry{
		{"beta", Beta},
		{"alpha", Alpha},
		{"volatility", Volatility},
		{"sharpe_ratio", SharpeRatio},
		{"max_drawdown", MaxDrawdown},
		{"var_95", ValueAtRisk95},
	}}
	FinancialRisk = Registry{types.CategoryFinancialRisk, []Entry{
		{"altman_z_score", AltmanZScore},
		{"credit_risk_score", CreditRiskScore},
		{"liquidity_risk_score", LiquidityRiskScore},
		{"operational_risk_score", OperationalRiskScore},
	}}
)

// Group is a set of registries computed together by one worker.
type Group struct {
	Name       string
	Registries []Registry
}

// Compute runs every registry of the group and returns a fresh result set.
func (g Group) Compute(ds *types.CanonicalDataset) types.MetricGroups {
	out := make(types.MetricGroups, len(g.Registries))
	for _, r := range g.Registries {
		out[r.Category] = r.Compute(ds)
	}
	return out
}

// Categories lists the categories the group writes.
func (g Group) Categories() []types.Category {
	cats := make([]types.Category, len(g.Registries))
	for i, r := range g.Registries {
		cats[i] = r.Category
	}
	return cats
}

var (
	RatioGroup     = Group{"ratio", []Registry{Profitability, Liquidity, Leverage, Efficiency, Growth, Cashflow}}
	ValuationGroup = Group{"valuation", []Registry{Valuation}}
	RiskGroup      = Group{"risk", []Registry{MarketRisk, FinancialRisk}}
)

// Groups returns the three independent calculator groups.
func Groups() []Group {
	return []Group{RatioGroup, ValuationGroup, RiskGroup}
}

// All returns every registry in presentation order.
func All() []Registry {
	var out []Registry
	for _, g := range Groups() {
		out = append(out, g.Registries...)
	}
	return out
}

// Lookup finds a calculator by metric key.
func Lookup(key string) (Calculator, types.Category, bool) {
	for _, r := range All() {
		for _, e := range r.Entries {
			if e.Key == key {
				return e.Calc, r.Category, true
			}
		}
	}
	return nil, "", false
}

// Compute runs a single metric by key through the panic guard.
func Compute(key string, ds *types.CanonicalDataset) (types.MetricResult, bool) {
	calc, _, ok := Lookup(key)
	if !ok {
		return types.MetricResult{}, false
	}
	return guard(key, calc, ds), true
}
