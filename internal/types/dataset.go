package types

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Values is a mapping of field name to numeric value. Null, non-numeric and
// non-finite entries are dropped on decode so that an absent field is never
// mistaken for zero.
type Values map[string]float64

func (v *Values) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for k, x := range raw {
		f, ok := x.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out[k] = f
	}
	*v = out
	return nil
}

// Get returns the named value when present and finite.
func (v Values) Get(key string) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, ok := v[key]
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// First returns the first present value among keys.
func (v Values) First(keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := v.Get(k); ok {
			return f, true
		}
	}
	return 0, false
}

// Statement maps a reporting period key (ISO date) to its line items.
type Statement map[string]Values

// Periods returns the period keys, most recent first.
func (s Statement) Periods() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

// Latest returns the line items of the most recent period.
func (s Statement) Latest() (Values, bool) {
	p := s.Periods()
	if len(p) == 0 {
		return nil, false
	}
	return s[p[0]], true
}

type Fundamentals struct {
	IncomeStatement   Statement `json:"income_statement,omitempty"`
	BalanceSheet      Statement `json:"balance_sheet,omitempty"`
	CashflowStatement Statement `json:"cashflow_statement,omitempty"`
}

type PricePoint struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Close  *float64 `json:"close,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

type Article struct {
	Title       string   `json:"title"`
	Source      string   `json:"source,omitempty"`
	URL         string   `json:"url,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Sentiment   *float64 `json:"sentiment,omitempty"`
}

type Meta struct {
	Ticker      string    `json:"ticker"`
	CompanyName string    `json:"company_name,omitempty"`
	Sector      string    `json:"sector,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Exchange    string    `json:"exchange,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	MarketCap   *float64  `json:"market_cap,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	PeriodDays  int       `json:"period_days,omitempty"`
	DataQuality []string  `json:"data_quality,omitempty"`
}

// CanonicalDataset is the normalized per-run input shared read-only by every
// calculator.
type CanonicalDataset struct {
	Meta         Meta         `json:"meta"`
	PriceHistory []PricePoint `json:"price_history,omitempty"`
	Fundamentals Fundamentals `json:"fundamentals"`
	Info         Values       `json:"info,omitempty"`
	News         []Article    `json:"news,omitempty"`
}

// Closes returns the positive closing prices in the order stored.
func (d *CanonicalDataset) Closes() []float64 {
	out := make([]float64, 0, len(d.PriceHistory))
	for _, p := range d.PriceHistory {
		if p.Close != nil && *p.Close > 0 && !math.IsInf(*p.Close, 0) {
			out = append(out, *p.Close)
		}
	}
	return out
}

// DatedCloses returns positive closes that carry a date, sorted by date.
func (d *CanonicalDataset) DatedCloses() []float64 {
	pts := make([]PricePoint, 0, len(d.PriceHistory))
	for _, p := range d.PriceHistory {
		if p.Date != "" && p.Close != nil && *p.Close > 0 {
			pts = append(pts, p)
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date < pts[j].Date })
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = *p.Close
	}
	return out
}

// MarketCap prefers the upstream info field and falls back to meta.
func (d *CanonicalDataset) MarketCap() (float64, bool) {
	if v, ok := d.Info.Get("market_cap"); ok {
		return v, true
	}
	if d.Meta.MarketCap != nil {
		return *d.Meta.MarketCap, true
	}
	return 0, false
}
