package ingest

import (
	"fmt"
	"strings"
	"time"

	"stock-analysis-pipeline/internal/types"
)

// MinPricePoints is the price history length below which risk metrics are
// expected to come back empty.
const MinPricePoints = 20

// Validation reports which sections of a dataset are usable.
type Validation struct {
	Meta         bool `json:"meta"`
	PriceHistory bool `json:"price_history"`
	Fundamentals bool `json:"fundamentals"`
	Info         bool `json:"info"`
	News         bool `json:"news"`
}

func Validate(ds *types.CanonicalDataset) Validation {
	return Validation{
		Meta:         ds.Meta.Ticker != "",
		PriceHistory: len(ds.PriceHistory) >= MinPricePoints,
		Fundamentals: len(ds.Fundamentals.IncomeStatement) > 0,
		Info:         len(ds.Info) > 0,
		News:         true,
	}
}

// Normalize fills the canonical meta block and records data quality notes.
// Missing descriptive fields get placeholder labels; missing numbers stay
// missing.
func Normalize(ds *types.CanonicalDataset, ticker string, periodDays int) {
	m := &ds.Meta
	m.Ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if m.CompanyName == "" {
		m.CompanyName = m.Ticker
	}
	if m.Sector == "" {
		m.Sector = "Unknown"
	}
	if m.Industry == "" {
		m.Industry = "Unknown"
	}
	if m.Exchange == "" {
		m.Exchange = "N/A"
	}
	if m.Currency == "" {
		m.Currency = "USD"
	}
	if m.FetchedAt.IsZero() {
		m.FetchedAt = time.Now().UTC()
	}
	m.PeriodDays = periodDays
	if m.MarketCap == nil {
		if v, ok := ds.Info.Get("market_cap"); ok {
			m.MarketCap = &v
		}
	}

	v := Validate(ds)
	m.DataQuality = m.DataQuality[:0]
	if !v.PriceHistory {
		m.DataQuality = append(m.DataQuality,
			fmt.Sprintf("price history has %d points; at least %d expected", len(ds.PriceHistory), MinPricePoints))
	}
	if !v.Fundamentals {
		m.DataQuality = append(m.DataQuality, "income statement missing")
	}
	if len(ds.Fundamentals.BalanceSheet) == 0 {
		m.DataQuality = append(m.DataQuality, "balance sheet missing")
	}
	if len(ds.Fundamentals.CashflowStatement) == 0 {
		m.DataQuality = append(m.DataQuality, "cash flow statement missing")
	}
	if !v.Info {
		m.DataQuality = append(m.DataQuality, "precomputed info fields missing")
	}
}

// trimHistory keeps the most recent periodDays price points.
func trimHistory(ds *types.CanonicalDataset, periodDays int) {
	if periodDays > 0 && len(ds.PriceHistory) > periodDays {
		ds.PriceHistory = ds.PriceHistory[len(ds.PriceHistory)-periodDays:]
	}
}
