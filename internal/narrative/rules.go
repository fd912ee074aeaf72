package narrative

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"stock-analysis-pipeline/internal/metrics"
	"stock-analysis-pipeline/internal/types"
)

// RuleNarrator writes a short plain-language summary from the computed
// metrics without calling out to a language model.
type RuleNarrator struct{}

func NewRuleNarrator() *RuleNarrator {
	return &RuleNarrator{}
}

type highlight struct {
	category types.Category
	key      string
	label    string
	suffix   string
}

var (
	businessHighlights = []highlight{
		{types.CategoryProfitability, "gross_margin", "gross margin", "%"},
		{types.CategoryProfitability, "net_margin", "net margin", "%"},
		{types.CategoryProfitability, "roe", "return on equity", "%"},
		{types.CategoryGrowth, "revenue_growth", "revenue growth", "%"},
	}
	balanceHighlights = []highlight{
		{types.CategoryLiquidity, "current_ratio", "current ratio", "x"},
		{types.CategoryLeverage, "debt_to_equity", "debt to equity", "x"},
	}
	marketHighlights = []highlight{
		{types.CategoryValuation, "pe_ratio", "P/E", "x"},
		{types.CategoryMarketRisk, "beta", "beta", ""},
		{types.CategoryMarketRisk, "volatility", "annualized volatility", "%"},
	}
)

func (RuleNarrator) Narrate(ctx context.Context, meta types.Meta, groups types.MetricGroups) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := meta.CompanyName
	if name == "" || name == "Unknown" {
		name = meta.Ticker
	}

	var sentences []string
	intro := fmt.Sprintf("%s (%s)", name, meta.Ticker)
	if meta.Sector != "" && meta.Sector != "Unknown" {
		intro += " operates in the " + meta.Sector + " sector"
	} else {
		intro += " was analyzed"
	}
	sentences = append(sentences, intro+".")

	if s := describe("Operating results show", groups, businessHighlights); s != "" {
		sentences = append(sentences, s)
	}
	if s := describe("On the balance sheet it has", groups, balanceHighlights); s != "" {
		sentences = append(sentences, s)
	}
	if s := describe("The market prices it at", groups, marketHighlights); s != "" {
		sentences = append(sentences, s)
	}

	risk := metrics.AssessOverallRisk(groups[types.CategoryMarketRisk], groups[types.CategoryFinancialRisk])
	if risk.FlagCount == 0 {
		sentences = append(sentences, "No major risk flags were raised.")
	} else {
		sentences = append(sentences, fmt.Sprintf("Risk flags: %s.", strings.Join(risk.Flags, "; ")))
	}

	total, available := 0, 0
	for _, g := range groups {
		ok, inapplicable, failed := g.Counts()
		total += ok + inapplicable + failed
		available += ok
	}
	sentences = append(sentences, fmt.Sprintf("%d of %d metrics could be computed from the available data.", available, total))

	return strings.Join(sentences, " "), nil
}

func describe(lead string, groups types.MetricGroups, hs []highlight) string {
	var parts []string
	for _, h := range hs {
		v, ok := groups.Value(h.category, h.key)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s of %s%s", h.label, strconv.FormatFloat(v, 'f', -1, 64), h.suffix))
	}
	if len(parts) == 0 {
		return ""
	}
	return lead + " " + strings.Join(parts, ", ") + "."
}
