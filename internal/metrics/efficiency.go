package metrics

import (
	"fmt"
	"math"
	"strings"

	"stock-analysis-pipeline/internal/types"
)

var (
	serviceSectors = []string{
		"Communication Services", "Financial Services", "Technology",
		"Healthcare", "Real Estate", "Utilities",
	}
	serviceIndustries = []string{
		"Entertainment", "Software", "Banks", "Insurance",
		"Broadcasting", "Media", "Consulting", "Services",
	}
)

// inventoryExempt reports the sector or industry label that makes inventory
// turnover meaningless for the company, if any.
func inventoryExempt(meta types.Meta) (string, bool) {
	for _, s := range serviceSectors {
		if meta.Sector == s {
			return s, true
		}
	}
	for _, ind := range serviceIndustries {
		if strings.Contains(meta.Industry, ind) {
			return meta.Industry, true
		}
		if strings.Contains(meta.Sector, ind) {
			return meta.Sector, true
		}
	}
	return "", false
}

func AssetTurnover(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Revenue / Total Assets"
	rev, okRev := positiveInfo(ds, "revenue")
	ta, okTA := info(ds, "total_assets")
	if okRev && okTA && ta > 0 {
		v := rev / ta
		return success(v, types.UnitRatio, formula, types.SourceInfo, interpretAssetTurnover(v))
	}
	inc, okInc := latestIncome(ds)
	bal, okBal := latestBalance(ds)
	if okInc && okBal {
		rev, okRev := inc.First(revenueItems...)
		ta, okTA := bal.Get("Total Assets")
		if okRev && rev != 0 && okTA && ta > 0 {
			v := rev / ta
			return success(v, types.UnitRatio, formula, types.SourceFundamentals, interpretAssetTurnover(v))
		}
	}
	return unavailable("asset turnover data not available (needs revenue and Total Assets)")
}

func InventoryTurnover(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "COGS / Inventory"
	if label, ok := inventoryExempt(ds.Meta); ok {
		return inapplicable(types.UnitRatio, formula,
			fmt.Sprintf("not applicable for sector %s: no physical inventory held", label),
			"Inventory turnover is not meaningful for this business model")
	}
	inc, okInc := latestIncome(ds)
	bal, okBal := latestBalance(ds)
	if !okInc || !okBal {
		return unavailable("inventory turnover requires income statement and balance sheet data")
	}
	inventory, okInv := bal.Get("Inventory")
	if !okInv || inventory == 0 {
		return inapplicable(types.UnitRatio, formula, "Company has no inventory on balance sheet", "")
	}
	cogs, ok := inc.Get("Cost Of Revenue")
	if !ok || inventory < 0 {
		return unavailable("inventory turnover requires Cost Of Revenue and a positive Inventory")
	}
	v := cogs / inventory
	return success(v, types.UnitRatio, formula, types.SourceFundamentals,
		fmt.Sprintf("Inventory cycles %.1f times per year", math.Round(v*10)/10))
}

func ReceivablesTurnover(ds *types.CanonicalDataset) types.MetricResult {
	const formula = "Revenue / Accounts Receivable"
	bal, ok := latestBalance(ds)
	if !ok {
		return unavailable("receivables turnover requires balance sheet data")
	}
	recv, ok := bal.First("Accounts Receivable", "Net Receivables")
	if !ok || recv <= 0 {
		return unavailable("receivables turnover requires Accounts Receivable")
	}
	source := types.SourceInfo
	rev, ok := positiveInfo(ds, "revenue")
	if !ok {
		inc, okInc := latestIncome(ds)
		if okInc {
			rev, ok = inc.First(revenueItems...)
		}
		source = types.SourceFundamentals
	}
	if !ok || rev <= 0 {
		return unavailable("receivables turnover requires revenue")
	}
	v := rev / recv
	return success(v, types.UnitRatio, formula, source,
		fmt.Sprintf("Collects receivables %.1f times per year", math.Round(v*10)/10))
}
