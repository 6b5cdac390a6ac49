// Package portfolio valuates holdings at current quotes and derives
// portfolio-level statistics.
package portfolio

import (
	"time"

	"github.com/folioapp/folio/internal/models"
)

// Valuate prices each holding with its quote and aggregates the result
// in the reporting currency. Pure given its inputs: no network, no
// clock beyond the asOf stamp.
//
// Holdings whose quote chain failed entirely (SourceUsed = none, or no
// quote at all) are flagged PriceUnavailable, valuated at zero, and
// excluded from the aggregate totals; the summary carries their count
// so callers can surface the gap instead of reading it as a loss.
func Valuate(holdings []models.Holding, quotes map[string]*models.Quote, fxRate float64, reportingCurrency string, asOf time.Time) ([]models.Valuation, *models.PortfolioSummary) {
	valuations := make([]models.Valuation, 0, len(holdings))
	summary := &models.PortfolioSummary{
		ReportingCurrency: reportingCurrency,
		ExchangeRate:      fxRate,
		HoldingCount:      len(holdings),
		AsOf:              asOf,
	}

	for _, h := range holdings {
		v := valuateHolding(h, quotes[h.Code], fxRate, reportingCurrency)
		valuations = append(valuations, v)

		if v.PriceUnavailable {
			summary.UnpricedCount++
			continue
		}
		summary.TotalValue += v.TotalValueReporting
		summary.TotalCost += v.TotalCostReporting
		summary.DayChange += v.DayChangeReporting
	}

	summary.ProfitLoss = summary.TotalValue - summary.TotalCost
	if summary.TotalCost > 0 {
		summary.ProfitLossPercent = summary.ProfitLoss / summary.TotalCost * 100
	}
	if base := summary.TotalValue - summary.DayChange; base != 0 {
		summary.DayChangePercent = summary.DayChange / base * 100
	}

	return valuations, summary
}

func valuateHolding(h models.Holding, quote *models.Quote, fxRate float64, reportingCurrency string) models.Valuation {
	v := models.Valuation{
		Holding:   h,
		TotalCost: h.Quantity * h.AverageCost,
	}

	rate := 1.0
	if h.Currency != reportingCurrency {
		rate = fxRate
	}
	v.TotalCostReporting = v.TotalCost * rate

	if quote == nil || quote.Unavailable() {
		v.PriceUnavailable = true
		return v
	}

	v.CurrentPrice = quote.CurrentPrice
	v.TotalValue = h.Quantity * quote.CurrentPrice
	v.ProfitLoss = v.TotalValue - v.TotalCost
	if v.TotalCost > 0 {
		v.ProfitLossPercent = v.ProfitLoss / v.TotalCost * 100
	}
	v.DayChange = quote.Change * h.Quantity

	v.TotalValueReporting = v.TotalValue * rate
	v.ProfitLossReporting = v.ProfitLoss * rate
	v.DayChangeReporting = v.DayChange * rate

	return v
}
