package portfolio

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/folioapp/folio/internal/models"
)

// Analyze derives cross-sectional dispersion statistics from current
// valuations. These are deliberate heuristics over a single snapshot,
// not time-series figures: Volatility is the population standard
// deviation of per-holding profit/loss percentages, Beta is that
// volatility scaled by 20, and MaxDrawdown is the worst single
// position. Deterministic, no failure mode; zero holdings produce the
// neutral baseline.
func Analyze(valuations []models.Valuation) *models.RiskMetrics {
	metrics := &models.RiskMetrics{
		Beta:             1,
		SectorAllocation: []models.SectorWeight{},
	}
	if len(valuations) == 0 {
		return metrics
	}
	metrics.HoldingCount = len(valuations)

	plPercents := make([]float64, len(valuations))
	wins := 0
	for i, v := range valuations {
		plPercents[i] = v.ProfitLossPercent
		if v.ProfitLossPercent > 0 {
			wins++
		}
	}

	metrics.Volatility = stat.PopStdDev(plPercents, nil)
	if metrics.Volatility > 0 {
		metrics.SharpeLike = stat.Mean(plPercents, nil) / metrics.Volatility
		metrics.Beta = metrics.Volatility / 20
	}

	worst := plPercents[0]
	for _, pl := range plPercents[1:] {
		if pl < worst {
			worst = pl
		}
	}
	metrics.MaxDrawdown = math.Min(0, worst)

	metrics.WinRate = float64(wins) / float64(len(valuations)) * 100

	metrics.SectorAllocation = sectorAllocation(valuations)
	metrics.DiversificationScore = diversificationScore(len(valuations), metrics.SectorAllocation)

	return metrics
}

// sectorAllocation sums reporting-currency value per sector and expresses
// each as a percentage of the total. Holdings without a sector land in
// "Unclassified". Sorted by weight descending for stable output.
func sectorAllocation(valuations []models.Valuation) []models.SectorWeight {
	totals := make(map[string]float64)
	var aggregate float64
	for _, v := range valuations {
		sector := v.Holding.Sector
		if sector == "" {
			sector = "Unclassified"
		}
		totals[sector] += v.TotalValueReporting
		aggregate += v.TotalValueReporting
	}

	weights := make([]models.SectorWeight, 0, len(totals))
	for sector, value := range totals {
		w := models.SectorWeight{Sector: sector, Value: value}
		if aggregate > 0 {
			w.Percent = value / aggregate * 100
		}
		weights = append(weights, w)
	}
	sort.Slice(weights, func(i, j int) bool {
		if weights[i].Percent != weights[j].Percent {
			return weights[i].Percent > weights[j].Percent
		}
		return weights[i].Sector < weights[j].Sector
	})
	return weights
}

// diversificationScore blends a holding-count score, min(100, n*10),
// with a sector-concentration score, 100*(1 - maxSectorWeight), as an
// even average capped at 100.
func diversificationScore(count int, sectors []models.SectorWeight) float64 {
	countScore := math.Min(100, float64(count)*10)

	var maxWeight float64
	for _, s := range sectors {
		if frac := s.Percent / 100; frac > maxWeight {
			maxWeight = frac
		}
	}
	sectorScore := 100 * (1 - maxWeight)

	return math.Min(100, (countScore+sectorScore)/2)
}
