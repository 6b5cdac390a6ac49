package models

import "time"

// Holding represents a position owned by an account. The valuator reads
// a snapshot of these records; it never mutates them.
type Holding struct {
	Code        string    `json:"code" badgerhold:"index"`
	Name        string    `json:"name,omitempty"`
	Quantity    float64   `json:"quantity"`
	AverageCost float64   `json:"average_cost"`
	Currency    string    `json:"currency"` // "KRW" or "USD"
	Sector      string    `json:"sector,omitempty"`
	AccountID   string    `json:"account_id" badgerhold:"index"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the storage key for the holding.
func (h Holding) Key() string {
	return h.AccountID + "/" + h.Code
}

// Valuation is the derived per-holding value in native and reporting
// currency. Never persisted; recomputed from holdings and quotes.
type Valuation struct {
	Holding           Holding `json:"holding"`
	CurrentPrice      float64 `json:"current_price"`
	TotalValue        float64 `json:"total_value"`
	TotalCost         float64 `json:"total_cost"`
	ProfitLoss        float64 `json:"profit_loss"`
	ProfitLossPercent float64 `json:"profit_loss_percent"`
	DayChange         float64 `json:"day_change"` // quote change × quantity, native currency

	// Reporting-currency fields equal the native fields when the
	// holding's currency matches the reporting currency.
	TotalValueReporting float64 `json:"total_value_reporting"`
	TotalCostReporting  float64 `json:"total_cost_reporting"`
	ProfitLossReporting float64 `json:"profit_loss_reporting"`
	DayChangeReporting  float64 `json:"day_change_reporting"`

	// PriceUnavailable flags a holding whose quote chain failed
	// entirely. Its zero value is "no price", not a real zero.
	PriceUnavailable bool `json:"price_unavailable,omitempty"`
}

// PortfolioSummary aggregates valuations in the reporting currency.
type PortfolioSummary struct {
	ReportingCurrency string    `json:"reporting_currency"`
	ExchangeRate      float64   `json:"exchange_rate"`
	TotalValue        float64   `json:"total_value"`
	TotalCost         float64   `json:"total_cost"`
	ProfitLoss        float64   `json:"profit_loss"`
	ProfitLossPercent float64   `json:"profit_loss_percent"`
	DayChange         float64   `json:"day_change"`
	DayChangePercent  float64   `json:"day_change_percent"`
	HoldingCount      int       `json:"holding_count"`
	UnpricedCount     int       `json:"unpriced_count"`
	AsOf              time.Time `json:"as_of"`
}

// SectorWeight is one sector's share of total portfolio value.
type SectorWeight struct {
	Sector  string  `json:"sector"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// RiskMetrics holds the dispersion-based portfolio statistics. These
// are cross-sectional proxies computed over current holdings, not
// time-series figures: Beta is volatility/20, MaxDrawdown is the worst
// single position, and SharpeLike subtracts no risk-free rate.
type RiskMetrics struct {
	Volatility           float64        `json:"volatility"`
	SharpeLike           float64        `json:"sharpe_like"`
	DiversificationScore float64        `json:"diversification_score"`
	MaxDrawdown          float64        `json:"max_drawdown"`
	Beta                 float64        `json:"beta"`
	WinRate              float64        `json:"win_rate"`
	SectorAllocation     []SectorWeight `json:"sector_allocation"`
	HoldingCount         int            `json:"holding_count"`
}

// ExchangeRate is a cached foreign→reporting currency conversion rate.
type ExchangeRate struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Key returns the storage key for the rate pair.
func (r ExchangeRate) Key() string {
	return r.From + "/" + r.To
}
