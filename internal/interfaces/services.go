package interfaces

import (
	"context"

	"github.com/folioapp/folio/internal/models"
)

// QuoteService resolves symbols to quotes through the cache layer.
// Symbols carry the instrument's declared currency so classification
// sees it; results are keyed by code.
type QuoteService interface {
	// GetQuote resolves one symbol, serving from cache when fresh.
	GetQuote(ctx context.Context, sym models.Symbol) *models.Quote

	// GetQuotes resolves a batch of symbols with bounded concurrency.
	// One symbol failing never fails the batch: the failed entry comes
	// back with SourceUsed = none.
	GetQuotes(ctx context.Context, syms []models.Symbol) map[string]*models.Quote

	// Invalidate drops any cached entry for the symbol so the next
	// request refetches.
	Invalidate(code string)
}

// PortfolioService valuates holdings and derives portfolio statistics.
type PortfolioService interface {
	// GetSummary valuates the account's holdings at current quotes in
	// the reporting currency.
	GetSummary(ctx context.Context, accountID string) ([]models.Valuation, *models.PortfolioSummary, error)

	// GetRiskMetrics derives the dispersion statistics from the
	// account's current valuations.
	GetRiskMetrics(ctx context.Context, accountID string) (*models.RiskMetrics, error)
}

// RateService supplies the reporting-currency exchange rate.
type RateService interface {
	// Rate returns the conversion rate from the given currency into the
	// reporting currency. Same-currency requests return 1.
	Rate(ctx context.Context, from string) (float64, error)
}
