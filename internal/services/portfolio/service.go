package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
)

// Service valuates an account's holdings at current quotes.
type Service struct {
	holdings          interfaces.HoldingStorage
	quotes            interfaces.QuoteService
	rates             interfaces.RateService
	reportingCurrency string
	logger            *common.Logger
	now               func() time.Time
}

// ServiceOption configures the service
type ServiceOption func(*Service)

// WithClock injects the time source, for tests
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a portfolio service over the holdings read model,
// quote service and rate service.
func NewService(holdings interfaces.HoldingStorage, quotes interfaces.QuoteService, rates interfaces.RateService, reportingCurrency string, logger *common.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		holdings:          holdings,
		quotes:            quotes,
		rates:             rates,
		reportingCurrency: reportingCurrency,
		logger:            logger,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSummary valuates the account's holdings in the reporting currency.
// Quote failures degrade per holding (PriceUnavailable); only storage
// and rate lookups can fail the call.
func (s *Service) GetSummary(ctx context.Context, accountID string) ([]models.Valuation, *models.PortfolioSummary, error) {
	holdings, err := s.holdings.ListHoldings(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing holdings for %s: %w", accountID, err)
	}

	syms := make([]models.Symbol, 0, len(holdings))
	foreign := ""
	for _, h := range holdings {
		syms = append(syms, models.Symbol{Code: h.Code, Currency: h.Currency})
		if h.Currency != s.reportingCurrency {
			foreign = h.Currency
		}
	}

	fxRate := 1.0
	if foreign != "" {
		fxRate, err = s.rates.Rate(ctx, foreign)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving %s rate: %w", foreign, err)
		}
	}

	quotes := s.quotes.GetQuotes(ctx, syms)
	valuations, summary := Valuate(holdings, quotes, fxRate, s.reportingCurrency, s.now())

	if summary.UnpricedCount > 0 {
		s.logger.Warn().Int("unpriced", summary.UnpricedCount).Str("account", accountID).Msg("Some holdings have no price")
	}
	return valuations, summary, nil
}

// GetRiskMetrics derives the dispersion statistics from the account's
// current valuations.
func (s *Service) GetRiskMetrics(ctx context.Context, accountID string) (*models.RiskMetrics, error) {
	valuations, _, err := s.GetSummary(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return Analyze(valuations), nil
}

// Ensure Service implements PortfolioService
var _ interfaces.PortfolioService = (*Service)(nil)
