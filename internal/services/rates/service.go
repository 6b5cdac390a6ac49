// Package rates supplies reporting-currency exchange rates with a
// tiered fallback: live provider, then last persisted rate, then the
// configured static fallback.
package rates

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
)

const DefaultRefreshInterval = time.Hour

// Service caches exchange rates in memory and persists successful
// fetches so restarts survive provider outages.
type Service struct {
	client            interfaces.RateClient
	storage           interfaces.RateStorage
	reportingCurrency string
	refreshInterval   time.Duration
	fallback          map[string]float64
	logger            *common.Logger
	now               func() time.Time

	mu     sync.RWMutex
	cached map[string]models.ExchangeRate
}

// ServiceOption configures the service
type ServiceOption func(*Service)

// WithRefreshInterval sets how long a fetched rate stays fresh
func WithRefreshInterval(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithStaticFallback registers a last-resort rate for a currency
func WithStaticFallback(from string, rate float64) ServiceOption {
	return func(s *Service) {
		s.fallback[strings.ToUpper(from)] = rate
	}
}

// WithClock injects the time source, for tests
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a rate service converting into reportingCurrency.
func NewService(client interfaces.RateClient, storage interfaces.RateStorage, reportingCurrency string, logger *common.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		client:            client,
		storage:           storage,
		reportingCurrency: strings.ToUpper(reportingCurrency),
		refreshInterval:   DefaultRefreshInterval,
		fallback:          make(map[string]float64),
		logger:            logger,
		now:               time.Now,
		cached:            make(map[string]models.ExchangeRate),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rate returns the conversion rate from the given currency into the
// reporting currency. Same-currency requests return 1 without lookup.
// A provider failure falls back first to the last persisted rate, then
// to the configured static rate; only a currency with no fallback at
// all produces an error.
func (s *Service) Rate(ctx context.Context, from string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	if from == s.reportingCurrency {
		return 1, nil
	}

	now := s.now()
	s.mu.RLock()
	cached, ok := s.cached[from]
	s.mu.RUnlock()
	if ok && now.Sub(cached.FetchedAt) < s.refreshInterval {
		return cached.Rate, nil
	}

	rate, err := s.Refresh(ctx, from)
	if err == nil {
		return rate, nil
	}
	s.logger.Warn().Err(err).Str("from", from).Msg("Rate refresh failed, falling back")

	// Stale in-memory beats a disk read.
	if ok {
		return cached.Rate, nil
	}

	if s.storage != nil {
		if persisted, perr := s.storage.GetRate(ctx, from, s.reportingCurrency); perr == nil && persisted != nil && persisted.Rate > 0 {
			s.remember(*persisted)
			return persisted.Rate, nil
		}
	}

	if static, ok := s.fallback[from]; ok {
		s.logger.Warn().Str("from", from).Float64("rate", static).Msg("Using static fallback rate")
		return static, nil
	}

	return 0, err
}

// Refresh fetches the rate from the provider, caches it and persists it.
// Used by Rate on expiry and by the background scheduler.
func (s *Service) Refresh(ctx context.Context, from string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))

	value, err := s.client.GetRate(ctx, from, s.reportingCurrency)
	if err != nil {
		return 0, err
	}

	rate := models.ExchangeRate{
		From:      from,
		To:        s.reportingCurrency,
		Rate:      value,
		FetchedAt: s.now(),
	}
	s.remember(rate)

	if s.storage != nil {
		if err := s.storage.SaveRate(ctx, &rate); err != nil {
			s.logger.Warn().Err(err).Str("from", from).Msg("Failed to persist exchange rate")
		}
	}
	return value, nil
}

func (s *Service) remember(rate models.ExchangeRate) {
	s.mu.Lock()
	s.cached[rate.From] = rate
	s.mu.Unlock()
}

// Ensure Service implements RateService
var _ interfaces.RateService = (*Service)(nil)
