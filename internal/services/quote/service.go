package quote

import (
	"context"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/market"
	"github.com/folioapp/folio/internal/models"
)

// Service is the public quote entry point: cache in front of resolver.
type Service struct {
	cache  *Cache
	logger *common.Logger
}

// NewService wires the classifier, calendar and provider adapters into
// a cached quote service.
func NewService(classifier *market.Classifier, calendar *market.Calendar, sources []interfaces.QuoteSource, logger *common.Logger, cacheOpts ...CacheOption) *Service {
	resolver := NewResolver(classifier, calendar, sources, logger)
	return &Service{
		cache:  NewCache(resolver, logger, cacheOpts...),
		logger: logger,
	}
}

// GetQuote resolves one symbol, serving from cache when fresh.
func (s *Service) GetQuote(ctx context.Context, sym models.Symbol) *models.Quote {
	return s.cache.GetOrFetch(ctx, sym)
}

// GetQuotes resolves a batch of symbols with bounded concurrency.
func (s *Service) GetQuotes(ctx context.Context, syms []models.Symbol) map[string]*models.Quote {
	return s.cache.GetOrFetchBatch(ctx, syms)
}

// Invalidate drops the cached entry for a symbol.
func (s *Service) Invalidate(code string) {
	s.cache.Invalidate(code)
}

// Ensure Service implements QuoteService
var _ interfaces.QuoteService = (*Service)(nil)
