// Package quote resolves instrument codes to priced quotes through an
// ordered provider fallback chain fronted by a coalescing cache.
package quote

import (
	"context"
	"time"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/market"
	"github.com/folioapp/folio/internal/models"
)

// Resolver orchestrates classification, calendar math and provider
// adapters into a single resolved Quote. It never returns an error:
// provider failures fold into fallback, and full exhaustion produces a
// zero quote with SourceUsed = none, which callers must treat as
// "unknown", never "unchanged".
type Resolver struct {
	classifier *market.Classifier
	calendar   *market.Calendar
	sources    map[models.SourceName]interfaces.QuoteSource
	logger     *common.Logger
}

// NewResolver creates a resolver over the given provider adapters.
func NewResolver(classifier *market.Classifier, calendar *market.Calendar, sources []interfaces.QuoteSource, logger *common.Logger) *Resolver {
	byName := make(map[models.SourceName]interfaces.QuoteSource, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &Resolver{
		classifier: classifier,
		calendar:   calendar,
		sources:    byName,
		logger:     logger,
	}
}

// Resolve fetches and prices one symbol at the given instant.
//
// The chain for the symbol's market class is walked strictly in order;
// the first adapter whose FetchCurrent succeeds wins. With the market
// open, the adapter's own previous-close field is authoritative and no
// second round trip is made. With the market closed, the previous close
// comes from the last completed session's bar; if the bar turns out to
// belong to the session the current price already reflects, the
// resolver steps one session further back and retries once. If the bar
// path fails entirely the adapter's own previous close is used even
// though it may lag a session.
func (r *Resolver) Resolve(ctx context.Context, sym models.Symbol, now time.Time) *models.Quote {
	code := sym.Code
	class := r.classifier.Classify(code, sym.Currency)
	chain := market.SourceChain(class)

	var (
		raw  *models.RawQuote
		used models.SourceName
	)
	for _, name := range chain {
		source, ok := r.sources[name]
		if !ok {
			r.logger.Warn().Str("source", string(name)).Msg("Source not registered, skipping")
			continue
		}
		fetched, err := source.FetchCurrent(ctx, code)
		if err != nil {
			r.logger.Debug().Err(err).Str("code", code).Str("source", string(name)).Msg("Source failed, trying next")
			continue
		}
		raw, used = fetched, name
		break
	}

	if raw == nil {
		r.logger.Warn().Str("code", code).Str("class", string(class)).Msg("All sources exhausted")
		return &models.Quote{
			Code:       code,
			AsOf:       now,
			SourceUsed: models.SourceNone,
			Class:      class,
		}
	}

	closed := r.calendar.IsClosed(class, now)
	prevClose := raw.PrevClose

	if closed {
		if bar := r.previousSessionBar(ctx, r.sources[used], code, class, now); bar != nil {
			prevClose = bar.Close
		}
		// Bar path failed: keep the adapter's own previous close, which
		// may lag one session after hours.
	}

	quote := &models.Quote{
		Code:            code,
		CurrentPrice:    raw.Price,
		PreviousClose:   prevClose,
		AsOf:            now,
		MarketWasClosed: closed,
		SourceUsed:      used,
		Class:           class,
	}
	if prevClose > 0 {
		quote.Change = raw.Price - prevClose
		quote.ChangePercent = quote.Change / prevClose * 100
	}
	return quote
}

// previousSessionBar fetches the last completed session's bar, stepping
// back one extra session when the fetched bar matches the session the
// current price already belongs to. Provider day boundaries do not
// always line up with the calendar's; without the retry, change reads
// as 0 right after close.
func (r *Resolver) previousSessionBar(ctx context.Context, source interfaces.QuoteSource, code string, class models.MarketClass, now time.Time) *models.SessionBar {
	date := r.calendar.LastCompletedSession(class, now)

	bar, err := source.FetchSessionBar(ctx, code, date)
	if err != nil {
		r.logger.Debug().Err(err).Str("code", code).Msg("Session bar fetch failed")
		return nil
	}

	if r.calendar.SameSessionDay(class, bar.Date, now) {
		date = r.calendar.PreviousSession(class, date)
		bar, err = source.FetchSessionBar(ctx, code, date)
		if err != nil {
			r.logger.Debug().Err(err).Str("code", code).Msg("Session bar retry failed")
			return nil
		}
	}
	return bar
}
