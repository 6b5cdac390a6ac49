// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"
	"time"

	"github.com/folioapp/folio/internal/models"
)

// QuoteSource is the uniform contract every upstream provider adapter
// implements. Adapters never panic or leak raw errors across this
// boundary: every failure comes back as a *models.SourceError.
type QuoteSource interface {
	// Name identifies the provider for chain selection and logging.
	Name() models.SourceName

	// FetchCurrent retrieves the provider's current-price snapshot.
	FetchCurrent(ctx context.Context, code string) (*models.RawQuote, error)

	// FetchSessionBar retrieves the daily bar for the given trading date.
	FetchSessionBar(ctx context.Context, code string, date time.Time) (*models.SessionBar, error)
}

// RateClient fetches a single foreign→reporting currency exchange rate.
type RateClient interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
}
