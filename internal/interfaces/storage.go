package interfaces

import (
	"context"

	"github.com/folioapp/folio/internal/models"
)

// HoldingStorage is the holdings read model the valuator consumes.
type HoldingStorage interface {
	ListHoldings(ctx context.Context, accountID string) ([]models.Holding, error)
	SaveHolding(ctx context.Context, holding *models.Holding) error
	DeleteHolding(ctx context.Context, accountID, code string) error
}

// RateStorage persists the last known exchange rates so the rate
// service can fall back to them when the upstream provider is down.
type RateStorage interface {
	GetRate(ctx context.Context, from, to string) (*models.ExchangeRate, error)
	SaveRate(ctx context.Context, rate *models.ExchangeRate) error
}

// StorageManager bundles the storage areas and owns their lifecycle.
type StorageManager interface {
	HoldingStorage() HoldingStorage
	RateStorage() RateStorage
	Close() error
}
