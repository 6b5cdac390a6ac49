package badger

import (
	"context"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
)

// rateStorage implements RateStorage using BadgerHold.
type rateStorage struct {
	store  *Store
	logger *common.Logger
}

// NewRateStorage creates an exchange-rate store over the given connection.
func NewRateStorage(store *Store, logger *common.Logger) interfaces.RateStorage {
	return &rateStorage{store: store, logger: logger}
}

func (s *rateStorage) GetRate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	key := models.ExchangeRate{From: from, To: to}.Key()
	var rate models.ExchangeRate
	err := s.store.db.Get(key, &rate)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("rate '%s' not found", key)
		}
		return nil, fmt.Errorf("failed to get rate %s: %w", key, err)
	}
	return &rate, nil
}

func (s *rateStorage) SaveRate(ctx context.Context, rate *models.ExchangeRate) error {
	if rate.From == "" || rate.To == "" {
		return fmt.Errorf("rate requires from and to currencies")
	}
	if err := s.store.db.Upsert(rate.Key(), rate); err != nil {
		return fmt.Errorf("failed to save rate %s: %w", rate.Key(), err)
	}
	s.logger.Debug().Str("pair", rate.Key()).Float64("rate", rate.Rate).Msg("Exchange rate saved")
	return nil
}

// Ensure rateStorage implements RateStorage
var _ interfaces.RateStorage = (*rateStorage)(nil)
