package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
)

// holdingStorage implements HoldingStorage using BadgerHold.
type holdingStorage struct {
	store  *Store
	logger *common.Logger
}

// NewHoldingStorage creates a holdings store over the given connection.
func NewHoldingStorage(store *Store, logger *common.Logger) interfaces.HoldingStorage {
	return &holdingStorage{store: store, logger: logger}
}

func (s *holdingStorage) ListHoldings(ctx context.Context, accountID string) ([]models.Holding, error) {
	var holdings []models.Holding
	err := s.store.db.Find(&holdings, badgerhold.Where("AccountID").Eq(accountID).Index("AccountID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings for %s: %w", accountID, err)
	}

	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Code < holdings[j].Code
	})
	return holdings, nil
}

func (s *holdingStorage) SaveHolding(ctx context.Context, holding *models.Holding) error {
	if holding.AccountID == "" || holding.Code == "" {
		return fmt.Errorf("holding requires account and code")
	}
	holding.UpdatedAt = time.Now()

	if err := s.store.db.Upsert(holding.Key(), holding); err != nil {
		return fmt.Errorf("failed to save holding %s: %w", holding.Key(), err)
	}
	s.logger.Debug().Str("key", holding.Key()).Float64("quantity", holding.Quantity).Msg("Holding saved")
	return nil
}

func (s *holdingStorage) DeleteHolding(ctx context.Context, accountID, code string) error {
	key := models.Holding{AccountID: accountID, Code: code}.Key()
	err := s.store.db.Delete(key, models.Holding{})
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("holding '%s' not found", key)
		}
		return fmt.Errorf("failed to delete holding %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Msg("Holding deleted")
	return nil
}

// Ensure holdingStorage implements HoldingStorage
var _ interfaces.HoldingStorage = (*holdingStorage)(nil)
