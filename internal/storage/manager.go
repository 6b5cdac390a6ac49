// Package storage wires the persistence areas behind StorageManager.
package storage

import (
	"fmt"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/storage/badger"
)

// Manager owns the BadgerHold connection and hands out the typed
// storage areas that share it.
type Manager struct {
	store    *badger.Store
	holdings interfaces.HoldingStorage
	rates    interfaces.RateStorage
	logger   *common.Logger
}

// NewManager opens the store at the configured path and builds the
// storage areas.
func NewManager(config *common.Config, logger *common.Logger) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening storage at %s: %w", config.Storage.Path, err)
	}

	return &Manager{
		store:    store,
		holdings: badger.NewHoldingStorage(store, logger),
		rates:    badger.NewRateStorage(store, logger),
		logger:   logger,
	}, nil
}

// HoldingStorage returns the holdings area.
func (m *Manager) HoldingStorage() interfaces.HoldingStorage {
	return m.holdings
}

// RateStorage returns the exchange-rate area.
func (m *Manager) RateStorage() interfaces.RateStorage {
	return m.rates
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	m.logger.Debug().Msg("Closing storage")
	return m.store.Close()
}

// Ensure Manager implements StorageManager
var _ interfaces.StorageManager = (*Manager)(nil)
