package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/yuanying/epub-reader/internal/settings"
)

// LoadSettings returns the stored settings, or the defaults when none
// were saved.
func (s *Store) LoadSettings(ctx context.Context) (settings.Settings, error) {
	if err := ctx.Err(); err != nil {
		return settings.Settings{}, err
	}
	prefs := settings.Default()
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, settingsKey, &prefs)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return settings.Default(), nil
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return prefs, nil
}

// SaveSettings validates and stores prefs.
func (s *Store) SaveSettings(ctx context.Context, prefs settings.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prefs.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, settingsKey, prefs)
	})
}
