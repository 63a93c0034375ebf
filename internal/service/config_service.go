package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/truckore/truckore/internal/models"
	"github.com/truckore/truckore/internal/storage"
)

// ConfigService is the key/value layer for process-wide settings stored in
// the app_config table. It contains no backend-specific logic; upserts are
// serialized by a mutex because the command subset has no atomic
// insert-or-update.
type ConfigService struct {
	store *storage.Store
	mu    sync.Mutex
}

// NewConfigService creates a new config service
func NewConfigService(store *storage.Store) *ConfigService {
	return &ConfigService{store: store}
}

// Get returns the value for key, reporting whether it exists.
func (s *ConfigService) Get(ctx context.Context, key string) (string, bool, error) {
	rows, err := s.store.Query(ctx, storage.Select{
		Table:  "app_config",
		Filter: &storage.Filter{Column: "key", Value: key},
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read config %q: %w", key, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].String("value"), true, nil
}

// Set stores value under key with upsert semantics, refreshing updated_at.
func (s *ConfigService) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var cmd storage.Command
	if exists {
		cmd = storage.Update{
			Table: "app_config",
			Set: []storage.Assignment{
				{Column: "value", Value: value},
				{Column: "updated_at", Value: now},
			},
			Filter: storage.Filter{Column: "key", Value: key},
		}
	} else {
		cmd = storage.Insert{
			Table:   "app_config",
			Columns: []string{"key", "value", "updated_at"},
			Values:  []any{key, value, now},
		}
	}

	if err := s.store.Exec(ctx, cmd); err != nil {
		return fmt.Errorf("failed to write config %q: %w", key, err)
	}
	return nil
}

// IsSetupComplete reads the first-run provisioning flag.
func (s *ConfigService) IsSetupComplete(ctx context.Context) (bool, error) {
	value, ok, err := s.Get(ctx, models.ConfigKeySetupCompleted)
	if err != nil {
		return false, err
	}
	return ok && value == "true", nil
}

// MarkSetupComplete flips the first-run provisioning flag.
func (s *ConfigService) MarkSetupComplete(ctx context.Context) error {
	return s.Set(ctx, models.ConfigKeySetupCompleted, "true")
}
