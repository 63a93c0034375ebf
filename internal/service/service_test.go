package service

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/truckore/truckore/internal/config"
	"github.com/truckore/truckore/internal/storage"
)

// testEnv wires the service layer over a migrated SQLite store in a temp
// directory. Bcrypt runs at minimum cost so the suite stays fast.
type testEnv struct {
	cfg     *config.Config
	store   *storage.Store
	configs *ConfigService
	audit   *AuditService
	users   *UserService
	serials *SerialService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Storage.FallbackDir = filepath.Join(t.TempDir(), "fallback")
	cfg.Auth.BcryptCost = bcrypt.MinCost

	logger := zaptest.NewLogger(t)
	store, err := storage.New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(t.Context()))

	configs := NewConfigService(store)
	audit := NewAuditService(store, logger)
	users := NewUserService(store, cfg, configs, audit, logger)
	serials := NewSerialService(configs)

	return &testEnv{
		cfg:     cfg,
		store:   store,
		configs: configs,
		audit:   audit,
		users:   users,
		serials: serials,
	}
}
