package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		configContent := `
server:
  port: 9000
  host: 127.0.0.1
storage:
  backend: sqlite
  sqlite:
    path: /tmp/test.db
  fallback_dir: /tmp/fallback
auth:
  bcrypt_cost: 12
  max_failed_attempts: 5
  lockout_duration: 30m
  jwt:
    secret: test-secret
    expiration: 12h
    issuer: truckore-test
logging:
  level: debug
  format: console
  output: stdout
`
		err := os.WriteFile(configPath, []byte(configContent), 0644)
		require.NoError(t, err)

		cfg, err := Load(configPath, nil)
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, "sqlite", cfg.Storage.Backend)
		assert.Equal(t, "/tmp/fallback", cfg.Storage.FallbackDir)
		assert.Equal(t, "test-secret", cfg.Auth.JWT.Secret)
		assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutDuration)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("Load with non-existent file uses defaults", func(t *testing.T) {
		cfg, err := Load("/non/existent/path.yaml", nil)
		require.NoError(t, err)
		assert.Equal(t, 8420, cfg.Server.Port)
		assert.Equal(t, "sqlite", cfg.Storage.Backend)
		assert.Equal(t, 12, cfg.Auth.BcryptCost)
		assert.Equal(t, 5, cfg.Auth.MaxFailedAttempts)
		assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutDuration)
	})

	t.Run("Load with invalid YAML fails", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		err := os.WriteFile(configPath, []byte("server: [not a map"), 0644)
		require.NoError(t, err)

		_, err = Load(configPath, nil)
		assert.Error(t, err)
	})

	t.Run("Environment variables override file values", func(t *testing.T) {
		t.Setenv("TRUCKORE_SERVER_PORT", "9999")
		t.Setenv("TRUCKORE_STORAGE_SQLITE_PATH", "/tmp/env.db")
		t.Setenv("TRUCKORE_LOG_LEVEL", "warn")

		cfg, err := Load("/non/existent/path.yaml", nil)
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "/tmp/env.db", cfg.Storage.SQLite.Path)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return Default() }

	t.Run("Default config is valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("Invalid port fails", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Unknown storage backend fails", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Backend = "mongodb"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid storage backend")
	})

	t.Run("SQLite without path fails", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.SQLite.Path = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("Postgres without host fails", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Backend = "postgres"
		cfg.Storage.Postgres.Database = "truckore"
		assert.Error(t, cfg.Validate())
	})

	t.Run("Missing fallback dir fails", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.FallbackDir = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("Bcrypt cost below 10 fails", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.BcryptCost = 4
		assert.Error(t, cfg.Validate())
	})

	t.Run("Zero max failed attempts fails", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.MaxFailedAttempts = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Invalid log level fails", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})
}

func TestGetDSN(t *testing.T) {
	t.Run("SQLite DSN is the file path", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.SQLite.Path = "/data/truckore.db"
		assert.Equal(t, "/data/truckore.db", cfg.GetDSN())
	})

	t.Run("Postgres DSN contains connection parameters", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Backend = "postgres"
		cfg.Storage.Postgres = PostgresConfig{
			Host:     "db.local",
			Port:     5432,
			Database: "truckore",
			User:     "scale",
			Password: "secret",
			SSLMode:  "disable",
		}
		dsn := cfg.GetDSN()
		assert.Contains(t, dsn, "host=db.local")
		assert.Contains(t, dsn, "dbname=truckore")
		assert.Contains(t, dsn, "sslmode=disable")
	})
}
