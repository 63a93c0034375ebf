// Package config provides configuration management for the Truckore identity
// core. It handles loading configuration from YAML files, applying environment
// variable overrides and command line flags, and validating the result for
// server, storage, auth, logging, and security settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	Host         string        `yaml:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig holds the native backend and fallback store configuration
type StorageConfig struct {
	Backend     string         `yaml:"backend"` // "sqlite" or "postgres"
	SQLite      SQLiteConfig   `yaml:"sqlite"`
	Postgres    PostgresConfig `yaml:"postgres"`
	FallbackDir string         `yaml:"fallback_dir"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Database     string `yaml:"database"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// AuthConfig holds authentication policy and session token configuration
type AuthConfig struct {
	BcryptCost        int           `yaml:"bcrypt_cost"`
	MaxFailedAttempts int           `yaml:"max_failed_attempts"`
	LockoutDuration   time.Duration `yaml:"lockout_duration"`
	JWT               JWTConfig     `yaml:"jwt"`
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Expiration time.Duration `yaml:"expiration"`
	Issuer     string        `yaml:"issuer"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSEnabled bool     `yaml:"cors_enabled"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Default returns a configuration suitable for a single-station install.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8420,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:     "sqlite",
			SQLite:      SQLiteConfig{Path: "truckore_data.db"},
			FallbackDir: "fallback_store",
		},
		Auth: AuthConfig{
			BcryptCost:        12,
			MaxFailedAttempts: 5,
			LockoutDuration:   30 * time.Minute,
			JWT: JWTConfig{
				Expiration: 12 * time.Hour,
				Issuer:     "truckore",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}

// Load reads the configuration file, then applies environment variable
// overrides and command line flags on top (flags win).
func Load(path string, flags *Flags) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing file is fine: defaults + env + flags.
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if flags != nil {
		flags.apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies TRUCKORE_* environment variable overrides
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("TRUCKORE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("TRUCKORE_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}

	if backend := os.Getenv("TRUCKORE_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if path := os.Getenv("TRUCKORE_STORAGE_SQLITE_PATH"); path != "" {
		c.Storage.SQLite.Path = path
	}
	if dir := os.Getenv("TRUCKORE_STORAGE_FALLBACK_DIR"); dir != "" {
		c.Storage.FallbackDir = dir
	}
	if pgHost := os.Getenv("TRUCKORE_STORAGE_POSTGRES_HOST"); pgHost != "" {
		c.Storage.Postgres.Host = pgHost
	}
	if pgPort := os.Getenv("TRUCKORE_STORAGE_POSTGRES_PORT"); pgPort != "" {
		if p, err := strconv.Atoi(pgPort); err == nil {
			c.Storage.Postgres.Port = p
		}
	}
	if pgDB := os.Getenv("TRUCKORE_STORAGE_POSTGRES_DATABASE"); pgDB != "" {
		c.Storage.Postgres.Database = pgDB
	}
	if pgUser := os.Getenv("TRUCKORE_STORAGE_POSTGRES_USER"); pgUser != "" {
		c.Storage.Postgres.User = pgUser
	}
	if pgPass := os.Getenv("TRUCKORE_STORAGE_POSTGRES_PASSWORD"); pgPass != "" {
		c.Storage.Postgres.Password = pgPass
	}

	if secret := os.Getenv("TRUCKORE_JWT_SECRET"); secret != "" {
		c.Auth.JWT.Secret = secret
	}

	if level := os.Getenv("TRUCKORE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Storage.Backend != "sqlite" && c.Storage.Backend != "postgres" {
		return fmt.Errorf("invalid storage backend: %s (must be 'sqlite' or 'postgres')", c.Storage.Backend)
	}
	if c.Storage.Backend == "sqlite" && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("SQLite path not specified")
	}
	if c.Storage.Backend == "postgres" {
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.Database == "" {
			return fmt.Errorf("PostgreSQL host and database must be specified")
		}
	}
	if c.Storage.FallbackDir == "" {
		return fmt.Errorf("fallback store directory not specified")
	}

	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 10 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.MaxFailedAttempts < 1 {
		return fmt.Errorf("max failed attempts must be at least 1, got %d", c.Auth.MaxFailedAttempts)
	}
	if c.Auth.LockoutDuration <= 0 {
		return fmt.Errorf("lockout duration must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// GetDSN returns the native backend connection string
func (c *Config) GetDSN() string {
	switch c.Storage.Backend {
	case "sqlite":
		return c.Storage.SQLite.Path
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Storage.Postgres.Host,
			c.Storage.Postgres.Port,
			c.Storage.Postgres.User,
			c.Storage.Postgres.Password,
			c.Storage.Postgres.Database,
			c.Storage.Postgres.SSLMode,
		)
	default:
		return ""
	}
}
