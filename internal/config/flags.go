package config

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
)

// Flags holds all command line flag values
type Flags struct {
	// General
	configFile *string
	version    *bool

	// Server
	serverPort *int
	serverHost *string

	// Storage
	storageBackend     *string
	storageSQLitePath  *string
	storageFallbackDir *string
	pgHost             *string
	pgPort             *int
	pgDatabase         *string
	pgUser             *string
	pgPassword         *string
	pgSSLMode          *string

	// Auth
	authBcryptCost        *int
	authMaxFailedAttempts *int
	authLockoutDuration   *string
	jwtSecret             *string
	jwtExpiration         *string
	jwtIssuer             *string

	// Logging
	logLevel  *string
	logFormat *string
	logOutput *string

	// Security
	corsEnabled *bool
	corsOrigins *[]string
}

// ParseFlags defines and parses all command line flags
func ParseFlags() (*Flags, string, bool) {
	f := &Flags{}

	f.configFile = flag.StringP("config", "c", "config.yaml", "Path to configuration file")
	f.version = flag.BoolP("version", "v", false, "Print version and exit")

	f.serverPort = flag.Int("server.port", 0, "HTTP server port")
	f.serverHost = flag.String("server.host", "", "HTTP server bind address")

	f.storageBackend = flag.String("storage.backend", "", "Native storage backend (sqlite or postgres)")
	f.storageSQLitePath = flag.String("storage.sqlite.path", "", "SQLite database file path")
	f.storageFallbackDir = flag.String("storage.fallback-dir", "", "Directory for the fallback table store")
	f.pgHost = flag.String("storage.postgres.host", "", "PostgreSQL host")
	f.pgPort = flag.Int("storage.postgres.port", 0, "PostgreSQL port")
	f.pgDatabase = flag.String("storage.postgres.database", "", "PostgreSQL database name")
	f.pgUser = flag.String("storage.postgres.user", "", "PostgreSQL user")
	f.pgPassword = flag.String("storage.postgres.password", "", "PostgreSQL password")
	f.pgSSLMode = flag.String("storage.postgres.ssl-mode", "", "PostgreSQL SSL mode")

	f.authBcryptCost = flag.Int("auth.bcrypt-cost", 0, "bcrypt work factor for password hashing")
	f.authMaxFailedAttempts = flag.Int("auth.max-failed-attempts", 0, "Failed logins before account lockout")
	f.authLockoutDuration = flag.String("auth.lockout-duration", "", "Account lockout duration (e.g., 30m)")
	f.jwtSecret = flag.String("auth.jwt.secret", "", "JWT secret key")
	f.jwtExpiration = flag.String("auth.jwt.expiration", "", "JWT expiration duration (e.g., 12h)")
	f.jwtIssuer = flag.String("auth.jwt.issuer", "", "JWT issuer")

	f.logLevel = flag.StringP("log.level", "l", "", "Log level (debug, info, warn, error)")
	f.logFormat = flag.String("log.format", "", "Log format (json or console)")
	f.logOutput = flag.String("log.output", "", "Log output (stdout or file path)")

	f.corsEnabled = flag.Bool("security.cors-enabled", false, "Enable CORS")
	f.corsOrigins = flag.StringSlice("security.cors-origins", nil, "CORS allowed origins (can be specified multiple times)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Truckore identity core - local authentication and persistence service\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nConfiguration priority (highest to lowest):\n")
		fmt.Fprintf(os.Stderr, "  1. Command line flags\n")
		fmt.Fprintf(os.Stderr, "  2. Environment variables (TRUCKORE_*)\n")
		fmt.Fprintf(os.Stderr, "  3. Configuration file (default: config.yaml)\n")
	}

	flag.Parse()

	return f, *f.configFile, *f.version
}

// apply overlays flag values that were explicitly set onto cfg.
func (f *Flags) apply(cfg *Config) {
	if changed("server.port") {
		cfg.Server.Port = *f.serverPort
	}
	if changed("server.host") {
		cfg.Server.Host = *f.serverHost
	}

	if changed("storage.backend") {
		cfg.Storage.Backend = *f.storageBackend
	}
	if changed("storage.sqlite.path") {
		cfg.Storage.SQLite.Path = *f.storageSQLitePath
	}
	if changed("storage.fallback-dir") {
		cfg.Storage.FallbackDir = *f.storageFallbackDir
	}
	if changed("storage.postgres.host") {
		cfg.Storage.Postgres.Host = *f.pgHost
	}
	if changed("storage.postgres.port") {
		cfg.Storage.Postgres.Port = *f.pgPort
	}
	if changed("storage.postgres.database") {
		cfg.Storage.Postgres.Database = *f.pgDatabase
	}
	if changed("storage.postgres.user") {
		cfg.Storage.Postgres.User = *f.pgUser
	}
	if changed("storage.postgres.password") {
		cfg.Storage.Postgres.Password = *f.pgPassword
	}
	if changed("storage.postgres.ssl-mode") {
		cfg.Storage.Postgres.SSLMode = *f.pgSSLMode
	}

	if changed("auth.bcrypt-cost") {
		cfg.Auth.BcryptCost = *f.authBcryptCost
	}
	if changed("auth.max-failed-attempts") {
		cfg.Auth.MaxFailedAttempts = *f.authMaxFailedAttempts
	}
	if changed("auth.lockout-duration") {
		if d, err := time.ParseDuration(*f.authLockoutDuration); err == nil {
			cfg.Auth.LockoutDuration = d
		}
	}
	if changed("auth.jwt.secret") {
		cfg.Auth.JWT.Secret = *f.jwtSecret
	}
	if changed("auth.jwt.expiration") {
		if d, err := time.ParseDuration(*f.jwtExpiration); err == nil {
			cfg.Auth.JWT.Expiration = d
		}
	}
	if changed("auth.jwt.issuer") {
		cfg.Auth.JWT.Issuer = *f.jwtIssuer
	}

	if changed("log.level") {
		cfg.Logging.Level = *f.logLevel
	}
	if changed("log.format") {
		cfg.Logging.Format = *f.logFormat
	}
	if changed("log.output") {
		cfg.Logging.Output = *f.logOutput
	}

	if changed("security.cors-enabled") {
		cfg.Security.CORSEnabled = *f.corsEnabled
	}
	if changed("security.cors-origins") {
		cfg.Security.CORSOrigins = *f.corsOrigins
	}
}

func changed(name string) bool {
	lookup := flag.Lookup(name)
	return lookup != nil && lookup.Changed
}
