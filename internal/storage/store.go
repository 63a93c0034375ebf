package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/truckore/truckore/internal/config"
	"go.uber.org/zap"
)

// Store is the storage facade handed to every repository. It selects a
// backend per call: the native engine when reachable, otherwise the fallback
// store, re-issuing the identical command so both backends stay
// observationally equivalent. The selection is never cached; the native
// engine can disappear and reappear mid-session.
type Store struct {
	native   *NativeBackend
	fallback *FallbackBackend
	logger   *zap.Logger
}

// New builds a store from configuration. A native engine that cannot be
// opened at startup is not fatal; the store runs degraded on the fallback
// until the engine becomes reachable.
func New(cfg *config.Config, logger *zap.Logger) (*Store, error) {
	fallback, err := NewFallback(cfg.Storage.FallbackDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fallback store: %w", err)
	}

	native, err := NewNative(cfg)
	if err != nil {
		logger.Warn("native backend unavailable at startup, running on fallback store",
			zap.String("backend", cfg.Storage.Backend),
			zap.Error(err),
		)
		native = nil
	}

	return &Store{
		native:   native,
		fallback: fallback,
		logger:   logger,
	}, nil
}

// Close releases the native connection pool, if any.
func (s *Store) Close() error {
	if s.native == nil {
		return nil
	}
	return s.native.Close()
}

// Migrate applies native schema migrations. Skipped without error when the
// engine is unreachable; the fallback store needs no schema.
func (s *Store) Migrate(ctx context.Context) error {
	if s.native == nil || s.native.Ping(ctx) != nil {
		s.logger.Warn("skipping migrations, native backend unavailable")
		return nil
	}
	return s.native.Migrate()
}

// NativeAvailable reports whether the native engine answers right now. The
// answer is valid only for this instant; callers must still handle fallback.
func (s *Store) NativeAvailable(ctx context.Context) bool {
	return s.native != nil && s.native.Ping(ctx) == nil
}

// Query executes a Select on the selected backend.
func (s *Store) Query(ctx context.Context, cmd Select) ([]Row, error) {
	if s.NativeAvailable(ctx) {
		rows, err := s.native.Query(ctx, cmd)
		if err == nil || !errors.Is(err, ErrBackendUnavailable) {
			return rows, err
		}
		s.logFallback("query", cmd.Table, err)
	} else {
		s.logFallback("query", cmd.Table, nil)
	}
	return s.fallback.Query(ctx, cmd)
}

// Exec executes a mutating command on the selected backend. Domain errors
// (e.g. uniqueness conflicts) surface to the caller; only availability
// failures trigger fallback substitution.
func (s *Store) Exec(ctx context.Context, cmd Command) error {
	if s.NativeAvailable(ctx) {
		err := s.native.Exec(ctx, cmd)
		if err == nil || !errors.Is(err, ErrBackendUnavailable) {
			return err
		}
		s.logFallback("exec", cmd.CommandTable(), err)
	} else {
		s.logFallback("exec", cmd.CommandTable(), nil)
	}
	return s.fallback.Exec(ctx, cmd)
}

// ExecuteQuery is the raw command boundary: a parameterized SELECT forwarded
// to the native engine unrestricted, or interpreted by the fallback engine
// when the native path is unavailable. The fallback accepts only the
// supported statement subset and fails loudly on anything else.
func (s *Store) ExecuteQuery(ctx context.Context, statement string, params []any) ([]Row, error) {
	if s.NativeAvailable(ctx) {
		rows, err := s.native.RawQuery(ctx, statement, params)
		if err == nil || !errors.Is(err, ErrBackendUnavailable) {
			return rows, err
		}
		s.logFallback("raw query", "", err)
	} else {
		s.logFallback("raw query", "", nil)
	}

	cmd, err := ParseStatement(statement, params)
	if err != nil {
		return nil, err
	}
	sel, ok := cmd.(Select)
	if !ok {
		return nil, fmt.Errorf("%w: not a SELECT: %q", ErrUnsupportedStatement, statement)
	}
	return s.fallback.Query(ctx, sel)
}

// ExecuteNonQuery is the mutating half of the raw command boundary.
func (s *Store) ExecuteNonQuery(ctx context.Context, statement string, params []any) error {
	if s.NativeAvailable(ctx) {
		err := s.native.RawExec(ctx, statement, params)
		if err == nil || !errors.Is(err, ErrBackendUnavailable) {
			return err
		}
		s.logFallback("raw exec", "", err)
	} else {
		s.logFallback("raw exec", "", nil)
	}

	cmd, err := ParseStatement(statement, params)
	if err != nil {
		return err
	}
	if _, ok := cmd.(Select); ok {
		return fmt.Errorf("%w: SELECT passed to ExecuteNonQuery: %q", ErrUnsupportedStatement, statement)
	}
	return s.fallback.Exec(ctx, cmd)
}

// logFallback records every degraded-mode transition so operators can see
// when the console is not writing to the native engine.
func (s *Store) logFallback(op, table string, cause error) {
	fields := []zap.Field{zap.String("operation", op)}
	if table != "" {
		fields = append(fields, zap.String("table", table))
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	s.logger.Warn("native backend unavailable, using fallback store", fields...)
}
