package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/truckore/truckore/internal/config"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NativeBackend runs commands against the privileged relational engine,
// SQLite for single-station installs or PostgreSQL for site servers.
type NativeBackend struct {
	db      *sql.DB
	dialect string
}

// NewNative opens the configured native engine. The returned backend is not
// assumed to stay reachable; the store re-checks availability per call.
func NewNative(cfg *config.Config) (*NativeBackend, error) {
	var db *sql.DB
	var err error

	switch cfg.Storage.Backend {
	case "sqlite":
		db, err = sql.Open("sqlite3", cfg.Storage.SQLite.Path+"?_foreign_keys=on")
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// SQLite only allows one writer at a time
		db.SetMaxOpenConns(1)
	case "postgres":
		db, err = sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Storage.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Storage.Postgres.MaxIdleConns)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}

	return &NativeBackend{db: db, dialect: cfg.Storage.Backend}, nil
}

// Close closes the underlying connection pool.
func (n *NativeBackend) Close() error {
	return n.db.Close()
}

// Ping reports whether the native engine is currently reachable.
func (n *NativeBackend) Ping(ctx context.Context) error {
	if err := n.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Migrate runs schema migrations for the configured dialect.
func (n *NativeBackend) Migrate() error {
	var migrationFiles []string
	if n.dialect == "postgres" {
		migrationFiles = []string{
			"migrations/000001_init_schema.postgres.up.sql",
		}
	} else {
		migrationFiles = []string{
			"migrations/000001_init_schema.up.sql",
		}
	}

	for _, migrationFile := range migrationFiles {
		content, err := migrationsFS.ReadFile(migrationFile)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", migrationFile, err)
		}

		for _, stmt := range splitStatements(string(content)) {
			if _, err := n.db.Exec(stmt); err != nil {
				// Idempotent migrations: re-running on an existing schema is fine
				if !strings.Contains(err.Error(), "duplicate column") && !strings.Contains(err.Error(), "already exists") {
					return fmt.Errorf("migration %s failed: %w\nStatement: %s", migrationFile, err, stmt)
				}
			}
		}
	}

	return nil
}

// splitStatements strips comment lines and splits a migration file into
// individual semicolon-terminated statements.
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "--") || line == "" {
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(line, ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	return statements
}

// Query executes a Select command.
func (n *NativeBackend) Query(ctx context.Context, cmd Select) ([]Row, error) {
	query, args := n.renderSelect(cmd)
	return n.RawQuery(ctx, query, args)
}

// Exec executes a mutating command.
func (n *NativeBackend) Exec(ctx context.Context, cmd Command) error {
	var query string
	var args []any

	switch c := cmd.(type) {
	case Insert:
		query, args = n.renderInsert(c)
	case Update:
		query, args = n.renderUpdate(c)
	case Delete:
		query, args = n.renderDelete(c)
	case Select:
		return fmt.Errorf("%w: Select passed to Exec", ErrUnsupportedStatement)
	default:
		return fmt.Errorf("%w: unknown command type %T", ErrUnsupportedStatement, cmd)
	}

	return n.RawExec(ctx, query, args)
}

// RawQuery forwards a parameterized statement to the engine without shape
// restrictions and returns the result rows keyed by column name.
func (n *NativeBackend) RawQuery(ctx context.Context, query string, args []any) ([]Row, error) {
	rows, err := n.db.QueryContext(ctx, n.rebind(query), args...)
	if err != nil {
		return nil, n.translateErr(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// RawExec forwards a parameterized mutation without shape restrictions.
func (n *NativeBackend) RawExec(ctx context.Context, query string, args []any) error {
	if _, err := n.db.ExecContext(ctx, n.rebind(query), args...); err != nil {
		return n.translateErr(err)
	}
	return nil
}

func (n *NativeBackend) renderSelect(cmd Select) (string, []any) {
	if cmd.Filter == nil {
		return fmt.Sprintf("SELECT * FROM %s", cmd.Table), nil
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", cmd.Table, cmd.Filter.Column),
		[]any{cmd.Filter.Value}
}

func (n *NativeBackend) renderInsert(cmd Insert) (string, []any) {
	placeholders := make([]string, len(cmd.Columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		cmd.Table,
		strings.Join(cmd.Columns, ", "),
		strings.Join(placeholders, ", "),
	)
	return query, cmd.Values
}

func (n *NativeBackend) renderUpdate(cmd Update) (string, []any) {
	assignments := make([]string, len(cmd.Set))
	args := make([]any, 0, len(cmd.Set)+1)
	for i, a := range cmd.Set {
		assignments[i] = a.Column + " = ?"
		args = append(args, a.Value)
	}
	args = append(args, cmd.Filter.Value)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		cmd.Table,
		strings.Join(assignments, ", "),
		cmd.Filter.Column,
	)
	return query, args
}

func (n *NativeBackend) renderDelete(cmd Delete) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", cmd.Table, cmd.Filter.Column),
		[]any{cmd.Filter.Value}
}

// rebind converts ? placeholders to $n for the postgres dialect.
func (n *NativeBackend) rebind(query string) string {
	if n.dialect != "postgres" {
		return query
	}

	var sb strings.Builder
	arg := 1
	for _, r := range query {
		if r == '?' {
			fmt.Fprintf(&sb, "$%d", arg)
			arg++
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// translateErr maps driver errors onto the storage taxonomy. The engine can
// disappear between the availability check and the query, so every
// connection-class failure must map to ErrBackendUnavailable to arm the
// fallback substitution.
func (n *NativeBackend) translateErr(err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		switch sqliteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505": // unique_violation
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case pqErr.Code.Class() == "08", // connection exception
			pqErr.Code == "57P03", // cannot_connect_now
			pqErr.Code == "53300": // too_many_connections
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	// Driver errors that arrive as bare strings.
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "unable to open database file") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "the database system is starting up") ||
		strings.Contains(msg, "sql: database is closed") {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return err
}
