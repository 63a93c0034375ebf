// Package storage provides the dual-backend persistence layer for the
// Truckore identity core. Repositories express reads and writes as typed
// commands; each backend interprets the same command, so results are
// observationally equivalent whether the native engine or the fallback
// store served the call.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Storage layer errors.
var (
	// ErrBackendUnavailable indicates the native engine could not be reached.
	// The store recovers from it by re-issuing the command against the
	// fallback backend; it is never surfaced to repositories.
	ErrBackendUnavailable = errors.New("native backend unavailable")

	// ErrUnsupportedStatement indicates a raw SQL statement outside the
	// supported subset. This is a programmer error and fails loudly.
	ErrUnsupportedStatement = errors.New("unsupported statement")

	// ErrConflict indicates a uniqueness violation (e.g. duplicate username).
	ErrConflict = errors.New("unique constraint violation")

	// ErrNotFound indicates a filter matched no rows where one was required.
	ErrNotFound = errors.New("row not found")
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Filter is a single-column equality predicate, the only WHERE shape the
// fallback engine supports.
type Filter struct {
	Column string
	Value  any
}

// Assignment sets one column in an UPDATE. Ordered slices keep placeholder
// rendering deterministic across backends.
type Assignment struct {
	Column string
	Value  any
}

// Command is one of Select, Insert, Update or Delete.
type Command interface {
	CommandTable() string
}

// Select reads all columns from a table, optionally filtered.
type Select struct {
	Table  string
	Filter *Filter
}

// Insert appends a row. Columns and Values are parallel slices.
type Insert struct {
	Table   string
	Columns []string
	Values  []any
}

// Update modifies every row matching Filter.
type Update struct {
	Table  string
	Set    []Assignment
	Filter Filter
}

// Delete removes every row matching Filter.
type Delete struct {
	Table  string
	Filter Filter
}

func (c Select) CommandTable() string { return c.Table }
func (c Insert) CommandTable() string { return c.Table }
func (c Update) CommandTable() string { return c.Table }
func (c Delete) CommandTable() string { return c.Table }

// Backend is implemented by the native engine and the fallback store.
type Backend interface {
	Query(ctx context.Context, cmd Select) ([]Row, error)
	Exec(ctx context.Context, cmd Command) error
	Ping(ctx context.Context) error
}

// ParseStatement converts a raw SQL statement from the command boundary into
// a typed command. Only the shapes the fallback engine can execute are
// accepted:
//
//	SELECT * FROM t [WHERE col = ?]
//	INSERT INTO t (a, b, ...) VALUES (?, ?, ...)
//	UPDATE t SET a = ?, b = ? WHERE col = ?
//	DELETE FROM t WHERE col = ?
//
// Anything else returns ErrUnsupportedStatement.
func ParseStatement(statement string, params []any) (Command, error) {
	stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(statement), ";"))
	upper := strings.ToUpper(stmt)

	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return parseSelect(stmt, upper, params)
	case strings.HasPrefix(upper, "INSERT"):
		return parseInsert(stmt, upper, params)
	case strings.HasPrefix(upper, "UPDATE"):
		return parseUpdate(stmt, upper, params)
	case strings.HasPrefix(upper, "DELETE"):
		return parseDelete(stmt, upper, params)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, statement)
}

func parseSelect(stmt, upper string, params []any) (Command, error) {
	fromIdx := strings.Index(upper, " FROM ")
	if fromIdx < 0 || strings.TrimSpace(stmt[len("SELECT"):fromIdx]) != "*" {
		return nil, fmt.Errorf("%w: only SELECT * is supported: %q", ErrUnsupportedStatement, stmt)
	}
	rest := strings.TrimSpace(stmt[fromIdx+len(" FROM "):])

	whereIdx := strings.Index(strings.ToUpper(rest), " WHERE ")
	if whereIdx < 0 {
		if !validIdent(rest) {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
		}
		if len(params) != 0 {
			return nil, fmt.Errorf("%w: parameter count mismatch", ErrUnsupportedStatement)
		}
		return Select{Table: rest}, nil
	}

	table := strings.TrimSpace(rest[:whereIdx])
	col, err := parseEqPredicate(rest[whereIdx+len(" WHERE "):])
	if err != nil || !validIdent(table) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
	}
	if len(params) != 1 {
		return nil, fmt.Errorf("%w: parameter count mismatch", ErrUnsupportedStatement)
	}
	return Select{Table: table, Filter: &Filter{Column: col, Value: params[0]}}, nil
}

func parseInsert(stmt, upper string, params []any) (Command, error) {
	if !strings.HasPrefix(upper, "INSERT INTO ") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
	}
	rest := strings.TrimSpace(stmt[len("INSERT INTO "):])

	open := strings.Index(rest, "(")
	if open < 0 {
		return nil, fmt.Errorf("%w: column list required: %q", ErrUnsupportedStatement, stmt)
	}
	table := strings.TrimSpace(rest[:open])
	closeIdx := strings.Index(rest, ")")
	if closeIdx < open || !validIdent(table) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
	}

	var columns []string
	for _, c := range strings.Split(rest[open+1:closeIdx], ",") {
		c = strings.TrimSpace(c)
		if !validIdent(c) {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
		}
		columns = append(columns, c)
	}

	tail := strings.TrimSpace(rest[closeIdx+1:])
	if !strings.HasPrefix(strings.ToUpper(tail), "VALUES") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
	}
	placeholders := strings.Count(tail, "?")
	if placeholders != len(columns) || len(params) != len(columns) {
		return nil, fmt.Errorf("%w: parameter count mismatch", ErrUnsupportedStatement)
	}
	return Insert{Table: table, Columns: columns, Values: params}, nil
}

func parseUpdate(stmt, upper string, params []any) (Command, error) {
	setIdx := strings.Index(upper, " SET ")
	whereIdx := strings.LastIndex(upper, " WHERE ")
	if setIdx < 0 || whereIdx < setIdx {
		return nil, fmt.Errorf("%w: UPDATE requires SET and WHERE: %q", ErrUnsupportedStatement, stmt)
	}

	table := strings.TrimSpace(stmt[len("UPDATE"):setIdx])
	if !validIdent(table) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
	}

	var set []Assignment
	for _, part := range strings.Split(stmt[setIdx+len(" SET "):whereIdx], ",") {
		col, err := parseEqPredicate(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
		}
		set = append(set, Assignment{Column: col})
	}

	col, err := parseEqPredicate(stmt[whereIdx+len(" WHERE "):])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
	}
	if len(params) != len(set)+1 {
		return nil, fmt.Errorf("%w: parameter count mismatch", ErrUnsupportedStatement)
	}
	for i := range set {
		set[i].Value = params[i]
	}
	return Update{Table: table, Set: set, Filter: Filter{Column: col, Value: params[len(set)]}}, nil
}

func parseDelete(stmt, upper string, params []any) (Command, error) {
	if !strings.HasPrefix(upper, "DELETE FROM ") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
	}
	rest := strings.TrimSpace(stmt[len("DELETE FROM "):])

	whereIdx := strings.Index(strings.ToUpper(rest), " WHERE ")
	if whereIdx < 0 {
		return nil, fmt.Errorf("%w: DELETE requires WHERE: %q", ErrUnsupportedStatement, stmt)
	}
	table := strings.TrimSpace(rest[:whereIdx])
	col, err := parseEqPredicate(rest[whereIdx+len(" WHERE "):])
	if err != nil || !validIdent(table) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, stmt)
	}
	if len(params) != 1 {
		return nil, fmt.Errorf("%w: parameter count mismatch", ErrUnsupportedStatement)
	}
	return Delete{Table: table, Filter: Filter{Column: col, Value: params[0]}}, nil
}

// parseEqPredicate parses "col = ?" and returns the column name.
func parseEqPredicate(s string) (string, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("not an equality predicate: %q", s)
	}
	col := strings.TrimSpace(parts[0])
	if !validIdent(col) || strings.TrimSpace(parts[1]) != "?" {
		return "", fmt.Errorf("not an equality predicate: %q", s)
	}
	return col, nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
