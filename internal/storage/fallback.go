package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FallbackBackend is the degraded table store used when the native engine is
// unreachable. Each table is a JSON file; every mutation persists the whole
// table immediately, so a crash can lose at most the row in flight.
type FallbackBackend struct {
	dir string
}

// NewFallback creates a fallback store rooted at dir.
func NewFallback(dir string) (*FallbackBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create fallback store directory: %w", err)
	}
	return &FallbackBackend{dir: dir}, nil
}

// Ping always succeeds; the fallback store is local files.
func (f *FallbackBackend) Ping(ctx context.Context) error {
	return nil
}

// Query executes a Select command against the persisted table.
func (f *FallbackBackend) Query(ctx context.Context, cmd Select) ([]Row, error) {
	rows, err := f.loadTable(cmd.Table)
	if err != nil {
		return nil, err
	}
	if cmd.Filter == nil {
		return rows, nil
	}

	var matched []Row
	for _, row := range rows {
		if equalValues(row[cmd.Filter.Column], cmd.Filter.Value) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

// Exec executes a mutating command and persists the table before returning.
func (f *FallbackBackend) Exec(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case Insert:
		return f.execInsert(c)
	case Update:
		return f.execUpdate(c)
	case Delete:
		return f.execDelete(c)
	case Select:
		return fmt.Errorf("%w: Select passed to Exec", ErrUnsupportedStatement)
	default:
		return fmt.Errorf("%w: unknown command type %T", ErrUnsupportedStatement, cmd)
	}
}

// Columns that must be unique per table, mirroring the native schema.
var uniqueColumns = map[string][]string{
	"users":         {"id", "username"},
	"security_logs": {"id"},
	"app_config":    {"key"},
}

func (f *FallbackBackend) execInsert(cmd Insert) error {
	rows, err := f.loadTable(cmd.Table)
	if err != nil {
		return err
	}

	row := make(Row, len(cmd.Columns))
	for i, col := range cmd.Columns {
		row[col] = normalizeValue(cmd.Values[i])
	}

	if tableHasID(cmd.Table) {
		if id, _ := row["id"].(string); id == "" {
			row["id"] = synthesizeID()
		}
	}
	if cmd.Table == "users" {
		injectUserDefaults(row)
	}
	injectTimestampDefaults(cmd.Table, row)

	for _, col := range uniqueColumns[cmd.Table] {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		for _, existing := range rows {
			if equalValues(existing[col], v) {
				return fmt.Errorf("%w: %s.%s", ErrConflict, cmd.Table, col)
			}
		}
	}

	rows = append(rows, row)
	return f.saveTable(cmd.Table, rows)
}

func (f *FallbackBackend) execUpdate(cmd Update) error {
	rows, err := f.loadTable(cmd.Table)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if equalValues(row[cmd.Filter.Column], cmd.Filter.Value) {
			for _, a := range cmd.Set {
				row[a.Column] = normalizeValue(a.Value)
			}
		}
	}
	return f.saveTable(cmd.Table, rows)
}

func (f *FallbackBackend) execDelete(cmd Delete) error {
	rows, err := f.loadTable(cmd.Table)
	if err != nil {
		return err
	}

	kept := rows[:0]
	for _, row := range rows {
		if !equalValues(row[cmd.Filter.Column], cmd.Filter.Value) {
			kept = append(kept, row)
		}
	}
	return f.saveTable(cmd.Table, kept)
}

func (f *FallbackBackend) tablePath(table string) string {
	return filepath.Join(f.dir, table+".json")
}

func (f *FallbackBackend) loadTable(table string) ([]Row, error) {
	data, err := os.ReadFile(f.tablePath(table))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode table %s: %w", table, err)
	}
	return rows, nil
}

// saveTable persists via temp-file-and-rename so a crash mid-write never
// leaves a truncated table on disk.
func (f *FallbackBackend) saveTable(table string, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode table %s: %w", table, err)
	}

	tmp := f.tablePath(table) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write table %s: %w", table, err)
	}
	if err := os.Rename(tmp, f.tablePath(table)); err != nil {
		return fmt.Errorf("failed to persist table %s: %w", table, err)
	}
	return nil
}

// synthesizeID builds a recency+randomness composite. Unique within a single
// local data set, not globally.
func synthesizeID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func tableHasID(table string) bool {
	return table != "app_config"
}

// injectUserDefaults fills the fields a well-formed user row always has, so
// even a direct generic insert cannot produce a malformed account.
func injectUserDefaults(row Row) {
	if _, ok := row["is_active"]; !ok {
		row["is_active"] = true
	}
	if _, ok := row["failed_login_attempts"]; !ok {
		row["failed_login_attempts"] = 0
	}
	if _, ok := row["locked_until"]; !ok {
		row["locked_until"] = nil
	}
	if _, ok := row["last_login_at"]; !ok {
		row["last_login_at"] = nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = now
	}
	if _, ok := row["updated_at"]; !ok {
		row["updated_at"] = now
	}
}

// injectTimestampDefaults mirrors the native schema's CURRENT_TIMESTAMP
// column defaults, so an insert that omits them succeeds on both backends.
func injectTimestampDefaults(table string, row Row) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	switch table {
	case "app_config":
		if _, ok := row["updated_at"]; !ok {
			row["updated_at"] = now
		}
	case "security_logs":
		if _, ok := row["timestamp"]; !ok {
			row["timestamp"] = now
		}
	}
}

// normalizeValue converts values to their JSON-stable representation so that
// a row read back from disk compares equal to one still in memory.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case nil:
		return nil
	default:
		return v
	}
}

// equalValues compares loosely across the type drift introduced by JSON
// round-trips (int vs float64, bool vs 0/1, time vs RFC 3339 string).
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(normalizeValue(a)) == fmt.Sprint(normalizeValue(b))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
