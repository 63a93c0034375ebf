package storage

import (
	"database/sql"
	"strconv"
	"time"
)

// Accessors below coerce across backend representation drift: the native
// engine returns int64/bool/time.Time, the fallback store returns
// float64/bool/RFC 3339 strings after a JSON round-trip.

// String returns the column as a string, or "" when absent or NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case nil:
		return ""
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// NullString returns the column as a nullable string.
func (r Row) NullString(col string) sql.NullString {
	v, ok := r[col]
	if !ok || v == nil {
		return sql.NullString{}
	}
	if s, ok := v.(string); ok {
		return sql.NullString{String: s, Valid: true}
	}
	return sql.NullString{}
}

// Bool returns the column as a bool. Numeric representations (SQLite stores
// booleans as 0/1) are accepted.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v == "true" || v == "1"
	default:
		return false
	}
}

// Int returns the column as an int, or 0 when absent or unparseable.
func (r Row) Int(col string) int {
	switch v := r[col].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// Time returns the column as a time, reporting whether it was present.
func (r Row) Time(col string) (time.Time, bool) {
	switch v := r[col].(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// NullTime returns the column as a nullable time.
func (r Row) NullTime(col string) sql.NullTime {
	if t, ok := r.Time(col); ok {
		return sql.NullTime{Time: t, Valid: true}
	}
	return sql.NullTime{}
}
