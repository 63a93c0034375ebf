package storage

import (
	"database/sql/driver"
	"errors"
	"io"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestTranslateErr(t *testing.T) {
	n := &NativeBackend{}

	t.Run("Connection-class failures arm the fallback", func(t *testing.T) {
		unavailable := []error{
			driver.ErrBadConn,
			io.EOF,
			sqlite3.Error{Code: sqlite3.ErrCantOpen},
			sqlite3.Error{Code: sqlite3.ErrBusy},
			sqlite3.Error{Code: sqlite3.ErrIoErr},
			&pq.Error{Code: "08006"}, // connection_failure
			&pq.Error{Code: "57P03"}, // cannot_connect_now
			&pq.Error{Code: "53300"}, // too_many_connections
			errors.New("unable to open database file"),
			errors.New("database is locked"),
			errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
			errors.New("read tcp: connection reset by peer"),
			errors.New("pq: the database system is starting up"),
			errors.New("sql: database is closed"),
		}
		for _, err := range unavailable {
			assert.ErrorIs(t, n.translateErr(err), ErrBackendUnavailable, "error: %v", err)
		}
	})

	t.Run("Uniqueness violations map to conflict", func(t *testing.T) {
		conflicts := []error{
			sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique},
			sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey},
			&pq.Error{Code: "23505"},
			errors.New("UNIQUE constraint failed: users.username"),
			errors.New(`pq: duplicate key value violates unique constraint "users_username_key"`),
		}
		for _, err := range conflicts {
			assert.ErrorIs(t, n.translateErr(err), ErrConflict, "error: %v", err)
		}
	})

	t.Run("Other errors pass through", func(t *testing.T) {
		err := errors.New("NOT NULL constraint failed: users.role")
		translated := n.translateErr(err)
		assert.NotErrorIs(t, translated, ErrBackendUnavailable)
		assert.NotErrorIs(t, translated, ErrConflict)
	})
}
