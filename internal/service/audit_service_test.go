package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
	"github.com/truckore/truckore/internal/models"
	"github.com/truckore/truckore/internal/storage"
)

// insertLogAt writes a log entry with an explicit timestamp, bypassing
// Record, so ordering and retention tests control the clock.
func insertLogAt(t *testing.T, env *testEnv, action, userID string, ts time.Time) string {
	t.Helper()

	var userValue any
	if userID != "" {
		userValue = userID
	}
	id := uuid.New().String()
	err := env.store.Exec(t.Context(), storage.Insert{
		Table:   "security_logs",
		Columns: []string{"id", "user_id", "action", "details", "timestamp"},
		Values:  []any{id, userValue, action, "test entry", ts},
	})
	require.NoError(t, err)
	return id
}

func TestAuditRecordAndQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	env.audit.Record(ctx, models.ActionLoginSuccess, "u-1", "user logged in")
	env.audit.Record(ctx, models.ActionLoginFailed, "", "unknown username")

	entries, err := env.audit.Query(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, models.ActionLoginFailed, entries[0].Action)
	assert.False(t, entries[0].UserID.Valid)
	assert.Equal(t, models.ActionLoginSuccess, entries[1].Action)
	assert.Equal(t, "u-1", entries[1].UserID.String)
}

func TestAuditQueryFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	insertLogAt(t, env, models.ActionLoginSuccess, "u-1", base)
	insertLogAt(t, env, models.ActionLoginFailed, "u-2", base.Add(time.Hour))
	insertLogAt(t, env, models.ActionLogout, "u-1", base.Add(2*time.Hour))

	t.Run("By user", func(t *testing.T) {
		entries, err := env.audit.Query(ctx, 0, "u-1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, models.ActionLogout, entries[0].Action)
		assert.Equal(t, models.ActionLoginSuccess, entries[1].Action)
	})

	t.Run("With limit", func(t *testing.T) {
		entries, err := env.audit.Query(ctx, 1, "")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.ActionLogout, entries[0].Action)
	})

	t.Run("By date range, bounds inclusive", func(t *testing.T) {
		entries, err := env.audit.QueryByDateRange(ctx, base, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, models.ActionLoginFailed, entries[0].Action)
		assert.Equal(t, models.ActionLoginSuccess, entries[1].Action)
	})
}

func TestAuditCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	now := time.Now().UTC()
	insertLogAt(t, env, models.ActionLoginSuccess, "u-1", now.AddDate(0, 0, -120))
	insertLogAt(t, env, models.ActionLoginFailed, "u-1", now.AddDate(0, 0, -91))
	keptID := insertLogAt(t, env, models.ActionLogout, "u-1", now.AddDate(0, 0, -30))
	insertLogAt(t, env, models.ActionLoginSuccess, "u-2", now)

	removed, err := env.audit.Cleanup(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := env.audit.Query(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, keptID, entries[1].ID)
}

// Audit writes are best-effort: a failing store must not panic or surface an
// error to the operation being recorded.
func TestAuditRecordBestEffort(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	// A duplicate id makes the insert fail; Record must swallow it.
	id := insertLogAt(t, env, models.ActionLoginSuccess, "u-1", time.Now().UTC())
	err := env.store.Exec(ctx, storage.Insert{
		Table:   "security_logs",
		Columns: []string{"id", "user_id", "action", "details", "timestamp"},
		Values:  []any{id, nil, models.ActionLoginFailed, "dup", time.Now().UTC()},
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	assert.NotPanics(t, func() {
		env.audit.Record(ctx, models.ActionLoginFailed, "", "still recorded best-effort")
	})
}
