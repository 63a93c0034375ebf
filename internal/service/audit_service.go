package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/truckore/truckore/internal/models"
	"github.com/truckore/truckore/internal/storage"
	"go.uber.org/zap"
)

// AuditService writes the append-only security log. Recording is
// best-effort: a persistence failure must never abort the security
// operation being described, so Record returns nothing and failures are
// only logged.
type AuditService struct {
	store  *storage.Store
	logger *zap.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store *storage.Store, logger *zap.Logger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

// Record appends a security log entry. userID may be empty (failed logins
// against unknown usernames have no user).
func (s *AuditService) Record(ctx context.Context, action, userID, details string) {
	var userValue any
	if userID != "" {
		userValue = userID
	}

	err := s.store.Exec(ctx, storage.Insert{
		Table:   "security_logs",
		Columns: []string{"id", "user_id", "action", "details", "timestamp"},
		Values:  []any{uuid.New().String(), userValue, action, details, time.Now().UTC()},
	})
	if err != nil {
		s.logger.Warn("failed to record security log entry",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// Query returns up to limit entries, newest first, optionally restricted to
// one user. Filtering and ordering happen in memory so both backends give
// identical results.
func (s *AuditService) Query(ctx context.Context, limit int, userID string) ([]models.SecurityLogEntry, error) {
	var filter *storage.Filter
	if userID != "" {
		filter = &storage.Filter{Column: "user_id", Value: userID}
	}

	rows, err := s.store.Query(ctx, storage.Select{Table: "security_logs", Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("failed to query security logs: %w", err)
	}

	entries := decodeLogEntries(rows)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// QueryByDateRange returns entries with start <= timestamp <= end, newest
// first.
func (s *AuditService) QueryByDateRange(ctx context.Context, start, end time.Time) ([]models.SecurityLogEntry, error) {
	rows, err := s.store.Query(ctx, storage.Select{Table: "security_logs"})
	if err != nil {
		return nil, fmt.Errorf("failed to query security logs: %w", err)
	}

	var entries []models.SecurityLogEntry
	for _, e := range decodeLogEntries(rows) {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// Cleanup deletes entries strictly older than daysToKeep days and returns
// the number removed. This is the only mutating operation permitted on the
// security log.
func (s *AuditService) Cleanup(ctx context.Context, daysToKeep int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)

	rows, err := s.store.Query(ctx, storage.Select{Table: "security_logs"})
	if err != nil {
		return 0, fmt.Errorf("failed to query security logs: %w", err)
	}

	removed := 0
	for _, e := range decodeLogEntries(rows) {
		if !e.Timestamp.Before(cutoff) {
			continue
		}
		err := s.store.Exec(ctx, storage.Delete{
			Table:  "security_logs",
			Filter: storage.Filter{Column: "id", Value: e.ID},
		})
		if err != nil {
			return removed, fmt.Errorf("failed to delete security log entry %s: %w", e.ID, err)
		}
		removed++
	}
	return removed, nil
}

func decodeLogEntries(rows []storage.Row) []models.SecurityLogEntry {
	entries := make([]models.SecurityLogEntry, 0, len(rows))
	for _, row := range rows {
		entry := models.SecurityLogEntry{
			ID:      row.String("id"),
			UserID:  row.NullString("user_id"),
			Action:  row.String("action"),
			Details: row.String("details"),
		}
		if ts, ok := row.Time("timestamp"); ok {
			entry.Timestamp = ts
		}
		entries = append(entries, entry)
	}
	return entries
}
