// Package models defines the data structures for persisted entities in the
// Truckore identity core: user accounts, security audit log entries, and the
// application configuration key/value table.
package models

import (
	"database/sql"
	"time"
)

// User roles. Exactly one role per user.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleOperator   = "operator"
)

// ValidRole reports whether role is one of the known user roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleOperator:
		return true
	}
	return false
}

// User represents an operator-console account.
type User struct {
	ID                  string         `db:"id" json:"id"`
	Username            string         `db:"username" json:"username"`
	Email               sql.NullString `db:"email" json:"email"`
	PasswordHash        string         `db:"password_hash" json:"-"`
	Role                string         `db:"role" json:"role"`
	IsActive            bool           `db:"is_active" json:"is_active"`
	FailedLoginAttempts int            `db:"failed_login_attempts" json:"failed_login_attempts"`
	LockedUntil         sql.NullTime   `db:"locked_until" json:"locked_until"`
	LastLoginAt         sql.NullTime   `db:"last_login_at" json:"last_login_at"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// Security log actions. The set is closed; new actions require a schema note.
const (
	ActionLoginSuccess    = "LOGIN_SUCCESS"
	ActionLoginFailed     = "LOGIN_FAILED"
	ActionAccountLocked   = "ACCOUNT_LOCKED"
	ActionUserCreated     = "USER_CREATED"
	ActionUserUpdated     = "USER_UPDATED"
	ActionUserDeleted     = "USER_DELETED"
	ActionPasswordReset   = "PASSWORD_RESET"
	ActionPasswordChanged = "PASSWORD_CHANGED"
	ActionLogout          = "LOGOUT"
	ActionSetupCompleted  = "SETUP_COMPLETED"
)

// SecurityLogEntry is an append-only audit record. Entries are never mutated;
// age-based cleanup is the only permitted deletion.
type SecurityLogEntry struct {
	ID        string         `db:"id" json:"id"`
	UserID    sql.NullString `db:"user_id" json:"user_id"`
	Action    string         `db:"action" json:"action"`
	Details   string         `db:"details" json:"details"`
	Timestamp time.Time      `db:"timestamp" json:"timestamp"`
}

// AppConfig represents a process-wide configuration value stored in the
// app_config table. Structured values are JSON-encoded strings.
type AppConfig struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Well-known app_config keys.
const (
	ConfigKeySetupCompleted     = "setup_completed"
	ConfigKeySerialNumberConfig = "serial_number_config"
)

// SerialNumberConfig controls document-number formatting and the monotonic
// counter state. Stored JSON-encoded under ConfigKeySerialNumberConfig.
type SerialNumberConfig struct {
	Prefix         string `json:"prefix"`
	Separator      string `json:"separator"`
	IncludeYear    bool   `json:"include_year"`
	IncludeMonth   bool   `json:"include_month"`
	YearFormat     string `json:"year_format"` // "YY" or "YYYY"
	CounterStart   int64  `json:"counter_start"`
	CounterPadding int    `json:"counter_padding"`
	CurrentCounter int64  `json:"current_counter"`
	ResetFrequency string `json:"reset_frequency"` // "yearly", "monthly" or "never"
	LastResetDate  string `json:"last_reset_date"` // RFC 3339
}

// DefaultSerialNumberConfig returns the configuration used until an
// administrator customizes numbering.
func DefaultSerialNumberConfig() SerialNumberConfig {
	return SerialNumberConfig{
		Prefix:         "WB",
		Separator:      "-",
		IncludeYear:    true,
		IncludeMonth:   false,
		YearFormat:     "YYYY",
		CounterStart:   1,
		CounterPadding: 3,
		CurrentCounter: 1,
		ResetFrequency: "never",
	}
}
