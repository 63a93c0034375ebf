// Package service implements the domain operations of the Truckore identity
// core on top of the storage layer: user accounts with brute-force lockout,
// the security audit trail, application configuration, and document serial
// numbering.
package service

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors surfaced verbatim to the calling UI layer.
var (
	// ErrInvalidCredentials is deliberately generic: unknown username and
	// wrong password are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrAccountInactive   = errors.New("account is inactive, contact an administrator")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrIncorrectPassword = errors.New("current password is incorrect")
	ErrProtectedAccount  = errors.New("the last super admin account cannot be deleted")
	ErrUserNotFound      = errors.New("user not found")
	ErrSetupComplete     = errors.New("setup already complete")
)

// AccountLockedError reports a refused authentication with the remaining
// lockout duration, so the console can show an actionable message.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RemainingMinutes())
}

// RemainingMinutes returns the lockout time left, rounded up.
func (e *AccountLockedError) RemainingMinutes() int {
	remaining := time.Until(e.Until)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Minute - 1) / time.Minute)
}
