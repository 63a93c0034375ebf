package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/truckore/truckore/internal/auth"
	"github.com/truckore/truckore/internal/config"
	"github.com/truckore/truckore/internal/models"
	"github.com/truckore/truckore/internal/storage"
	"go.uber.org/zap"
)

// UserService owns user accounts: credential verification with the lockout
// state machine, password management, and the sole-super-admin deletion
// guard. Lockout counter mutations are serialized per username so two
// overlapping login attempts cannot race the read-modify-write.
type UserService struct {
	store   *storage.Store
	cfg     *config.Config
	configs *ConfigService
	audit   *AuditService
	logger  *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewUserService creates a new user service
func NewUserService(store *storage.Store, cfg *config.Config, configs *ConfigService, audit *AuditService, logger *zap.Logger) *UserService {
	return &UserService{
		store:   store,
		cfg:     cfg,
		configs: configs,
		audit:   audit,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// InitialSetup performs first-run provisioning: it creates the super admin
// account and marks setup complete. Exactly one super admin exists once
// setup finishes.
func (s *UserService) InitialSetup(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	complete, err := s.configs.IsSetupComplete(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check setup status: %w", err)
	}
	if complete {
		return nil, ErrSetupComplete
	}

	req.Role = models.RoleSuperAdmin
	user, err := s.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.configs.MarkSetupComplete(ctx); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.ActionSetupCompleted, user.ID, "first-run setup completed")
	s.logger.Info("initial setup completed", zap.String("username", user.Username))
	return user, nil
}

// lockFor returns the mutex serializing mutations for one username.
func (s *UserService) lockFor(username string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[username]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[username] = mu
	}
	return mu
}

// CreateUserRequest represents a request to create a user
type CreateUserRequest struct {
	Username string
	Password string
	Role     string
	Email    string
}

// Create creates a new user account. Duplicate usernames are detected at the
// storage layer, not pre-checked, so there is no race window.
func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	if !models.ValidRole(req.Role) {
		return nil, fmt.Errorf("invalid role: %s", req.Role)
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		return nil, fmt.Errorf("weak password: %w", err)
	}

	passwordHash, err := auth.HashPassword(req.Password, s.cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		Role:         req.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var emailValue any
	if req.Email != "" {
		user.Email.String = req.Email
		user.Email.Valid = true
		emailValue = req.Email
	}

	err = s.store.Exec(ctx, storage.Insert{
		Table: "users",
		Columns: []string{
			"id", "username", "email", "password_hash", "role", "is_active",
			"failed_login_attempts", "locked_until", "last_login_at", "created_at", "updated_at",
		},
		Values: []any{
			user.ID, user.Username, emailValue, user.PasswordHash, user.Role, user.IsActive,
			0, nil, nil, user.CreatedAt, user.UpdatedAt,
		},
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.audit.Record(ctx, models.ActionUserCreated, user.ID, fmt.Sprintf("user %q created with role %s", user.Username, user.Role))
	return user, nil
}

// Authenticate verifies credentials and drives the lockout state machine.
// The lockout check runs before password verification so a locked account
// leaks nothing about password correctness.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	mu := s.lockFor(username)
	mu.Lock()
	defer mu.Unlock()

	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.audit.Record(ctx, models.ActionLoginFailed, "", fmt.Sprintf("login attempt for unknown username %q", username))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now().UTC()

	if user.LockedUntil.Valid {
		if user.LockedUntil.Time.After(now) {
			// Locked: refuse without consuming an attempt.
			return nil, &AccountLockedError{Until: user.LockedUntil.Time}
		}
		// Lockout expired: clear it before continuing.
		if err := s.clearLockout(ctx, user); err != nil {
			return nil, err
		}
		user.LockedUntil = sql.NullTime{}
		user.FailedLoginAttempts = 0
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, s.recordFailedAttempt(ctx, user, now)
	}

	err = s.store.Exec(ctx, storage.Update{
		Table: "users",
		Set: []storage.Assignment{
			{Column: "failed_login_attempts", Value: 0},
			{Column: "locked_until", Value: nil},
			{Column: "last_login_at", Value: now},
			{Column: "updated_at", Value: now},
		},
		Filter: storage.Filter{Column: "id", Value: user.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user after login: %w", err)
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil.Valid = false
	user.LastLoginAt.Time = now
	user.LastLoginAt.Valid = true

	s.audit.Record(ctx, models.ActionLoginSuccess, user.ID, fmt.Sprintf("user %q logged in", user.Username))
	return user, nil
}

// recordFailedAttempt increments the counter and locks the account when the
// configured maximum is reached. The caller always receives the generic
// credential error.
func (s *UserService) recordFailedAttempt(ctx context.Context, user *models.User, now time.Time) error {
	attempts := user.FailedLoginAttempts + 1

	set := []storage.Assignment{
		{Column: "failed_login_attempts", Value: attempts},
		{Column: "updated_at", Value: now},
	}

	locked := attempts >= s.cfg.Auth.MaxFailedAttempts
	if locked {
		set = append(set, storage.Assignment{Column: "locked_until", Value: now.Add(s.cfg.Auth.LockoutDuration)})
	}

	err := s.store.Exec(ctx, storage.Update{
		Table:  "users",
		Set:    set,
		Filter: storage.Filter{Column: "id", Value: user.ID},
	})
	if err != nil {
		return fmt.Errorf("failed to record failed login attempt: %w", err)
	}

	if locked {
		s.audit.Record(ctx, models.ActionAccountLocked, user.ID,
			fmt.Sprintf("account %q locked after %d failed attempts", user.Username, attempts))
		s.logger.Warn("account locked",
			zap.String("username", user.Username),
			zap.Int("attempts", attempts),
		)
	} else {
		s.audit.Record(ctx, models.ActionLoginFailed, user.ID,
			fmt.Sprintf("failed login for %q (attempt %d)", user.Username, attempts))
	}

	return ErrInvalidCredentials
}

func (s *UserService) clearLockout(ctx context.Context, user *models.User) error {
	err := s.store.Exec(ctx, storage.Update{
		Table: "users",
		Set: []storage.Assignment{
			{Column: "failed_login_attempts", Value: 0},
			{Column: "locked_until", Value: nil},
			{Column: "updated_at", Value: time.Now().UTC()},
		},
		Filter: storage.Filter{Column: "id", Value: user.ID},
	})
	if err != nil {
		return fmt.Errorf("failed to clear expired lockout: %w", err)
	}
	return nil
}

// Logout records a logout event for the audit trail.
func (s *UserService) Logout(ctx context.Context, userID, username string) {
	s.audit.Record(ctx, models.ActionLogout, userID, fmt.Sprintf("user %q logged out", username))
}

// ChangePassword re-verifies the old password before accepting the new one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := auth.VerifyPassword(oldPassword, user.PasswordHash); err != nil {
		return ErrIncorrectPassword
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	s.audit.Record(ctx, models.ActionPasswordChanged, user.ID, fmt.Sprintf("user %q changed password", user.Username))
	return nil
}

// ResetPassword is the administrative path: no old-password check.
func (s *UserService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	s.audit.Record(ctx, models.ActionPasswordReset, user.ID, fmt.Sprintf("password reset for %q", user.Username))
	return nil
}

func (s *UserService) setPassword(ctx context.Context, user *models.User, newPassword string) error {
	if err := auth.ValidatePasswordStrength(newPassword); err != nil {
		return fmt.Errorf("weak password: %w", err)
	}

	hash, err := auth.HashPassword(newPassword, s.cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.store.Exec(ctx, storage.Update{
		Table: "users",
		Set: []storage.Assignment{
			{Column: "password_hash", Value: hash},
			{Column: "updated_at", Value: time.Now().UTC()},
		},
		Filter: storage.Filter{Column: "id", Value: user.ID},
	})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// UpdateUserRequest carries optional account changes; nil fields are left
// untouched.
type UpdateUserRequest struct {
	Email    *string
	Role     *string
	IsActive *bool
}

// Update applies account changes and records an audit entry.
func (s *UserService) Update(ctx context.Context, userID string, req *UpdateUserRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := []storage.Assignment{
		{Column: "updated_at", Value: time.Now().UTC()},
	}
	if req.Email != nil {
		var v any
		if *req.Email != "" {
			v = *req.Email
		}
		set = append(set, storage.Assignment{Column: "email", Value: v})
	}
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			return nil, fmt.Errorf("invalid role: %s", *req.Role)
		}
		if user.Role == models.RoleSuperAdmin && *req.Role != models.RoleSuperAdmin {
			if sole, err := s.isSoleSuperAdmin(ctx, user); err != nil {
				return nil, err
			} else if sole {
				return nil, ErrProtectedAccount
			}
		}
		set = append(set, storage.Assignment{Column: "role", Value: *req.Role})
	}
	if req.IsActive != nil {
		set = append(set, storage.Assignment{Column: "is_active", Value: *req.IsActive})
	}

	err = s.store.Exec(ctx, storage.Update{
		Table:  "users",
		Set:    set,
		Filter: storage.Filter{Column: "id", Value: userID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.audit.Record(ctx, models.ActionUserUpdated, userID, fmt.Sprintf("user %q updated", user.Username))
	return s.GetByID(ctx, userID)
}

// Delete removes a user account. The last super admin is
// deletion-protected.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Role == models.RoleSuperAdmin {
		sole, err := s.isSoleSuperAdmin(ctx, user)
		if err != nil {
			return err
		}
		if sole {
			return ErrProtectedAccount
		}
	}

	err = s.store.Exec(ctx, storage.Delete{
		Table:  "users",
		Filter: storage.Filter{Column: "id", Value: userID},
	})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.audit.Record(ctx, models.ActionUserDeleted, userID, fmt.Sprintf("user %q deleted", user.Username))
	return nil
}

func (s *UserService) isSoleSuperAdmin(ctx context.Context, user *models.User) (bool, error) {
	admins, err := s.store.Query(ctx, storage.Select{
		Table:  "users",
		Filter: &storage.Filter{Column: "role", Value: models.RoleSuperAdmin},
	})
	if err != nil {
		return false, fmt.Errorf("failed to count super admins: %w", err)
	}

	for _, row := range admins {
		if row.String("id") != user.ID {
			return false, nil
		}
	}
	return true, nil
}

// GetByUsername retrieves a user by username (case-sensitive).
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	rows, err := s.store.Query(ctx, storage.Select{
		Table:  "users",
		Filter: &storage.Filter{Column: "username", Value: username},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrUserNotFound
	}
	user := decodeUser(rows[0])
	return &user, nil
}

// GetByID retrieves a user by id.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	rows, err := s.store.Query(ctx, storage.Select{
		Table:  "users",
		Filter: &storage.Filter{Column: "id", Value: userID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrUserNotFound
	}
	user := decodeUser(rows[0])
	return &user, nil
}

// List returns all user accounts.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.store.Query(ctx, storage.Select{Table: "users"})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, decodeUser(row))
	}
	return users, nil
}

// HasAnyUsers reports whether any account exists; the setup flow uses it to
// decide whether first-run provisioning is required.
func (s *UserService) HasAnyUsers(ctx context.Context) (bool, error) {
	rows, err := s.store.Query(ctx, storage.Select{Table: "users"})
	if err != nil {
		return false, fmt.Errorf("failed to check for users: %w", err)
	}
	return len(rows) > 0, nil
}

func decodeUser(row storage.Row) models.User {
	user := models.User{
		ID:                  row.String("id"),
		Username:            row.String("username"),
		Email:               row.NullString("email"),
		PasswordHash:        row.String("password_hash"),
		Role:                row.String("role"),
		IsActive:            row.Bool("is_active"),
		FailedLoginAttempts: row.Int("failed_login_attempts"),
		LockedUntil:         row.NullTime("locked_until"),
		LastLoginAt:         row.NullTime("last_login_at"),
	}
	if t, ok := row.Time("created_at"); ok {
		user.CreatedAt = t
	}
	if t, ok := row.Time("updated_at"); ok {
		user.UpdatedAt = t
	}
	return user
}
