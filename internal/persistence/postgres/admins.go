package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/example/gym-reservations/internal/persistence"
)

const adminColumns = `id, username, email, password_hash, role, is_active, failed_login_attempts, last_failed_login, last_login, created_at, updated_at`

// CreateAdmin inserts a new admin account. Usernames are unique case-insensitively.
func (s *Store) CreateAdmin(ctx context.Context, admin persistence.AdminUser) error {
	if admin.ID == "" || strings.TrimSpace(admin.Username) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_users (`+adminColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		admin.ID, strings.TrimSpace(admin.Username), admin.Email, admin.PasswordHash, admin.Role,
		admin.IsActive, admin.FailedLoginAttempts, utcPtr(admin.LastFailedLogin), utcPtr(admin.LastLogin),
		utc(admin.CreatedAt), utc(admin.UpdatedAt),
	)
	return mapError(err)
}

// GetAdmin retrieves an admin by ID.
func (s *Store) GetAdmin(ctx context.Context, id string) (persistence.AdminUser, error) {
	return s.getAdmin(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE id = $1`, id)
}

// GetAdminByUsername retrieves an admin by username, ignoring case.
func (s *Store) GetAdminByUsername(ctx context.Context, username string) (persistence.AdminUser, error) {
	return s.getAdmin(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE lower(username) = lower($1)`, strings.TrimSpace(username))
}

// RecordLoginFailure increments the failure counter and stamps the failure time.
func (s *Store) RecordLoginFailure(ctx context.Context, id string, at time.Time) error {
	return execAffected(ctx, s.pool, `
		UPDATE admin_users
		SET failed_login_attempts = failed_login_attempts + 1, last_failed_login = $1, updated_at = $1
		WHERE id = $2
	`, utc(at), id)
}

// RecordLoginSuccess resets the failure counter and stamps the login time.
func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return execAffected(ctx, s.pool, `
		UPDATE admin_users
		SET failed_login_attempts = 0, last_login = $1, updated_at = $1
		WHERE id = $2
	`, utc(at), id)
}

func (s *Store) getAdmin(ctx context.Context, query, arg string) (persistence.AdminUser, error) {
	if arg == "" {
		return persistence.AdminUser{}, persistence.ErrNotFound
	}

	var admin persistence.AdminUser
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&admin.ID,
		&admin.Username,
		&admin.Email,
		&admin.PasswordHash,
		&admin.Role,
		&admin.IsActive,
		&admin.FailedLoginAttempts,
		&admin.LastFailedLogin,
		&admin.LastLogin,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if notFound(err) {
		return persistence.AdminUser{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.AdminUser{}, mapError(err)
	}

	admin.LastFailedLogin = utcPtr(admin.LastFailedLogin)
	admin.LastLogin = utcPtr(admin.LastLogin)
	admin.CreatedAt = utc(admin.CreatedAt)
	admin.UpdatedAt = utc(admin.UpdatedAt)
	return admin, nil
}
