package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/gym-reservations/internal/persistence"
)

// AdminRepository implements persistence.AdminRepository using SQLite
type AdminRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAdminRepository creates a new SQLite admin repository
func NewAdminRepository(pool *ConnectionPool) *AdminRepository {
	return &AdminRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const adminColumns = `id, username, email, password_hash, role, is_active, failed_login_attempts, last_failed_login, last_login, created_at, updated_at`

// CreateAdmin inserts a new admin account. Usernames are unique case-insensitively.
func (r *AdminRepository) CreateAdmin(ctx context.Context, admin persistence.AdminUser) error {
	if admin.ID == "" || strings.TrimSpace(admin.Username) == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO admin_users (`+adminColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		admin.ID,
		strings.TrimSpace(admin.Username),
		admin.Email,
		admin.PasswordHash,
		admin.Role,
		boolToInt(admin.IsActive),
		admin.FailedLoginAttempts,
		formatTimePtr(admin.LastFailedLogin),
		formatTimePtr(admin.LastLogin),
		formatTime(admin.CreatedAt),
		formatTime(admin.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetAdmin retrieves an admin by ID
func (r *AdminRepository) GetAdmin(ctx context.Context, id string) (persistence.AdminUser, error) {
	return r.getAdmin(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE id = ?`, id)
}

// GetAdminByUsername retrieves an admin by username
func (r *AdminRepository) GetAdminByUsername(ctx context.Context, username string) (persistence.AdminUser, error) {
	return r.getAdmin(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE username = ? COLLATE NOCASE`, strings.TrimSpace(username))
}

// RecordLoginFailure increments the failure counter and stamps the failure time
func (r *AdminRepository) RecordLoginFailure(ctx context.Context, id string, at time.Time) error {
	return r.helper.ExecAffected(ctx, r.pool.DB(), `
		UPDATE admin_users
		SET failed_login_attempts = failed_login_attempts + 1, last_failed_login = ?, updated_at = ?
		WHERE id = ?
	`, formatTime(at), formatTime(at), id)
}

// RecordLoginSuccess resets the failure counter and stamps the login time
func (r *AdminRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return r.helper.ExecAffected(ctx, r.pool.DB(), `
		UPDATE admin_users
		SET failed_login_attempts = 0, last_login = ?, updated_at = ?
		WHERE id = ?
	`, formatTime(at), formatTime(at), id)
}

func (r *AdminRepository) getAdmin(ctx context.Context, query string, arg string) (persistence.AdminUser, error) {
	if arg == "" {
		return persistence.AdminUser{}, persistence.ErrNotFound
	}

	var (
		admin                      persistence.AdminUser
		isActive                   int
		lastFailed, lastLogin      sql.NullString
		createdAtStr, updatedAtStr string
	)
	err := r.helper.QueryRow(ctx, query, arg).Scan(
		&admin.ID,
		&admin.Username,
		&admin.Email,
		&admin.PasswordHash,
		&admin.Role,
		&isActive,
		&admin.FailedLoginAttempts,
		&lastFailed,
		&lastLogin,
		&createdAtStr,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.AdminUser{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.AdminUser{}, r.mapper.MapError(err)
	}

	admin.IsActive = isActive != 0
	if admin.LastFailedLogin, err = parseTimePtr(lastFailed); err != nil {
		return persistence.AdminUser{}, fmt.Errorf("failed to parse last_failed_login: %w", err)
	}
	if admin.LastLogin, err = parseTimePtr(lastLogin); err != nil {
		return persistence.AdminUser{}, fmt.Errorf("failed to parse last_login: %w", err)
	}
	if admin.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.AdminUser{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if admin.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.AdminUser{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return admin, nil
}
