package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/example/gym-reservations/internal/persistence"
)

const sessionColumns = `id, admin_id, token, expires_at, revoked_at, created_at, updated_at`

// CreateSession stores a new session token for an admin.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.AdminID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	return s.scanSession(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+sessionColumns,
		session.ID, session.AdminID, session.Token, utc(session.ExpiresAt),
		utcPtr(session.RevokedAt), utc(session.CreatedAt), utc(session.UpdatedAt),
	)
}

// GetSession retrieves a session by its token value.
func (s *Store) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return s.scanSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token)
}

// UpdateSession updates the expiry of the session identified by its token.
func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	token := strings.TrimSpace(session.Token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return s.scanSession(ctx, `
		UPDATE sessions
		SET expires_at = $1, revoked_at = $2, updated_at = $3
		WHERE token = $4
		RETURNING `+sessionColumns,
		utc(session.ExpiresAt), utcPtr(session.RevokedAt), utc(session.UpdatedAt), token,
	)
}

// RevokeSession marks a session as revoked based on its token value.
func (s *Store) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return s.scanSession(ctx, `
		UPDATE sessions
		SET revoked_at = $1, updated_at = $1
		WHERE token = $2
		RETURNING `+sessionColumns,
		utc(revokedAt), token,
	)
}

// DeleteExpiredSessions removes sessions that expired on or before reference.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, utc(reference))
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) scanSession(ctx context.Context, query string, args ...any) (persistence.Session, error) {
	var session persistence.Session
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&session.ID,
		&session.AdminID,
		&session.Token,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if notFound(err) {
		return persistence.Session{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Session{}, mapError(err)
	}

	session.ExpiresAt = utc(session.ExpiresAt)
	session.RevokedAt = utcPtr(session.RevokedAt)
	session.CreatedAt = utc(session.CreatedAt)
	session.UpdatedAt = utc(session.UpdatedAt)
	return session, nil
}
