package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/gym-reservations/internal/persistence"
)

// AdminStore exposes the admin account operations required by the auth service.
type AdminStore interface {
	CreateAdmin(ctx context.Context, admin AdminUser) (AdminUser, error)
	GetAdmin(ctx context.Context, id string) (AdminUser, error)
	GetAdminByUsername(ctx context.Context, username string) (AdminUser, error)
	RecordLoginFailure(ctx context.Context, id string, at time.Time) error
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// SessionPolicy bounds session lifetimes and login lockout.
type SessionPolicy struct {
	TTL               time.Duration
	RefreshWindow     time.Duration
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// DefaultSessionPolicy returns 24h sessions refreshed within their last 2h,
// and a 15 minute lockout after 5 failed logins.
func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		TTL:               24 * time.Hour,
		RefreshWindow:     2 * time.Hour,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
	}
}

func (p SessionPolicy) withDefaults() SessionPolicy {
	def := DefaultSessionPolicy()
	if p.TTL <= 0 {
		p.TTL = def.TTL
	}
	if p.RefreshWindow <= 0 {
		p.RefreshWindow = def.RefreshWindow
	}
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = def.LockoutDuration
	}
	return p
}

// AuthService coordinates admin login, session validation and logout.
type AuthService struct {
	admins         AdminStore
	sessions       SessionRepository
	verifyPassword PasswordVerifier
	hashPassword   func(password string) (string, error)
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	policy         SessionPolicy
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(admins AdminStore, sessions SessionRepository, verify PasswordVerifier, idGenerator, tokenGenerator func() string, now func() time.Time, policy SessionPolicy) *AuthService {
	return NewAuthServiceWithLogger(admins, sessions, verify, idGenerator, tokenGenerator, now, policy, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(admins AdminStore, sessions SessionRepository, verify PasswordVerifier, idGenerator, tokenGenerator func() string, now func() time.Time, policy SessionPolicy, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		admins:         admins,
		sessions:       sessions,
		verifyPassword: verify,
		hashPassword:   HashPassword,
		idGenerator:    idGenerator,
		tokenGenerator: tokenGenerator,
		now:            now,
		policy:         policy.withDefaults(),
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a new session token.
// A locked account is rejected before its password is checked.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.admins == nil || s.sessions == nil {
		err = fmt.Errorf("auth stores not configured")
		return
	}

	username := strings.TrimSpace(params.Username)
	logger := s.loggerWith(ctx, "Authenticate", "username", username)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"admin_id", result.Admin.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if username == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var admin AdminUser
	admin, err = s.admins.GetAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
			return
		}
		err = mapStoreError(err)
		return
	}
	if !admin.IsActive {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	if s.locked(admin, now) {
		err = ErrAccountLocked
		return
	}

	if verifyErr := s.verifyPassword(admin.PasswordHash, params.Password); verifyErr != nil {
		if !errors.Is(verifyErr, ErrInvalidCredentials) {
			logger.ErrorContext(ctx, "stored password hash rejected", "error", verifyErr, "admin_id", admin.ID)
		}
		if err = s.admins.RecordLoginFailure(ctx, admin.ID, now); err != nil {
			err = mapStoreError(err)
			return
		}
		err = ErrInvalidCredentials
		return
	}

	if err = s.admins.RecordLoginSuccess(ctx, admin.ID, now); err != nil {
		err = mapStoreError(err)
		return
	}
	if _, err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		err = mapStoreError(err)
		return
	}

	session := Session{
		ID:        s.idGenerator(),
		AdminID:   admin.ID,
		Token:     s.tokenGenerator(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.policy.TTL),
	}
	if session.Token == "" {
		err = fmt.Errorf("token generator produced an empty token")
		return
	}

	session, err = s.sessions.CreateSession(ctx, session)
	if err != nil {
		err = mapStoreError(err)
		return
	}

	admin.FailedLoginAttempts = 0
	admin.LastLogin = &now
	result = AuthenticateResult{Admin: admin, Session: session}
	return
}

func (s *AuthService) locked(admin AdminUser, now time.Time) bool {
	if admin.FailedLoginAttempts < s.policy.MaxFailedAttempts || admin.LastFailedLogin == nil {
		return false
	}
	return now.Sub(*admin.LastFailedLogin) < s.policy.LockoutDuration
}

// ValidateSession verifies that the token belongs to a live session of an
// active admin and returns its principal. Sessions close to expiry are extended.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.admins == nil || s.sessions == nil {
		err = fmt.Errorf("auth stores not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrUnauthorized
		return
	}

	var session Session
	session, err = s.sessions.GetSession(ctx, trimmed)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
			return
		}
		err = mapStoreError(err)
		return
	}

	now := s.now()
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = fmt.Errorf("%w: session revoked", ErrUnauthorized)
		return
	}
	if !session.ExpiresAt.After(now) {
		err = fmt.Errorf("%w: session expired", ErrUnauthorized)
		return
	}

	var admin AdminUser
	admin, err = s.admins.GetAdmin(ctx, session.AdminID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
			return
		}
		err = mapStoreError(err)
		return
	}
	if !admin.IsActive {
		err = fmt.Errorf("%w: account inactive", ErrUnauthorized)
		return
	}

	if session.ExpiresAt.Sub(now) < s.policy.RefreshWindow {
		session.ExpiresAt = now.Add(s.policy.TTL)
		session.UpdatedAt = now
		session, err = s.sessions.UpdateSession(ctx, session)
		if err != nil {
			err = mapStoreError(err)
			return
		}
		logger.InfoContext(ctx, "session extended", "session_id", session.ID)
	}

	principal = Principal{
		UserID:    admin.ID,
		Username:  admin.Username,
		IsAdmin:   true,
		ExpiresAt: session.ExpiresAt,
	}
	return
}

// RevokeSession invalidates an existing session token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "RevokeSession", "token_provided", true)

	if _, err := s.sessions.RevokeSession(ctx, trimmed, s.now()); err != nil {
		if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound) {
			logger.WarnContext(ctx, "failed to revoke session", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
			return ErrUnauthorized
		}
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "session revoked")
	return nil
}

// PruneExpiredSessions deletes every session that expired by now.
func (s *AuthService) PruneExpiredSessions(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return 0, fmt.Errorf("session repository not configured")
	}

	logger := s.loggerWith(ctx, "PruneExpiredSessions")
	removed, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to prune expired sessions", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	logger.InfoContext(ctx, "expired sessions pruned", "removed", removed)
	return removed, nil
}

// EnsureAdmin creates the bootstrap admin unless an account with the username exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, params EnsureAdminParams) (created bool, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.admins == nil {
		err = fmt.Errorf("admin store not configured")
		return
	}

	username := strings.TrimSpace(params.Username)
	logger := s.loggerWith(ctx, "EnsureAdmin", "username", username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to ensure admin", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "admin ensured", "created", created)
	}()

	vErr := &ValidationError{}
	if username == "" {
		vErr.add("username", "username is required")
	}
	if params.Password == "" {
		vErr.add("password", "password is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	_, err = s.admins.GetAdminByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) && !errors.Is(err, ErrNotFound) {
		err = mapStoreError(err)
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		err = fmt.Errorf("hash bootstrap password: %w", err)
		return
	}

	now := s.now()
	_, err = s.admins.CreateAdmin(ctx, AdminUser{
		ID:           s.idGenerator(),
		Username:     username,
		Email:        strings.TrimSpace(params.Email),
		PasswordHash: hash,
		Role:         "admin",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, persistence.ErrDuplicate) {
		// Another instance seeded the same account first.
		return false, nil
	}
	if err != nil {
		err = mapStoreError(err)
		return
	}
	return true, nil
}
