package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/gym-reservations/internal/logging"
)

// Storage backends accepted by GYM_STORAGE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config captures environment driven configuration values for the gym API.
type Config struct {
	HTTPPort       int
	StorageBackend string
	SQLiteDSN      string
	DatabaseURL    string

	SessionTTL           time.Duration
	SessionRefreshWindow time.Duration
	LoginMaxAttempts     int
	LoginLockout         time.Duration
	SessionPruneInterval time.Duration

	CORSAllowedOrigins []string
	LogLevel           slog.Level

	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

// Load parses configuration values from the current process environment.
//
// Optional values fall back to defaults. Missing and invalid names are
// collected and reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:             8080,
		StorageBackend:       BackendSQLite,
		SQLiteDSN:            "gym.db",
		SessionTTL:           24 * time.Hour,
		SessionRefreshWindow: 2 * time.Hour,
		LoginMaxAttempts:     5,
		LoginLockout:         15 * time.Minute,
		SessionPruneInterval: time.Hour,
		CORSAllowedOrigins:   []string{"*"},
		LogLevel:             slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("GYM_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "GYM_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if backend := strings.ToLower(env("GYM_STORAGE_BACKEND")); backend != "" {
		switch backend {
		case BackendSQLite, BackendPostgres, BackendMemory:
			cfg.StorageBackend = backend
		default:
			invalid = append(invalid, "GYM_STORAGE_BACKEND")
		}
	}

	if dsn := env("GYM_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.DatabaseURL = env("GYM_DATABASE_URL")
	if cfg.StorageBackend == BackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "GYM_DATABASE_URL")
	}

	durations := []struct {
		name   string
		target *time.Duration
	}{
		{"GYM_SESSION_TTL", &cfg.SessionTTL},
		{"GYM_SESSION_REFRESH_WINDOW", &cfg.SessionRefreshWindow},
		{"GYM_LOGIN_LOCKOUT", &cfg.LoginLockout},
		{"GYM_SESSION_PRUNE_INTERVAL", &cfg.SessionPruneInterval},
	}
	for _, d := range durations {
		value := env(d.name)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			invalid = append(invalid, d.name)
			continue
		}
		*d.target = parsed
	}

	if attemptsValue := env("GYM_LOGIN_MAX_ATTEMPTS"); attemptsValue != "" {
		attempts, err := strconv.Atoi(attemptsValue)
		if err != nil || attempts <= 0 {
			invalid = append(invalid, "GYM_LOGIN_MAX_ATTEMPTS")
		} else {
			cfg.LoginMaxAttempts = attempts
		}
	}

	if originsValue := env("GYM_CORS_ALLOWED_ORIGINS"); originsValue != "" {
		origins := splitList(originsValue)
		if len(origins) == 0 {
			invalid = append(invalid, "GYM_CORS_ALLOWED_ORIGINS")
		} else {
			cfg.CORSAllowedOrigins = origins
		}
	}

	if levelValue := env("GYM_LOG_LEVEL"); levelValue != "" {
		level, err := logging.ParseLevel(levelValue)
		if err != nil {
			invalid = append(invalid, "GYM_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	cfg.AdminUsername = env("GYM_ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("GYM_ADMIN_PASSWORD")
	cfg.AdminEmail = env("GYM_ADMIN_EMAIL")
	if cfg.AdminUsername != "" && cfg.AdminPassword == "" {
		missing = append(missing, "GYM_ADMIN_PASSWORD")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// BootstrapAdmin reports whether a bootstrap admin account is configured.
func (c Config) BootstrapAdmin() bool {
	return c.AdminUsername != ""
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
