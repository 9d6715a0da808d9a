package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

var allVariables = []string{
	"GYM_HTTP_PORT",
	"GYM_STORAGE_BACKEND",
	"GYM_SQLITE_DSN",
	"GYM_DATABASE_URL",
	"GYM_SESSION_TTL",
	"GYM_SESSION_REFRESH_WINDOW",
	"GYM_LOGIN_MAX_ATTEMPTS",
	"GYM_LOGIN_LOCKOUT",
	"GYM_SESSION_PRUNE_INTERVAL",
	"GYM_CORS_ALLOWED_ORIGINS",
	"GYM_LOG_LEVEL",
	"GYM_ADMIN_USERNAME",
	"GYM_ADMIN_PASSWORD",
	"GYM_ADMIN_EMAIL",
}

// clearEnv blanks every variable for the duration of the test. Load treats
// empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allVariables {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.StorageBackend != BackendSQLite || cfg.SQLiteDSN != "gym.db" {
			t.Fatalf("unexpected storage defaults: %q %q", cfg.StorageBackend, cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 24*time.Hour || cfg.SessionRefreshWindow != 2*time.Hour {
			t.Fatalf("unexpected session defaults: %v %v", cfg.SessionTTL, cfg.SessionRefreshWindow)
		}
		if cfg.LoginMaxAttempts != 5 || cfg.LoginLockout != 15*time.Minute {
			t.Fatalf("unexpected lockout defaults: %d %v", cfg.LoginMaxAttempts, cfg.LoginLockout)
		}
		if cfg.SessionPruneInterval != time.Hour {
			t.Fatalf("unexpected prune interval: %v", cfg.SessionPruneInterval)
		}
		if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
			t.Fatalf("unexpected CORS default: %v", cfg.CORSAllowedOrigins)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("unexpected log level: %v", cfg.LogLevel)
		}
		if cfg.BootstrapAdmin() {
			t.Fatalf("expected no bootstrap admin by default")
		}
	})

	t.Run("reads explicit values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GYM_HTTP_PORT", "9090")
		t.Setenv("GYM_STORAGE_BACKEND", "Postgres")
		t.Setenv("GYM_DATABASE_URL", "postgres://gym@localhost/gym")
		t.Setenv("GYM_SESSION_TTL", "12h")
		t.Setenv("GYM_LOGIN_MAX_ATTEMPTS", "3")
		t.Setenv("GYM_CORS_ALLOWED_ORIGINS", "https://gym.example, https://admin.gym.example ,")
		t.Setenv("GYM_LOG_LEVEL", "debug")
		t.Setenv("GYM_ADMIN_USERNAME", "owner")
		t.Setenv("GYM_ADMIN_PASSWORD", "s3cret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.StorageBackend != BackendPostgres {
			t.Fatalf("unexpected values: %+v", cfg)
		}
		if cfg.SessionTTL != 12*time.Hour || cfg.LoginMaxAttempts != 3 {
			t.Fatalf("unexpected session values: %v %d", cfg.SessionTTL, cfg.LoginMaxAttempts)
		}
		if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.gym.example" {
			t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("expected debug level, got %v", cfg.LogLevel)
		}
		if !cfg.BootstrapAdmin() || cfg.AdminPassword != "s3cret" {
			t.Fatalf("expected bootstrap admin configured")
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GYM_STORAGE_BACKEND", "postgres")
		t.Setenv("GYM_ADMIN_USERNAME", "owner")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required environment variables: GYM_DATABASE_URL, GYM_ADMIN_PASSWORD"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("collects invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GYM_HTTP_PORT", "http")
		t.Setenv("GYM_STORAGE_BACKEND", "mongo")
		t.Setenv("GYM_SESSION_TTL", "-1h")
		t.Setenv("GYM_LOG_LEVEL", "loud")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, name := range []string{"GYM_HTTP_PORT", "GYM_STORAGE_BACKEND", "GYM_SESSION_TTL", "GYM_LOG_LEVEL"} {
			if !strings.Contains(err.Error(), name) {
				t.Fatalf("expected %s in error, got %q", name, err.Error())
			}
		}
	})
}
