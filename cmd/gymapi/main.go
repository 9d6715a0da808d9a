package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/example/gym-reservations/internal/application"
	"github.com/example/gym-reservations/internal/config"
	httptransport "github.com/example/gym-reservations/internal/http"
	"github.com/example/gym-reservations/internal/logging"
	"github.com/example/gym-reservations/internal/persistence"
	"github.com/example/gym-reservations/internal/persistence/memory"
	"github.com/example/gym-reservations/internal/persistence/postgres"
	"github.com/example/gym-reservations/internal/persistence/sqlite"
	"github.com/example/gym-reservations/internal/recurrence"
)

func main() {
	bootLogger := logging.New(os.Stdout, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gym API stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	app := newApp(store, cfg, time.Now, logger)

	if cfg.BootstrapAdmin() {
		if _, err := app.auth.EnsureAdmin(ctx, application.EnsureAdminParams{
			Username: cfg.AdminUsername,
			Password: cfg.AdminPassword,
			Email:    cfg.AdminEmail,
		}); err != nil {
			return fmt.Errorf("ensure bootstrap admin: %w", err)
		}
	}

	pruner, err := startSessionPruner(ctx, app.auth, cfg.SessionPruneInterval, logger)
	if err != nil {
		return err
	}
	defer func() {
		if serr := pruner.Shutdown(); serr != nil {
			logger.Error("failed to stop session pruner", "error", serr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("gym API listening", "addr", server.Addr, "storage", cfg.StorageBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// openStore opens and migrates the configured storage backend.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), nil
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL), logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return store, nil
	default:
		storage, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return storage, nil
	}
}

// components holds the wired services main needs after startup.
type components struct {
	auth    *application.AuthService
	handler http.Handler
}

// newApp wires services and HTTP handlers on top of store.
func newApp(store persistence.Store, cfg config.Config, now func() time.Time, logger *slog.Logger) *components {
	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	engine := recurrence.NewEngine(time.UTC)

	lessonRepo := newLessonRepositoryAdapter(store)
	reservationStore := newReservationStoreAdapter(store)
	offeringRepo := newOfferingRepositoryAdapter(store)
	dashboardStore := newDashboardStoreAdapter(store)
	adminStore := newAdminStoreAdapter(store)
	sessionRepo := newSessionRepositoryAdapter(store)

	policy := application.SessionPolicy{
		TTL:               cfg.SessionTTL,
		RefreshWindow:     cfg.SessionRefreshWindow,
		MaxFailedAttempts: cfg.LoginMaxAttempts,
		LockoutDuration:   cfg.LoginLockout,
	}

	authService := application.NewAuthServiceWithLogger(adminStore, sessionRepo, application.VerifyPassword, idGenerator, tokenGenerator, now, policy, logger)
	lessonService := application.NewLessonServiceWithLogger(lessonRepo, reservationStore, engine, idGenerator, now, logger)
	reservationService := application.NewReservationServiceWithLogger(reservationStore, lessonRepo, engine, idGenerator, now, logger)
	lessonService.OnLessonChanged(reservationService.InvalidateStats)
	offeringService := application.NewOfferingServiceWithLogger(offeringRepo, idGenerator, now, logger)
	dashboardService := application.NewDashboardServiceWithLogger(dashboardStore, engine, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, logger),
		Lessons:        httptransport.NewLessonHandler(lessonService, reservationService, logger),
		Reservations:   httptransport.NewReservationHandler(reservationService, logger),
		Offerings:      httptransport.NewOfferingHandler(offeringService, logger),
		Dashboard:      httptransport.NewDashboardHandler(dashboardService, logger),
		Health:         httptransport.NewHealthHandler(store, logger),
		Sessions:       authService,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	return &components{auth: authService, handler: router}
}

type sessionPruner interface {
	PruneExpiredSessions(ctx context.Context) (int64, error)
}

// startSessionPruner schedules PruneExpiredSessions every interval until ctx
// is cancelled or the returned scheduler is shut down.
func startSessionPruner(ctx context.Context, auth sessionPruner, interval time.Duration, logger *slog.Logger) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := auth.PruneExpiredSessions(ctx); err != nil {
				logger.Warn("session pruning failed", "error", err)
			}
		}),
		gocron.WithName("prune-expired-sessions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("schedule session pruning: %w", err)
	}

	scheduler.Start()
	return scheduler, nil
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(buf)
}
