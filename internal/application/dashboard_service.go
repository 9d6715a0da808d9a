package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/gym-reservations/internal/recurrence"
)

// DashboardStore exposes the aggregate counts shown on the admin dashboard.
type DashboardStore interface {
	CountLessons(ctx context.Context) (int, error)
	CountConfirmedBetween(ctx context.Context, fromDate, toDate string) (int, error)
	CountActiveOfferings(ctx context.Context) (int, error)
	RecentConfirmed(ctx context.Context, limit int) ([]RecentReservation, error)
}

const recentReservationLimit = 10

// DashboardService assembles the admin landing page figures.
type DashboardService struct {
	store  DashboardStore
	engine *recurrence.Engine
	now    func() time.Time
	logger *slog.Logger
}

// NewDashboardService constructs a dashboard service with the provided dependencies.
func NewDashboardService(store DashboardStore, engine *recurrence.Engine, now func() time.Time) *DashboardService {
	return NewDashboardServiceWithLogger(store, engine, now, nil)
}

// NewDashboardServiceWithLogger constructs a dashboard service with a specified logger.
func NewDashboardServiceWithLogger(store DashboardStore, engine *recurrence.Engine, now func() time.Time, logger *slog.Logger) *DashboardService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if now == nil {
		now = time.Now
	}
	return &DashboardService{store: store, engine: engine, now: now, logger: defaultLogger(logger)}
}

// Dashboard returns lesson, reservation and offering totals plus the latest confirmed reservations.
func (s *DashboardService) Dashboard(ctx context.Context, principal Principal) (dashboard Dashboard, err error) {
	if s == nil {
		err = fmt.Errorf("DashboardService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "DashboardService", "Dashboard", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build dashboard", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.store == nil {
		err = fmt.Errorf("dashboard store not configured")
		return
	}

	first, last := monthBounds(s.now(), s.engine)

	if dashboard.TotalLessons, err = s.store.CountLessons(ctx); err != nil {
		err = mapStoreError(err)
		return
	}
	if dashboard.ReservationsThisMonth, err = s.store.CountConfirmedBetween(ctx, first, last); err != nil {
		err = mapStoreError(err)
		return
	}
	if dashboard.TotalOfferings, err = s.store.CountActiveOfferings(ctx); err != nil {
		err = mapStoreError(err)
		return
	}
	if dashboard.RecentReservations, err = s.store.RecentConfirmed(ctx, recentReservationLimit); err != nil {
		err = mapStoreError(err)
		return
	}
	return
}
