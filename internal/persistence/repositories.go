package persistence

import (
	"context"
	"time"
)

// LessonRepository exposes CRUD operations for lessons.
type LessonRepository interface {
	CreateLesson(ctx context.Context, lesson Lesson) error
	UpdateLesson(ctx context.Context, lesson Lesson) error
	GetLesson(ctx context.Context, id string) (Lesson, error)
	ListLessons(ctx context.Context) ([]Lesson, error)
	DeleteLesson(ctx context.Context, id string) error
	CountLessons(ctx context.Context) (int, error)
}

// BookingTx is the view of the store available while a booking lock is held.
// Every call made through it observes and mutates the same atomic unit.
type BookingTx interface {
	GetLesson(ctx context.Context, id string) (Lesson, error)
	CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error)
	ExistsConfirmedForEmail(ctx context.Context, lessonID, lessonDate, email string) (bool, error)
	InsertReservation(ctx context.Context, reservation Reservation) error
}

// ReservationRepository stores reservations and serializes admissions per lesson occurrence.
type ReservationRepository interface {
	// WithBookingLock runs fn while holding exclusive booking rights for
	// (lessonID, lessonDate). Writes made through the BookingTx are committed
	// only when fn returns nil.
	WithBookingLock(ctx context.Context, lessonID, lessonDate string, fn func(tx BookingTx) error) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error)
	CountConfirmedBetween(ctx context.Context, fromDate, toDate string) (int, error)
	CountAllForLesson(ctx context.Context, lessonID string) (int, error)
	PopularLessons(ctx context.Context, limit int) ([]LessonCount, error)
	RecentConfirmed(ctx context.Context, limit int) ([]RecentReservation, error)
	CancelReservation(ctx context.Context, lessonID, lessonDate, email string, cancelledAt time.Time) (Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
}

// OfferingRepository exposes CRUD and ordering operations for service offerings.
type OfferingRepository interface {
	CreateOffering(ctx context.Context, offering Offering) error
	UpdateOffering(ctx context.Context, offering Offering) error
	GetOffering(ctx context.Context, id string) (Offering, error)
	ListOfferings(ctx context.Context, includeInactive bool) ([]Offering, error)
	DeleteOffering(ctx context.Context, id string) error
	NextDisplayOrder(ctx context.Context, category string) (int, error)
	ReorderOfferings(ctx context.Context, category string, ids []string, updatedAt time.Time) error
	CountActiveOfferings(ctx context.Context) (int, error)
}

// AdminRepository stores back-office accounts and their login bookkeeping.
type AdminRepository interface {
	CreateAdmin(ctx context.Context, admin AdminUser) error
	GetAdmin(ctx context.Context, id string) (AdminUser, error)
	GetAdminByUsername(ctx context.Context, username string) (AdminUser, error)
	RecordLoginFailure(ctx context.Context, id string, at time.Time) error
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// Store aggregates every repository a storage backend provides.
type Store interface {
	LessonRepository
	ReservationRepository
	OfferingRepository
	AdminRepository
	SessionRepository
	Ping(ctx context.Context) error
	Close() error
}
