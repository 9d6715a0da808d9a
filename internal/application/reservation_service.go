package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/gym-reservations/internal/persistence"
	"github.com/example/gym-reservations/internal/recurrence"
)

// AdmissionTx is the view of storage available while an admission holds the
// lock for one lesson occurrence.
type AdmissionTx interface {
	LessonCatalog
	CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error)
	ExistsConfirmedForEmail(ctx context.Context, lessonID, lessonDate, email string) (bool, error)
	InsertReservation(ctx context.Context, reservation Reservation) (Reservation, error)
}

// ReservationStore captures the persistence operations needed by the reservation service.
type ReservationStore interface {
	ReservationCounter
	// WithAdmission runs fn atomically for (lessonID, lessonDate). Writes made
	// through the AdmissionTx persist only when fn returns nil.
	WithAdmission(ctx context.Context, lessonID, lessonDate string, fn func(tx AdmissionTx) error) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	CountConfirmedBetween(ctx context.Context, fromDate, toDate string) (int, error)
	PopularLessons(ctx context.Context, limit int) ([]LessonCount, error)
	RecentConfirmed(ctx context.Context, limit int) ([]RecentReservation, error)
	CancelReservation(ctx context.Context, lessonID, lessonDate, email string, cancelledAt time.Time) (Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
}

const popularLessonLimit = 5

// ReservationService admits, cancels and reports reservations.
type ReservationService struct {
	store       ReservationStore
	lessons     LessonCatalog
	engine      *recurrence.Engine
	idGenerator func() string
	now         func() time.Time
	stats       *statsCache
	logger      *slog.Logger
}

// NewReservationService constructs a reservation service with the provided dependencies.
func NewReservationService(store ReservationStore, lessons LessonCatalog, engine *recurrence.Engine, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(store, lessons, engine, idGenerator, now, nil)
}

// NewReservationServiceWithLogger constructs a reservation service with a specified logger.
func NewReservationServiceWithLogger(store ReservationStore, lessons LessonCatalog, engine *recurrence.Engine, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		store:       store,
		lessons:     lessons,
		engine:      engine,
		idGenerator: idGenerator,
		now:         now,
		stats:       newStatsCache(30*time.Second, 16, now),
		logger:      defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// AdmitReservation checks capacity and duplicates for one lesson occurrence
// and persists the reservation when both pass. Rejections write nothing.
func (s *ReservationService) AdmitReservation(ctx context.Context, params AdmitReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	lessonID := strings.TrimSpace(params.LessonID)
	lessonDate := strings.TrimSpace(params.LessonDate)
	participant := normalizeParticipant(params.Participant)

	logger := s.loggerWith(ctx, "AdmitReservation",
		"lesson_id", lessonID,
		"lesson_date", lessonDate,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reservation rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation admitted")
	}()

	vErr := &ValidationError{}
	requireID(vErr, "lesson_id", lessonID)
	requireDate(vErr, "lesson_date", lessonDate)
	vErr.merge(validateStruct(participant))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	candidate := Reservation{
		ID:          s.idGenerator(),
		LessonID:    lessonID,
		LessonDate:  lessonDate,
		Participant: participant,
		Status:      StatusConfirmed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var admitted Reservation
	err = s.store.WithAdmission(ctx, lessonID, lessonDate, func(tx AdmissionTx) error {
		lesson, err := tx.GetLesson(ctx, lessonID)
		if err != nil {
			return err
		}

		scheduled, err := s.engine.Matches(lessonRule(lesson), lessonDate)
		if err != nil || !scheduled {
			return fieldError("lesson_date", "lesson does not take place on this date")
		}

		// A participant already holding a seat is told so even when the
		// lesson is full, matching what the unique index reports on insert.
		exists, err := tx.ExistsConfirmedForEmail(ctx, lessonID, lessonDate, participant.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateBooking
		}

		count, err := tx.CountConfirmed(ctx, lessonID, lessonDate)
		if err != nil {
			return err
		}
		if count >= lesson.Spots {
			return ErrLessonFull
		}

		admitted, err = tx.InsertReservation(ctx, candidate)
		return err
	})
	if err != nil {
		err = mapAdmissionError(err)
		return
	}

	s.stats.Invalidate()
	reservation = admitted
	return
}

// GetReservation returns a reservation for administrators.
func (s *ReservationService) GetReservation(ctx context.Context, principal Principal, reservationID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	reservation, err = s.store.GetReservation(ctx, strings.TrimSpace(reservationID))
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "GetReservation", "principal_id", principal.UserID, "reservation_id", reservationID).
			ErrorContext(ctx, "failed to get reservation", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

// ListReservations returns reservations matching filter for administrators.
func (s *ReservationService) ListReservations(ctx context.Context, principal Principal, filter ReservationFilter) (reservations []Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	filter.LessonID = strings.TrimSpace(filter.LessonID)
	filter.LessonDate = strings.TrimSpace(filter.LessonDate)
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))

	logger := s.loggerWith(ctx, "ListReservations",
		"principal_id", principal.UserID,
		"lesson_id", filter.LessonID,
		"lesson_date", filter.LessonDate,
		"status", filter.Status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(reservations)).DebugContext(ctx, "reservations listed")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	vErr := &ValidationError{}
	if filter.LessonDate != "" && !isDate(filter.LessonDate) {
		vErr.add("date", "must be a date in YYYY-MM-DD format")
	}
	switch filter.Status {
	case "", StatusConfirmed, StatusCancelled, StatusPending:
	default:
		vErr.add("status", "must be one of: confirmed cancelled pending")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	reservations, err = s.store.ListReservations(ctx, filter)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	return
}

// Availability reports the seats of one lesson occurrence.
func (s *ReservationService) Availability(ctx context.Context, lessonID, lessonDate string) (availability Availability, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.store == nil || s.lessons == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	lessonID = strings.TrimSpace(lessonID)
	lessonDate = strings.TrimSpace(lessonDate)
	logger := s.loggerWith(ctx, "Availability", "lesson_id", lessonID, "lesson_date", lessonDate)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute availability", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := &ValidationError{}
	requireDate(vErr, "date", lessonDate)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var lesson Lesson
	lesson, err = s.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		err = mapLessonRepoError(err)
		return
	}
	if scheduled, matchErr := s.engine.Matches(lessonRule(lesson), lessonDate); matchErr != nil || !scheduled {
		err = fieldError("date", "lesson does not take place on this date")
		return
	}

	var booked int
	booked, err = s.store.CountConfirmed(ctx, lessonID, lessonDate)
	if err != nil {
		err = mapStoreError(err)
		return
	}

	available := max(lesson.Spots-booked, 0)
	availability = Availability{
		LessonID:  lesson.ID,
		Date:      lessonDate,
		Spots:     lesson.Spots,
		Booked:    booked,
		Available: available,
		IsFull:    available == 0,
	}
	return
}

// CancelReservation releases the participant's confirmed seat. The seat can be booked again afterwards.
func (s *ReservationService) CancelReservation(ctx context.Context, params CancelReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	lessonID := strings.TrimSpace(params.LessonID)
	lessonDate := strings.TrimSpace(params.LessonDate)
	email := normalizeEmail(params.Email)

	logger := s.loggerWith(ctx, "CancelReservation", "lesson_id", lessonID, "lesson_date", lessonDate)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation cancelled")
	}()

	vErr := &ValidationError{}
	requireID(vErr, "lesson_id", lessonID)
	requireDate(vErr, "lesson_date", lessonDate)
	if email == "" {
		vErr.add("participant_email", "participant_email is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	reservation, err = s.store.CancelReservation(ctx, lessonID, lessonDate, email, s.now())
	if err != nil {
		err = mapStoreError(err)
		return
	}

	s.stats.Invalidate()
	return
}

// InvalidateStats drops cached reservation statistics.
func (s *ReservationService) InvalidateStats() {
	if s == nil {
		return
	}
	s.stats.Invalidate()
}

// DeleteReservation removes a reservation permanently for administrators.
func (s *ReservationService) DeleteReservation(ctx context.Context, principal Principal, reservationID string) error {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.store == nil {
		return fmt.Errorf("reservation store not configured")
	}

	logger := s.loggerWith(ctx, "DeleteReservation",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)

	if err := s.store.DeleteReservation(ctx, strings.TrimSpace(reservationID)); err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to delete reservation", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.stats.Invalidate()
	logger.InfoContext(ctx, "reservation deleted")
	return nil
}

// Stats returns the confirmed reservation total for the current month and the most booked lessons.
func (s *ReservationService) Stats(ctx context.Context, principal Principal) (stats ReservationStats, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.store == nil {
		err = fmt.Errorf("reservation store not configured")
		return
	}

	first, last := monthBounds(s.now(), s.engine)
	month := first[:7]
	logger := s.loggerWith(ctx, "Stats", "principal_id", principal.UserID, "month", month)

	if cached, ok := s.stats.Get(month); ok {
		logger.DebugContext(ctx, "reservation stats served from cache")
		return cached, nil
	}

	gen := s.stats.Generation()
	stats.Month = month
	stats.TotalThisMonth, err = s.store.CountConfirmedBetween(ctx, first, last)
	if err == nil {
		stats.PopularLessons, err = s.store.PopularLessons(ctx, popularLessonLimit)
	}
	if err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to compute reservation stats", "error", err, "error_kind", ErrorKind(err))
		return ReservationStats{}, err
	}

	s.stats.Store(month, stats, gen)
	return stats, nil
}

// monthBounds returns the first and last calendar date of the month containing now.
func monthBounds(now time.Time, engine *recurrence.Engine) (string, string) {
	today, _ := engine.ParseDate(engine.Today(now))
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	last := first.AddDate(0, 1, -1)
	return first.Format(recurrence.DateLayout), last.Format(recurrence.DateLayout)
}

func normalizeParticipant(p Participant) Participant {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = normalizeEmail(p.Email)
	p.Phone = normalizeOptionalString(p.Phone)
	p.Notes = normalizeOptionalString(p.Notes)
	return p
}

// mapAdmissionError turns store conflicts raised on insert into the same
// errors the pre-checks produce.
func mapAdmissionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrDuplicateBooking, err)
	case errors.Is(err, persistence.ErrCapacityExceeded):
		return fmt.Errorf("%w: %w", ErrLessonFull, err)
	case errors.Is(err, ErrLessonNotFound):
		return err
	case errors.Is(err, persistence.ErrConstraintViolation),
		errors.Is(err, persistence.ErrNotFound),
		errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %w", ErrLessonNotFound, err)
	}
	return mapStoreError(err)
}
