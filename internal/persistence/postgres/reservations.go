package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/example/gym-reservations/internal/persistence"
)

var reservationColumns = []any{
	"id", "lesson_id", "lesson_date", "participant_name", "participant_email",
	"participant_phone", "notes", "status", "created_at", "updated_at",
}

const reservationColumnList = `id, lesson_id, lesson_date, participant_name, participant_email, participant_phone, notes, status, created_at, updated_at`

// WithBookingLock locks the lesson row for the duration of a transaction, so
// concurrent admissions for the same lesson run one after another.
func (s *Store) WithBookingLock(ctx context.Context, lessonID, lessonDate string, fn func(tx persistence.BookingTx) error) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM lessons WHERE id = $1 FOR UPDATE`, lessonID); err != nil {
			return mapError(err)
		}
		return fn(&bookingTx{q: tx})
	})
}

// GetReservation retrieves a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, s.pool, id)
}

// ListReservations returns reservations matching the filter ordered by date and creation time.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	ds := dialect.From("reservations").Select(reservationColumns...)
	if filter.LessonID != "" {
		ds = ds.Where(goqu.C("lesson_id").Eq(filter.LessonID))
	}
	if filter.LessonDate != "" {
		ds = ds.Where(goqu.C("lesson_date").Eq(filter.LessonDate))
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(filter.Status))
	}
	ds = ds.Order(goqu.C("lesson_date").Asc(), goqu.C("created_at").Asc(), goqu.C("id").Asc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build reservation query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	reservations := make([]persistence.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, mapError(err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return reservations, nil
}

// CountConfirmed counts confirmed reservations for one lesson occurrence.
func (s *Store) CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error) {
	return countConfirmed(ctx, s.pool, lessonID, lessonDate)
}

// CountConfirmedBetween counts confirmed reservations whose date lies in [fromDate, toDate].
func (s *Store) CountConfirmedBetween(ctx context.Context, fromDate, toDate string) (int, error) {
	return count(ctx, s.pool, `
		SELECT COUNT(*) FROM reservations
		WHERE status = $1 AND lesson_date BETWEEN $2 AND $3
	`, persistence.StatusConfirmed, fromDate, toDate)
}

// CountAllForLesson counts reservations of any status referencing the lesson.
func (s *Store) CountAllForLesson(ctx context.Context, lessonID string) (int, error) {
	return count(ctx, s.pool, `SELECT COUNT(*) FROM reservations WHERE lesson_id = $1`, lessonID)
}

// PopularLessons returns lessons ranked by confirmed reservation count.
func (s *Store) PopularLessons(ctx context.Context, limit int) ([]persistence.LessonCount, error) {
	ds := dialect.From(goqu.T("reservations").As("r")).
		Join(goqu.T("lessons").As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("r.lesson_id")))).
		Select(goqu.I("r.lesson_id"), goqu.I("l.title"), goqu.COUNT(goqu.Star()).As("reservation_count")).
		Where(goqu.I("r.status").Eq(persistence.StatusConfirmed)).
		GroupBy(goqu.I("r.lesson_id"), goqu.I("l.title")).
		Order(goqu.C("reservation_count").Desc(), goqu.I("l.title").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build popularity query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	counts := make([]persistence.LessonCount, 0)
	for rows.Next() {
		var c persistence.LessonCount
		if err := rows.Scan(&c.LessonID, &c.Title, &c.Count); err != nil {
			return nil, mapError(err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return counts, nil
}

// RecentConfirmed returns the newest confirmed reservations with their lesson titles.
func (s *Store) RecentConfirmed(ctx context.Context, limit int) ([]persistence.RecentReservation, error) {
	selected := make([]any, 0, len(reservationColumns)+1)
	for _, column := range reservationColumns {
		selected = append(selected, goqu.I("r."+column.(string)))
	}
	selected = append(selected, goqu.I("l.title"))

	ds := dialect.From(goqu.T("reservations").As("r")).
		Join(goqu.T("lessons").As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("r.lesson_id")))).
		Select(selected...).
		Where(goqu.I("r.status").Eq(persistence.StatusConfirmed)).
		Order(goqu.I("r.created_at").Desc(), goqu.I("r.id").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build recent reservations query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	recent := make([]persistence.RecentReservation, 0)
	for rows.Next() {
		var title string
		res, err := scanReservation(rows, &title)
		if err != nil {
			return nil, mapError(err)
		}
		recent = append(recent, persistence.RecentReservation{Reservation: res, LessonTitle: title})
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return recent, nil
}

// CancelReservation marks the participant's confirmed reservation as cancelled.
func (s *Store) CancelReservation(ctx context.Context, lessonID, lessonDate, email string, cancelledAt time.Time) (persistence.Reservation, error) {
	res, err := scanReservation(s.pool.QueryRow(ctx, `
		UPDATE reservations
		SET status = $1, updated_at = $2
		WHERE id = (
			SELECT id FROM reservations
			WHERE lesson_id = $3 AND lesson_date = $4 AND status = $5
			  AND lower(participant_email) = lower($6)
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE
		)
		RETURNING `+reservationColumnList,
		persistence.StatusCancelled, utc(cancelledAt), lessonID, lessonDate, persistence.StatusConfirmed, email,
	))
	if notFound(err) {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return res, nil
}

// DeleteReservation removes a reservation by ID.
func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	return execAffected(ctx, s.pool, `DELETE FROM reservations WHERE id = $1`, id)
}

type bookingTx struct {
	q querier
}

func (tx *bookingTx) GetLesson(ctx context.Context, id string) (persistence.Lesson, error) {
	return getLesson(ctx, tx.q, id, "")
}

func (tx *bookingTx) CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error) {
	return countConfirmed(ctx, tx.q, lessonID, lessonDate)
}

func (tx *bookingTx) ExistsConfirmedForEmail(ctx context.Context, lessonID, lessonDate, email string) (bool, error) {
	var exists bool
	err := tx.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE lesson_id = $1 AND lesson_date = $2 AND status = $3
			  AND lower(participant_email) = lower($4)
		)
	`, lessonID, lessonDate, persistence.StatusConfirmed, email).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (tx *bookingTx) InsertReservation(ctx context.Context, res persistence.Reservation) error {
	if res.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := tx.q.Exec(ctx, `
		INSERT INTO reservations (`+reservationColumnList+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		res.ID, res.LessonID, res.LessonDate, res.ParticipantName, res.ParticipantEmail,
		res.ParticipantPhone, res.Notes, res.Status, utc(res.CreatedAt), utc(res.UpdatedAt),
	)
	return mapError(err)
}

func countConfirmed(ctx context.Context, q querier, lessonID, lessonDate string) (int, error) {
	return count(ctx, q, `
		SELECT COUNT(*) FROM reservations
		WHERE lesson_id = $1 AND lesson_date = $2 AND status = $3
	`, lessonID, lessonDate, persistence.StatusConfirmed)
}

func getReservation(ctx context.Context, q querier, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	res, err := scanReservation(q.QueryRow(ctx, `SELECT `+reservationColumnList+` FROM reservations WHERE id = $1`, id))
	if notFound(err) {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return res, nil
}

func scanReservation(row rowScanner, extra ...any) (persistence.Reservation, error) {
	var res persistence.Reservation
	dest := []any{
		&res.ID,
		&res.LessonID,
		&res.LessonDate,
		&res.ParticipantName,
		&res.ParticipantEmail,
		&res.ParticipantPhone,
		&res.Notes,
		&res.Status,
		&res.CreatedAt,
		&res.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	res.CreatedAt = utc(res.CreatedAt)
	res.UpdatedAt = utc(res.UpdatedAt)
	return res, err
}
