package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/example/gym-reservations/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using SQLite
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

var reservationColumns = []any{
	"id", "lesson_id", "lesson_date", "participant_name", "participant_email",
	"participant_phone", "notes", "status", "created_at", "updated_at",
}

const reservationColumnList = `id, lesson_id, lesson_date, participant_name, participant_email, participant_phone, notes, status, created_at, updated_at`

// WithBookingLock runs fn inside an immediate transaction. SQLite has a
// single writer, so holding the write lock serialises every admission.
func (r *ReservationRepository) WithBookingLock(ctx context.Context, lessonID, lessonDate string, fn func(tx persistence.BookingTx) error) error {
	return r.pool.WithTransaction(ctx, func(q Queryer) error {
		return fn(&bookingTx{q: q, helper: r.helper, mapper: r.mapper})
	})
}

// GetReservation retrieves a reservation by ID
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, r.pool.DB(), r.mapper, id)
}

// ListReservations returns reservations matching the filter ordered by date and creation time
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
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
		return nil, fmt.Errorf("sqlite: build reservation query: %w", err)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	reservations := make([]persistence.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return reservations, nil
}

// CountConfirmed counts confirmed reservations for one lesson occurrence
func (r *ReservationRepository) CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error) {
	return countConfirmed(ctx, r.pool.DB(), r.helper, lessonID, lessonDate)
}

// CountConfirmedBetween counts confirmed reservations whose date lies in [fromDate, toDate]
func (r *ReservationRepository) CountConfirmedBetween(ctx context.Context, fromDate, toDate string) (int, error) {
	return r.helper.Count(ctx, r.pool.DB(), `
		SELECT COUNT(*) FROM reservations
		WHERE status = ? AND lesson_date BETWEEN ? AND ?
	`, persistence.StatusConfirmed, fromDate, toDate)
}

// CountAllForLesson counts reservations of any status referencing the lesson
func (r *ReservationRepository) CountAllForLesson(ctx context.Context, lessonID string) (int, error) {
	return r.helper.Count(ctx, r.pool.DB(), `SELECT COUNT(*) FROM reservations WHERE lesson_id = ?`, lessonID)
}

// PopularLessons returns lessons ranked by confirmed reservation count
func (r *ReservationRepository) PopularLessons(ctx context.Context, limit int) ([]persistence.LessonCount, error) {
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
		return nil, fmt.Errorf("sqlite: build popularity query: %w", err)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	counts := make([]persistence.LessonCount, 0)
	for rows.Next() {
		var count persistence.LessonCount
		if err := rows.Scan(&count.LessonID, &count.Title, &count.Count); err != nil {
			return nil, r.mapper.MapError(err)
		}
		counts = append(counts, count)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return counts, nil
}

// RecentConfirmed returns the newest confirmed reservations with their lesson titles
func (r *ReservationRepository) RecentConfirmed(ctx context.Context, limit int) ([]persistence.RecentReservation, error) {
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
		return nil, fmt.Errorf("sqlite: build recent reservations query: %w", err)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	recent := make([]persistence.RecentReservation, 0)
	for rows.Next() {
		var title string
		res, err := scanReservation(rows, &title)
		if err != nil {
			return nil, err
		}
		recent = append(recent, persistence.RecentReservation{Reservation: res, LessonTitle: title})
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return recent, nil
}

// CancelReservation marks the participant's confirmed reservation as cancelled
func (r *ReservationRepository) CancelReservation(ctx context.Context, lessonID, lessonDate, email string, cancelledAt time.Time) (persistence.Reservation, error) {
	var cancelled persistence.Reservation
	err := r.pool.WithTransaction(ctx, func(q Queryer) error {
		var id string
		err := q.QueryRowContext(ctx, `
			SELECT id FROM reservations
			WHERE lesson_id = ? AND lesson_date = ? AND status = ?
			  AND participant_email = ? COLLATE NOCASE
			ORDER BY created_at
			LIMIT 1
		`, lessonID, lessonDate, persistence.StatusConfirmed, email).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return r.mapper.MapError(err)
		}

		if err := r.helper.ExecAffected(ctx, q,
			`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
			persistence.StatusCancelled, formatTime(cancelledAt), id,
		); err != nil {
			return err
		}

		cancelled, err = getReservation(ctx, q, r.mapper, id)
		return err
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return cancelled, nil
}

// DeleteReservation removes a reservation by ID
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	return r.helper.ExecAffected(ctx, r.pool.DB(), `DELETE FROM reservations WHERE id = ?`, id)
}

// bookingTx scopes every admission query to the pinned transaction connection.
type bookingTx struct {
	q      Queryer
	helper *QueryHelper
	mapper *ErrorMapper
}

func (tx *bookingTx) GetLesson(ctx context.Context, id string) (persistence.Lesson, error) {
	return getLesson(ctx, tx.q, tx.mapper, id)
}

func (tx *bookingTx) CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error) {
	return countConfirmed(ctx, tx.q, tx.helper, lessonID, lessonDate)
}

func (tx *bookingTx) ExistsConfirmedForEmail(ctx context.Context, lessonID, lessonDate, email string) (bool, error) {
	count, err := tx.helper.Count(ctx, tx.q, `
		SELECT COUNT(*) FROM reservations
		WHERE lesson_id = ? AND lesson_date = ? AND status = ?
		  AND participant_email = ? COLLATE NOCASE
	`, lessonID, lessonDate, persistence.StatusConfirmed, email)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (tx *bookingTx) InsertReservation(ctx context.Context, res persistence.Reservation) error {
	if res.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := tx.q.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumnList+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.ID,
		res.LessonID,
		res.LessonDate,
		res.ParticipantName,
		res.ParticipantEmail,
		nullString(res.ParticipantPhone),
		nullString(res.Notes),
		res.Status,
		formatTime(res.CreatedAt),
		formatTime(res.UpdatedAt),
	)
	return tx.mapper.MapError(err)
}

func countConfirmed(ctx context.Context, q Queryer, helper *QueryHelper, lessonID, lessonDate string) (int, error) {
	return helper.Count(ctx, q, `
		SELECT COUNT(*) FROM reservations
		WHERE lesson_id = ? AND lesson_date = ? AND status = ?
	`, lessonID, lessonDate, persistence.StatusConfirmed)
}

func getReservation(ctx context.Context, q Queryer, mapper *ErrorMapper, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	row := q.QueryRowContext(ctx, `SELECT `+reservationColumnList+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Reservation{}, mapper.MapError(err)
	}
	return res, nil
}

// scanReservation reads the reservation columns followed by any extra destinations.
func scanReservation(row rowScanner, extra ...any) (persistence.Reservation, error) {
	var (
		res                        persistence.Reservation
		phone, notes               sql.NullString
		createdAtStr, updatedAtStr string
	)
	dest := []any{
		&res.ID,
		&res.LessonID,
		&res.LessonDate,
		&res.ParticipantName,
		&res.ParticipantEmail,
		&phone,
		&notes,
		&res.Status,
		&createdAtStr,
		&updatedAtStr,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return persistence.Reservation{}, err
	}

	res.ParticipantPhone = stringPtr(phone)
	res.Notes = stringPtr(notes)

	var err error
	if res.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if res.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return res, nil
}
