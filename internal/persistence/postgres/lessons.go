package postgres

import (
	"context"

	"github.com/example/gym-reservations/internal/persistence"
)

const lessonColumns = `id, title, start_time, trainer, spots, day_of_week, specific_date, description, created_at, updated_at`

// CreateLesson stores a new lesson.
func (s *Store) CreateLesson(ctx context.Context, lesson persistence.Lesson) error {
	if lesson.ID == "" || lesson.Spots <= 0 {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lessons (`+lessonColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		lesson.ID, lesson.Title, lesson.Time, lesson.Trainer, lesson.Spots,
		lesson.DayOfWeek, lesson.SpecificDate, lesson.Description,
		utc(lesson.CreatedAt), utc(lesson.UpdatedAt),
	)
	return mapError(err)
}

// UpdateLesson replaces the mutable fields of a lesson.
func (s *Store) UpdateLesson(ctx context.Context, lesson persistence.Lesson) error {
	if lesson.ID == "" || lesson.Spots <= 0 {
		return persistence.ErrConstraintViolation
	}
	return execAffected(ctx, s.pool, `
		UPDATE lessons
		SET title = $1, start_time = $2, trainer = $3, spots = $4, day_of_week = $5,
		    specific_date = $6, description = $7, updated_at = $8
		WHERE id = $9
	`,
		lesson.Title, lesson.Time, lesson.Trainer, lesson.Spots, lesson.DayOfWeek,
		lesson.SpecificDate, lesson.Description, utc(lesson.UpdatedAt), lesson.ID,
	)
}

// GetLesson retrieves a lesson by ID.
func (s *Store) GetLesson(ctx context.Context, id string) (persistence.Lesson, error) {
	return getLesson(ctx, s.pool, id, "")
}

// ListLessons returns lessons ordered by specific date, time, then title.
func (s *Store) ListLessons(ctx context.Context) ([]persistence.Lesson, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		ORDER BY COALESCE(specific_date, ''), start_time, title
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	lessons := make([]persistence.Lesson, 0)
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, mapError(err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return lessons, nil
}

// DeleteLesson removes a lesson. ON DELETE RESTRICT rejects lessons that
// still have reservations.
func (s *Store) DeleteLesson(ctx context.Context, id string) error {
	return execAffected(ctx, s.pool, `DELETE FROM lessons WHERE id = $1`, id)
}

// CountLessons reports the number of stored lessons.
func (s *Store) CountLessons(ctx context.Context) (int, error) {
	return count(ctx, s.pool, `SELECT COUNT(*) FROM lessons`)
}

// getLesson reads one lesson; lockClause is appended verbatim, e.g. "FOR UPDATE".
func getLesson(ctx context.Context, q querier, id, lockClause string) (persistence.Lesson, error) {
	if id == "" {
		return persistence.Lesson{}, persistence.ErrNotFound
	}
	lesson, err := scanLesson(q.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1 `+lockClause, id))
	if notFound(err) {
		return persistence.Lesson{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Lesson{}, mapError(err)
	}
	return lesson, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLesson(row rowScanner) (persistence.Lesson, error) {
	var lesson persistence.Lesson
	err := row.Scan(
		&lesson.ID,
		&lesson.Title,
		&lesson.Time,
		&lesson.Trainer,
		&lesson.Spots,
		&lesson.DayOfWeek,
		&lesson.SpecificDate,
		&lesson.Description,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)
	lesson.CreatedAt = utc(lesson.CreatedAt)
	lesson.UpdatedAt = utc(lesson.UpdatedAt)
	return lesson, err
}
