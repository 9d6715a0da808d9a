package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/gym-reservations/internal/persistence"
)

// LessonRepository implements persistence.LessonRepository using SQLite
type LessonRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewLessonRepository creates a new SQLite lesson repository
func NewLessonRepository(pool *ConnectionPool) *LessonRepository {
	return &LessonRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const lessonColumns = `id, title, start_time, trainer, spots, day_of_week, specific_date, description, created_at, updated_at`

// CreateLesson inserts a new lesson into the database
func (r *LessonRepository) CreateLesson(ctx context.Context, lesson persistence.Lesson) error {
	if lesson.ID == "" || lesson.Spots <= 0 {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO lessons (` + lessonColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.helper.Exec(ctx, query,
		lesson.ID,
		lesson.Title,
		lesson.Time,
		lesson.Trainer,
		lesson.Spots,
		nullInt(lesson.DayOfWeek),
		nullString(lesson.SpecificDate),
		nullString(lesson.Description),
		formatTime(lesson.CreatedAt),
		formatTime(lesson.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateLesson updates an existing lesson. created_at is left untouched.
func (r *LessonRepository) UpdateLesson(ctx context.Context, lesson persistence.Lesson) error {
	if lesson.ID == "" || lesson.Spots <= 0 {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE lessons
		SET title = ?, start_time = ?, trainer = ?, spots = ?, day_of_week = ?,
		    specific_date = ?, description = ?, updated_at = ?
		WHERE id = ?
	`

	return r.helper.ExecAffected(ctx, r.pool.DB(), query,
		lesson.Title,
		lesson.Time,
		lesson.Trainer,
		lesson.Spots,
		nullInt(lesson.DayOfWeek),
		nullString(lesson.SpecificDate),
		nullString(lesson.Description),
		formatTime(lesson.UpdatedAt),
		lesson.ID,
	)
}

// GetLesson retrieves a lesson by ID from the database
func (r *LessonRepository) GetLesson(ctx context.Context, id string) (persistence.Lesson, error) {
	return getLesson(ctx, r.pool.DB(), r.mapper, id)
}

// ListLessons returns lessons ordered by specific date, time, then title
func (r *LessonRepository) ListLessons(ctx context.Context) ([]persistence.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		ORDER BY COALESCE(specific_date, ''), start_time, title
	`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	lessons := make([]persistence.Lesson, 0)
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return lessons, nil
}

// DeleteLesson removes a lesson. The foreign key on reservations rejects the
// delete while any reservation still references the lesson.
func (r *LessonRepository) DeleteLesson(ctx context.Context, id string) error {
	return r.helper.ExecAffected(ctx, r.pool.DB(), `DELETE FROM lessons WHERE id = ?`, id)
}

// CountLessons reports the number of stored lessons
func (r *LessonRepository) CountLessons(ctx context.Context) (int, error) {
	return r.helper.Count(ctx, r.pool.DB(), `SELECT COUNT(*) FROM lessons`)
}

func getLesson(ctx context.Context, q Queryer, mapper *ErrorMapper, id string) (persistence.Lesson, error) {
	if id == "" {
		return persistence.Lesson{}, persistence.ErrNotFound
	}

	row := q.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, id)
	lesson, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Lesson{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Lesson{}, mapper.MapError(err)
	}
	return lesson, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLesson(row rowScanner) (persistence.Lesson, error) {
	var (
		lesson                     persistence.Lesson
		dayOfWeek                  sql.NullInt64
		specificDate, desc         sql.NullString
		createdAtStr, updatedAtStr string
	)
	if err := row.Scan(
		&lesson.ID,
		&lesson.Title,
		&lesson.Time,
		&lesson.Trainer,
		&lesson.Spots,
		&dayOfWeek,
		&specificDate,
		&desc,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.Lesson{}, err
	}

	lesson.DayOfWeek = intPtr(dayOfWeek)
	lesson.SpecificDate = stringPtr(specificDate)
	lesson.Description = stringPtr(desc)

	var err error
	if lesson.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Lesson{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if lesson.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Lesson{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return lesson, nil
}
