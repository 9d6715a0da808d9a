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

// LessonCatalog resolves lessons by id.
type LessonCatalog interface {
	GetLesson(ctx context.Context, id string) (Lesson, error)
}

// LessonRepository captures the persistence operations needed by the lesson service.
type LessonRepository interface {
	LessonCatalog
	CreateLesson(ctx context.Context, lesson Lesson) (Lesson, error)
	UpdateLesson(ctx context.Context, lesson Lesson) (Lesson, error)
	ListLessons(ctx context.Context) ([]Lesson, error)
	DeleteLesson(ctx context.Context, id string) error
}

// ReservationCounter reports reservation counts used by lesson operations.
type ReservationCounter interface {
	CountConfirmed(ctx context.Context, lessonID, lessonDate string) (int, error)
	CountAllForLesson(ctx context.Context, lessonID string) (int, error)
}

// defaultOccurrenceDays is the window ListOccurrences expands when no end is given.
const defaultOccurrenceDays = 28

// LessonService orchestrates validation, authorization, and persistence for lessons.
type LessonService struct {
	lessons      LessonRepository
	reservations ReservationCounter
	engine       *recurrence.Engine
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
	onChange     func()
}

// NewLessonService constructs a lesson service with the provided dependencies.
func NewLessonService(lessons LessonRepository, reservations ReservationCounter, engine *recurrence.Engine, idGenerator func() string, now func() time.Time) *LessonService {
	return NewLessonServiceWithLogger(lessons, reservations, engine, idGenerator, now, nil)
}

// NewLessonServiceWithLogger constructs a lesson service with a specified logger.
func NewLessonServiceWithLogger(lessons LessonRepository, reservations ReservationCounter, engine *recurrence.Engine, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LessonService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &LessonService{
		lessons:      lessons,
		reservations: reservations,
		engine:       engine,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// OnLessonChanged registers fn to run after a lesson is updated or deleted.
// Callers use it to drop data derived from lesson attributes, such as the
// titles reported in reservation statistics.
func (s *LessonService) OnLessonChanged(fn func()) {
	if s == nil {
		return
	}
	s.onChange = fn
}

func (s *LessonService) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *LessonService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LessonService", operation, attrs...)
}

// ListLessons returns every lesson ordered by specific date, time, then title.
func (s *LessonService) ListLessons(ctx context.Context) (lessons []Lesson, err error) {
	if s == nil {
		err = fmt.Errorf("LessonService is nil")
		return
	}
	if s.lessons == nil {
		err = fmt.Errorf("lesson repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListLessons")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list lessons", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(lessons)).DebugContext(ctx, "lessons listed")
	}()

	lessons, err = s.lessons.ListLessons(ctx)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	return
}

// GetLesson returns a single lesson.
func (s *LessonService) GetLesson(ctx context.Context, lessonID string) (lesson Lesson, err error) {
	if s == nil {
		err = fmt.Errorf("LessonService is nil")
		return
	}
	if s.lessons == nil {
		err = fmt.Errorf("lesson repository not configured")
		return
	}

	lesson, err = s.lessons.GetLesson(ctx, strings.TrimSpace(lessonID))
	if err != nil {
		err = mapLessonRepoError(err)
		s.loggerWith(ctx, "GetLesson", "lesson_id", lessonID).
			ErrorContext(ctx, "failed to get lesson", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

// CreateLesson validates input and persists a new lesson for administrators.
func (s *LessonService) CreateLesson(ctx context.Context, params CreateLessonParams) (lesson Lesson, err error) {
	if s == nil {
		err = fmt.Errorf("LessonService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateLesson",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create lesson", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("lesson_id", lesson.ID).InfoContext(ctx, "lesson created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.lessons == nil {
		err = fmt.Errorf("lesson repository not configured")
		return
	}

	input := normalizeLessonInput(params.Input)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	candidate := Lesson{
		ID:           s.idGenerator(),
		Title:        input.Title,
		Time:         input.Time,
		Trainer:      input.Trainer,
		Spots:        input.Spots,
		DayOfWeek:    input.DayOfWeek,
		SpecificDate: input.SpecificDate,
		Description:  input.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	lesson, err = s.lessons.CreateLesson(ctx, candidate)
	if err != nil {
		err = mapLessonRepoError(err)
		return
	}
	return
}

// UpdateLesson validates input and replaces an existing lesson for administrators.
func (s *LessonService) UpdateLesson(ctx context.Context, params UpdateLessonParams) (lesson Lesson, err error) {
	if s == nil {
		err = fmt.Errorf("LessonService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateLesson",
		"principal_id", params.Principal.UserID,
		"lesson_id", params.LessonID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update lesson", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "lesson updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.lessons == nil {
		err = fmt.Errorf("lesson repository not configured")
		return
	}

	var existing Lesson
	existing, err = s.lessons.GetLesson(ctx, strings.TrimSpace(params.LessonID))
	if err != nil {
		err = mapLessonRepoError(err)
		return
	}

	input := normalizeLessonInput(params.Input)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Title = input.Title
	updated.Time = input.Time
	updated.Trainer = input.Trainer
	updated.Spots = input.Spots
	updated.DayOfWeek = input.DayOfWeek
	updated.SpecificDate = input.SpecificDate
	updated.Description = input.Description
	updated.UpdatedAt = s.now()

	lesson, err = s.lessons.UpdateLesson(ctx, updated)
	if err != nil {
		err = mapLessonRepoError(err)
		return
	}
	s.notifyChange()
	return
}

// DeleteLesson removes a lesson that has no reservations of any status.
func (s *LessonService) DeleteLesson(ctx context.Context, principal Principal, lessonID string) (err error) {
	if s == nil {
		return fmt.Errorf("LessonService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.lessons == nil || s.reservations == nil {
		return fmt.Errorf("lesson repository not configured")
	}

	lessonID = strings.TrimSpace(lessonID)
	logger := s.loggerWith(ctx, "DeleteLesson",
		"principal_id", principal.UserID,
		"lesson_id", lessonID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete lesson", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "lesson deleted")
	}()

	if _, err = s.lessons.GetLesson(ctx, lessonID); err != nil {
		err = mapLessonRepoError(err)
		return
	}

	var count int
	count, err = s.reservations.CountAllForLesson(ctx, lessonID)
	if err != nil {
		err = mapStoreError(err)
		return
	}
	if count > 0 {
		err = &LessonHasReservationsError{Count: count}
		return
	}

	err = s.lessons.DeleteLesson(ctx, lessonID)
	if errors.Is(err, persistence.ErrConstraintViolation) {
		// A reservation arrived between the count and the delete.
		fresh, countErr := s.reservations.CountAllForLesson(ctx, lessonID)
		if countErr != nil || fresh < 1 {
			fresh = 1
		}
		err = &LessonHasReservationsError{Count: fresh}
		return
	}
	if err != nil {
		err = mapLessonRepoError(err)
		return
	}
	s.notifyChange()
	return
}

// ListOccurrences expands a lesson's schedule into dated occurrences with seat availability.
func (s *LessonService) ListOccurrences(ctx context.Context, params ListOccurrencesParams) (occurrences []Occurrence, err error) {
	if s == nil {
		err = fmt.Errorf("LessonService is nil")
		return
	}
	if s.lessons == nil || s.reservations == nil {
		err = fmt.Errorf("lesson repository not configured")
		return
	}

	lessonID := strings.TrimSpace(params.LessonID)
	logger := s.loggerWith(ctx, "ListOccurrences",
		"lesson_id", lessonID,
		"from", params.From,
		"to", params.To,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list occurrences", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(occurrences)).DebugContext(ctx, "occurrences listed")
	}()

	from, to, vErr := s.occurrenceWindow(params)
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

	var dates []string
	dates, err = s.engine.Occurrences(lessonRule(lesson), from, to)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidWindow) {
			err = fieldError("to", fmt.Sprintf("window must end on or after from and span at most %d days", recurrence.MaxWindowDays))
		}
		return
	}

	occurrences = make([]Occurrence, 0, len(dates))
	for _, date := range dates {
		var booked int
		booked, err = s.reservations.CountConfirmed(ctx, lesson.ID, date)
		if err != nil {
			err = mapStoreError(err)
			occurrences = nil
			return
		}
		available := max(lesson.Spots-booked, 0)
		occurrences = append(occurrences, Occurrence{
			LessonID:  lesson.ID,
			Date:      date,
			Time:      lesson.Time,
			Spots:     lesson.Spots,
			Booked:    booked,
			Available: available,
			IsFull:    available == 0,
		})
	}
	return
}

func (s *LessonService) occurrenceWindow(params ListOccurrencesParams) (string, string, *ValidationError) {
	vErr := &ValidationError{}

	from := strings.TrimSpace(params.From)
	if from == "" {
		from = s.engine.Today(s.now())
	}
	to := strings.TrimSpace(params.To)

	if !isDate(from) {
		vErr.add("from", "must be a date in YYYY-MM-DD format")
	}
	if to != "" && !isDate(to) {
		vErr.add("to", "must be a date in YYYY-MM-DD format")
	}
	if vErr.HasErrors() {
		return "", "", vErr
	}

	if to == "" {
		start, _ := s.engine.ParseDate(from)
		to = start.AddDate(0, 0, defaultOccurrenceDays-1).Format(recurrence.DateLayout)
	}
	return from, to, vErr
}

func lessonRule(lesson Lesson) recurrence.Rule {
	return recurrence.Rule{DayOfWeek: lesson.DayOfWeek, SpecificDate: lesson.SpecificDate}
}

func normalizeLessonInput(input LessonInput) LessonInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Time = strings.TrimSpace(input.Time)
	input.Trainer = strings.TrimSpace(input.Trainer)
	input.SpecificDate = normalizeOptionalString(input.SpecificDate)
	input.Description = normalizeOptionalString(input.Description)
	return input
}

func mapLessonRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrLessonNotFound, err)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("spots", "must be greater than 0")
	}
	return mapStoreError(err)
}
