package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/gym-reservations/internal/application"
)

type lessonService interface {
	ListLessons(ctx context.Context) ([]application.Lesson, error)
	GetLesson(ctx context.Context, lessonID string) (application.Lesson, error)
	CreateLesson(ctx context.Context, params application.CreateLessonParams) (application.Lesson, error)
	UpdateLesson(ctx context.Context, params application.UpdateLessonParams) (application.Lesson, error)
	DeleteLesson(ctx context.Context, principal application.Principal, lessonID string) error
	ListOccurrences(ctx context.Context, params application.ListOccurrencesParams) ([]application.Occurrence, error)
}

type availabilityService interface {
	Availability(ctx context.Context, lessonID, lessonDate string) (application.Availability, error)
}

// LessonHandler serves the lesson catalog and its occurrences.
type LessonHandler struct {
	service      lessonService
	availability availabilityService
	responder    responder
	logger       *slog.Logger
}

// NewLessonHandler constructs a LessonHandler.
func NewLessonHandler(service lessonService, availability availabilityService, logger *slog.Logger) *LessonHandler {
	base := defaultLogger(logger)
	return &LessonHandler{service: service, availability: availability, responder: newResponder(base), logger: base}
}

func (h *LessonHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "LessonHandler", operation, attrs...)
}

// List handles GET /api/lessons.
func (h *LessonHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	lessons, err := h.service.ListLessons(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := make([]lessonDTO, 0, len(lessons))
	for _, lesson := range lessons {
		response = append(response, toLessonDTO(lesson))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// Get handles GET /api/lessons/{lessonID}.
func (h *LessonHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	lesson, err := h.service.GetLesson(r.Context(), chi.URLParam(r, "lessonID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLessonDTO(lesson))
}

// Occurrences handles GET /api/lessons/{lessonID}/occurrences?from=&to=.
func (h *LessonHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	occurrences, err := h.service.ListOccurrences(r.Context(), application.ListOccurrencesParams{
		LessonID: chi.URLParam(r, "lessonID"),
		From:     query.Get("from"),
		To:       query.Get("to"),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := make([]occurrenceDTO, 0, len(occurrences))
	for _, occurrence := range occurrences {
		response = append(response, occurrenceDTO(occurrence))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// Availability handles GET /api/lessons/{lessonID}/availability?date=.
func (h *LessonHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	availability, err := h.availability.Availability(r.Context(), chi.URLParam(r, "lessonID"), r.URL.Query().Get("date"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityDTO(availability))
}

// Create handles POST /api/lessons.
func (h *LessonHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOrAnonymous(r.Context())
	var req lessonRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode lesson request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", err)
		return
	}

	lesson, err := h.service.CreateLesson(r.Context(), application.CreateLessonParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toLessonDTO(lesson))
}

// Update handles PUT /api/lessons/{lessonID}.
func (h *LessonHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOrAnonymous(r.Context())
	lessonID := chi.URLParam(r, "lessonID")
	var req lessonRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "lesson_id", lessonID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode lesson request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", err)
		return
	}

	lesson, err := h.service.UpdateLesson(r.Context(), application.UpdateLessonParams{
		Principal: principal,
		LessonID:  lessonID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLessonDTO(lesson))
}

// Delete handles DELETE /api/lessons/{lessonID}.
func (h *LessonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.service.DeleteLesson(r.Context(), principalOrAnonymous(r.Context()), chi.URLParam(r, "lessonID")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type lessonRequest struct {
	Title        string  `json:"title"`
	Time         string  `json:"time"`
	Trainer      string  `json:"trainer"`
	Spots        int     `json:"spots"`
	DayOfWeek    *int    `json:"day_of_week"`
	SpecificDate *string `json:"specific_date"`
	Description  *string `json:"description"`
}

func (req lessonRequest) toInput() application.LessonInput {
	return application.LessonInput{
		Title:        req.Title,
		Time:         req.Time,
		Trainer:      req.Trainer,
		Spots:        req.Spots,
		DayOfWeek:    req.DayOfWeek,
		SpecificDate: req.SpecificDate,
		Description:  req.Description,
	}
}

type lessonDTO struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Time         string  `json:"time"`
	Trainer      string  `json:"trainer"`
	Spots        int     `json:"spots"`
	DayOfWeek    *int    `json:"day_of_week"`
	SpecificDate *string `json:"specific_date"`
	Description  *string `json:"description"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func toLessonDTO(lesson application.Lesson) lessonDTO {
	return lessonDTO{
		ID:           lesson.ID,
		Title:        lesson.Title,
		Time:         lesson.Time,
		Trainer:      lesson.Trainer,
		Spots:        lesson.Spots,
		DayOfWeek:    lesson.DayOfWeek,
		SpecificDate: lesson.SpecificDate,
		Description:  lesson.Description,
		CreatedAt:    formatTime(lesson.CreatedAt),
		UpdatedAt:    formatTime(lesson.UpdatedAt),
	}
}

// occurrenceDTO converts directly from application.Occurrence.
type occurrenceDTO struct {
	LessonID  string `json:"lesson_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Spots     int    `json:"spots"`
	Booked    int    `json:"booked"`
	Available int    `json:"available"`
	IsFull    bool   `json:"is_full"`
}

// availabilityDTO converts directly from application.Availability.
type availabilityDTO struct {
	LessonID  string `json:"lesson_id"`
	Date      string `json:"date"`
	Spots     int    `json:"spots"`
	Booked    int    `json:"booked"`
	Available int    `json:"available"`
	IsFull    bool   `json:"is_full"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
