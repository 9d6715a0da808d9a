package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/gym-reservations/internal/application"
)

type reservationService interface {
	AdmitReservation(ctx context.Context, params application.AdmitReservationParams) (application.Reservation, error)
	CancelReservation(ctx context.Context, params application.CancelReservationParams) (application.Reservation, error)
	GetReservation(ctx context.Context, principal application.Principal, reservationID string) (application.Reservation, error)
	ListReservations(ctx context.Context, principal application.Principal, filter application.ReservationFilter) ([]application.Reservation, error)
	DeleteReservation(ctx context.Context, principal application.Principal, reservationID string) error
	Stats(ctx context.Context, principal application.Principal) (application.ReservationStats, error)
}

// ReservationHandler serves public booking and admin reservation management.
type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

// Create handles POST /api/reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", err)
		return
	}

	reservation, err := h.service.AdmitReservation(r.Context(), application.AdmitReservationParams{
		LessonID:   req.LessonID,
		LessonDate: req.LessonDate,
		Participant: application.Participant{
			Name:  req.ParticipantName,
			Email: req.ParticipantEmail,
			Phone: req.ParticipantPhone,
			Notes: req.Notes,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toReservationDTO(reservation))
}

// Cancel handles POST /api/reservations/cancel.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Cancel", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode cancel request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", err)
		return
	}

	reservation, err := h.service.CancelReservation(r.Context(), application.CancelReservationParams{
		LessonID:   req.LessonID,
		LessonDate: req.LessonDate,
		Email:      req.ParticipantEmail,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReservationDTO(reservation))
}

// List handles GET /api/reservations?lesson_id=&date=&status=.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	reservations, err := h.service.ListReservations(r.Context(), principalOrAnonymous(r.Context()), application.ReservationFilter{
		LessonID:   query.Get("lesson_id"),
		LessonDate: query.Get("date"),
		Status:     query.Get("status"),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		response = append(response, toReservationDTO(reservation))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// Get handles GET /api/reservations/{reservationID}.
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservation, err := h.service.GetReservation(r.Context(), principalOrAnonymous(r.Context()), chi.URLParam(r, "reservationID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReservationDTO(reservation))
}

// Delete handles DELETE /api/reservations/{reservationID}.
func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.service.DeleteReservation(r.Context(), principalOrAnonymous(r.Context()), chi.URLParam(r, "reservationID")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Stats handles GET /api/reservations/stats.
func (h *ReservationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	stats, err := h.service.Stats(r.Context(), principalOrAnonymous(r.Context()))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	popular := make([]lessonCountDTO, 0, len(stats.PopularLessons))
	for _, lc := range stats.PopularLessons {
		popular = append(popular, lessonCountDTO(lc))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statsResponse{
		Month:          stats.Month,
		TotalThisMonth: stats.TotalThisMonth,
		PopularLessons: popular,
	})
}

type reservationRequest struct {
	LessonID         string  `json:"lesson_id"`
	LessonDate       string  `json:"lesson_date"`
	ParticipantName  string  `json:"participant_name"`
	ParticipantEmail string  `json:"participant_email"`
	ParticipantPhone *string `json:"participant_phone"`
	Notes            *string `json:"notes"`
}

type cancelRequest struct {
	LessonID         string `json:"lesson_id"`
	LessonDate       string `json:"lesson_date"`
	ParticipantEmail string `json:"participant_email"`
}

type reservationDTO struct {
	ID               string  `json:"id"`
	LessonID         string  `json:"lesson_id"`
	LessonDate       string  `json:"lesson_date"`
	ParticipantName  string  `json:"participant_name"`
	ParticipantEmail string  `json:"participant_email"`
	ParticipantPhone *string `json:"participant_phone"`
	Notes            *string `json:"notes"`
	Status           string  `json:"status"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	return reservationDTO{
		ID:               reservation.ID,
		LessonID:         reservation.LessonID,
		LessonDate:       reservation.LessonDate,
		ParticipantName:  reservation.Participant.Name,
		ParticipantEmail: reservation.Participant.Email,
		ParticipantPhone: reservation.Participant.Phone,
		Notes:            reservation.Participant.Notes,
		Status:           reservation.Status,
		CreatedAt:        formatTime(reservation.CreatedAt),
		UpdatedAt:        formatTime(reservation.UpdatedAt),
	}
}

type lessonCountDTO struct {
	LessonID string `json:"lesson_id"`
	Title    string `json:"title"`
	Count    int    `json:"reservation_count"`
}

type statsResponse struct {
	Month          string           `json:"month"`
	TotalThisMonth int              `json:"total_this_month"`
	PopularLessons []lessonCountDTO `json:"popular_lessons"`
}
