package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/gym-reservations/internal/application"
)

type dashboardService interface {
	Dashboard(ctx context.Context, principal application.Principal) (application.Dashboard, error)
}

// DashboardHandler serves the admin landing page figures.
type DashboardHandler struct {
	service   dashboardService
	responder responder
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(service dashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

// Get handles GET /api/admin/dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	dashboard, err := h.service.Dashboard(r.Context(), principalOrAnonymous(r.Context()))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	recent := make([]recentReservationDTO, 0, len(dashboard.RecentReservations))
	for _, rr := range dashboard.RecentReservations {
		recent = append(recent, recentReservationDTO{
			reservationDTO: toReservationDTO(rr.Reservation),
			LessonTitle:    rr.LessonTitle,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dashboardResponse{
		TotalLessons:          dashboard.TotalLessons,
		ReservationsThisMonth: dashboard.ReservationsThisMonth,
		TotalOfferings:        dashboard.TotalOfferings,
		RecentReservations:    recent,
	})
}

type recentReservationDTO struct {
	reservationDTO
	LessonTitle string `json:"lesson_title"`
}

type dashboardResponse struct {
	TotalLessons          int                    `json:"total_lessons"`
	ReservationsThisMonth int                    `json:"reservations_this_month"`
	TotalOfferings        int                    `json:"total_offerings"`
	RecentReservations    []recentReservationDTO `json:"recent_reservations"`
}
