package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/gym-reservations/internal/application"
)

type offeringService interface {
	ListOfferings(ctx context.Context, params application.ListOfferingsParams) ([]application.Offering, error)
	GetOffering(ctx context.Context, principal application.Principal, offeringID string) (application.Offering, error)
	CreateOffering(ctx context.Context, params application.CreateOfferingParams) (application.Offering, error)
	UpdateOffering(ctx context.Context, params application.UpdateOfferingParams) (application.Offering, error)
	DeleteOffering(ctx context.Context, principal application.Principal, offeringID string) error
	ReorderOfferings(ctx context.Context, params application.ReorderOfferingsParams) error
}

// OfferingHandler serves the service offering catalog.
type OfferingHandler struct {
	service   offeringService
	responder responder
	logger    *slog.Logger
}

// NewOfferingHandler constructs an OfferingHandler.
func NewOfferingHandler(service offeringService, logger *slog.Logger) *OfferingHandler {
	base := defaultLogger(logger)
	return &OfferingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *OfferingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "OfferingHandler", operation, attrs...)
}

// List handles GET /api/offerings. The category parameter narrows the
// listing to one category and admins may pass include_inactive=1.
func (h *OfferingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	offerings, err := h.service.ListOfferings(r.Context(), application.ListOfferingsParams{
		Principal:       principalOrAnonymous(r.Context()),
		IncludeInactive: parseFlag(query.Get("include_inactive")),
		Category:        query.Get("category"),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := make([]offeringDTO, 0, len(offerings))
	for _, offering := range offerings {
		response = append(response, toOfferingDTO(offering))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// Get handles GET /api/offerings/{offeringID}.
func (h *OfferingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	offering, err := h.service.GetOffering(r.Context(), principalOrAnonymous(r.Context()), chi.URLParam(r, "offeringID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toOfferingDTO(offering))
}

// Create handles POST /api/offerings.
func (h *OfferingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req offeringRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode offering request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", err)
		return
	}

	offering, err := h.service.CreateOffering(r.Context(), application.CreateOfferingParams{
		Principal: principalOrAnonymous(r.Context()),
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toOfferingDTO(offering))
}

// Update handles PUT /api/offerings/{offeringID}.
func (h *OfferingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	offeringID := chi.URLParam(r, "offeringID")
	var req offeringRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "offering_id", offeringID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode offering request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", err)
		return
	}

	offering, err := h.service.UpdateOffering(r.Context(), application.UpdateOfferingParams{
		Principal:  principalOrAnonymous(r.Context()),
		OfferingID: offeringID,
		Input:      req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toOfferingDTO(offering))
}

// Delete handles DELETE /api/offerings/{offeringID}.
func (h *OfferingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.service.DeleteOffering(r.Context(), principalOrAnonymous(r.Context()), chi.URLParam(r, "offeringID")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Reorder handles POST /api/offerings/reorder.
func (h *OfferingHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Reorder", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reorder request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", err)
		return
	}

	err := h.service.ReorderOfferings(r.Context(), application.ReorderOfferingsParams{
		Principal: principalOrAnonymous(r.Context()),
		Category:  req.Category,
		IDs:       req.IDs,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func parseFlag(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return strings.EqualFold(value, "yes")
}

type offeringRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Price           int64    `json:"price"`
	DurationMinutes *int     `json:"duration_minutes"`
	Features        []string `json:"features"`
	ImageURL        *string  `json:"image_url"`
	IsActive        *bool    `json:"is_active"`
	DisplayOrder    *int     `json:"display_order"`
}

func (req offeringRequest) toInput() application.OfferingInput {
	return application.OfferingInput{
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		PriceCents:      req.Price,
		DurationMinutes: req.DurationMinutes,
		Features:        req.Features,
		ImageURL:        req.ImageURL,
		IsActive:        req.IsActive,
		DisplayOrder:    req.DisplayOrder,
	}
}

type reorderRequest struct {
	Category string   `json:"category"`
	IDs      []string `json:"ids"`
}

type offeringDTO struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Price           int64    `json:"price"`
	DurationMinutes *int     `json:"duration_minutes"`
	Features        []string `json:"features"`
	ImageURL        *string  `json:"image_url"`
	IsActive        bool     `json:"is_active"`
	DisplayOrder    int      `json:"display_order"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func toOfferingDTO(offering application.Offering) offeringDTO {
	features := offering.Features
	if features == nil {
		features = []string{}
	}
	return offeringDTO{
		ID:              offering.ID,
		Title:           offering.Title,
		Description:     offering.Description,
		Category:        offering.Category,
		Price:           offering.PriceCents,
		DurationMinutes: offering.DurationMinutes,
		Features:        features,
		ImageURL:        offering.ImageURL,
		IsActive:        offering.IsActive,
		DisplayOrder:    offering.DisplayOrder,
		CreatedAt:       formatTime(offering.CreatedAt),
		UpdatedAt:       formatTime(offering.UpdatedAt),
	}
}
