package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/example/gym-reservations/internal/application"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	errBadRequestBody      = errors.New("request body must be a valid JSON object")
	errMissingSessionToken = errors.New("session token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, "internal_error", errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "validation_failed",
			Message:   statusMessage(http.StatusUnprocessableEntity),
			Errors:    vErr.FieldErrors,
		})
		return
	}

	var hasReservations *application.LessonHasReservationsError
	if errors.As(err, &hasReservations) {
		count := hasReservations.Count
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode:        "lesson_has_reservations",
			Message:          "lesson still has reservations and cannot be deleted",
			ReservationCount: &count,
		})
		return
	}

	status, code, message := http.StatusInternalServerError, "internal_error", statusMessage(http.StatusInternalServerError)
	switch {
	case errors.Is(err, application.ErrInvalidCredentials):
		status, code, message = http.StatusUnauthorized, "invalid_credentials", "username or password is incorrect"
	case errors.Is(err, application.ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, "unauthorized", statusMessage(http.StatusUnauthorized)
	case errors.Is(err, application.ErrAccountLocked):
		status, code, message = http.StatusLocked, "account_locked", "too many failed logins, try again later"
	case errors.Is(err, application.ErrLessonNotFound):
		status, code, message = http.StatusNotFound, "lesson_not_found", "lesson not found"
	case errors.Is(err, application.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", statusMessage(http.StatusNotFound)
	case errors.Is(err, application.ErrLessonFull):
		status, code, message = http.StatusConflict, "lesson_full", "lesson is full"
	case errors.Is(err, application.ErrDuplicateBooking):
		status, code, message = http.StatusConflict, "already_registered", "already registered for this lesson"
	case errors.Is(err, application.ErrStorageUnavailable):
		status, code, message = http.StatusServiceUnavailable, "storage_unavailable", statusMessage(http.StatusServiceUnavailable)
	}

	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "service error", "status", status, "error", err, "error_kind", application.ErrorKind(err))
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request could not be understood"
	case http.StatusUnauthorized:
		return "authentication is required"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current state of the resource"
	case http.StatusUnprocessableEntity:
		return "the request contains invalid fields"
	case http.StatusServiceUnavailable:
		return "storage is temporarily unavailable"
	default:
		return "an internal error occurred"
	}
}

type errorResponse struct {
	ErrorCode        string            `json:"error_code"`
	Message          string            `json:"message"`
	Errors           map[string]string `json:"errors,omitempty"`
	ReservationCount *int              `json:"reservation_count,omitempty"`
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBadRequestBody
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequestBody
	}
	return nil
}
