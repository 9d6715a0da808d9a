package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires handlers and cross-cutting middleware into the API router.
// Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Auth           *AuthHandler
	Lessons        *LessonHandler
	Reservations   *ReservationHandler
	Offerings      *OfferingHandler
	Dashboard      *DashboardHandler
	Health         http.Handler
	Sessions       SessionValidator
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the chi router serving /api and /healthz.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(RequestLogger(logger))

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/healthz", cfg.Health)
	}

	requireSession := func(next http.Handler) http.Handler { return next }
	optionalSession := requireSession
	if cfg.Sessions != nil {
		requireSession = RequireSession(cfg.Sessions, logger)
		optionalSession = OptionalSession(cfg.Sessions, logger)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth != nil {
			r.Post("/admin/login", cfg.Auth.Login)
			r.With(requireSession).Post("/admin/logout", cfg.Auth.Logout)
			r.With(requireSession).Get("/admin/session", cfg.Auth.Session)
		}
		if cfg.Dashboard != nil {
			r.With(requireSession).Get("/admin/dashboard", cfg.Dashboard.Get)
		}

		if h := cfg.Lessons; h != nil {
			r.Route("/lessons", func(r chi.Router) {
				r.Get("/", h.List)
				r.Get("/{lessonID}", h.Get)
				r.Get("/{lessonID}/occurrences", h.Occurrences)
				r.Get("/{lessonID}/availability", h.Availability)

				r.Group(func(r chi.Router) {
					r.Use(requireSession)
					r.Post("/", h.Create)
					r.Put("/{lessonID}", h.Update)
					r.Delete("/{lessonID}", h.Delete)
				})
			})
		}

		if h := cfg.Reservations; h != nil {
			r.Route("/reservations", func(r chi.Router) {
				r.Post("/", h.Create)
				r.Post("/cancel", h.Cancel)

				r.Group(func(r chi.Router) {
					r.Use(requireSession)
					r.Get("/", h.List)
					r.Get("/stats", h.Stats)
					r.Get("/{reservationID}", h.Get)
					r.Delete("/{reservationID}", h.Delete)
				})
			})
		}

		if h := cfg.Offerings; h != nil {
			r.Route("/offerings", func(r chi.Router) {
				r.With(optionalSession).Get("/", h.List)
				r.With(optionalSession).Get("/{offeringID}", h.Get)

				r.Group(func(r chi.Router) {
					r.Use(requireSession)
					r.Post("/", h.Create)
					r.Post("/reorder", h.Reorder)
					r.Put("/{offeringID}", h.Update)
					r.Delete("/{offeringID}", h.Delete)
				})
			})
		}
	})

	return r
}
