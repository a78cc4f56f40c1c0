package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, allowedOrigin string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(allowedOrigin))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/state", h.State)
		r.Get("/config", h.FamilyConfig)
		r.Get("/events", h.Events)
		r.Post("/complete", h.Complete)
		r.Post("/stars", h.Stars)
		r.Post("/index", h.Index)
		r.Post("/redeem", h.Redeem)
	})

	return r
}
