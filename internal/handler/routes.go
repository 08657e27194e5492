package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/obot-platform/shopinstall/internal/middleware"
	"github.com/obot-platform/shopinstall/internal/nonce"
	"github.com/obot-platform/shopinstall/internal/version"
)

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SanitizedLogger(h.log))
	r.Use(middleware.Recover(h.log))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS configuration. Preflights fall through to the Options handlers.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     h.cfg.CORSOrigins,
		AllowedMethods:     []string{"GET", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Content-Type"},
		AllowCredentials:   false,
		MaxAge:             300,
		OptionsPassthrough: true,
	}))

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Get("/auth", h.Auth)
	r.Options("/auth", h.Options)
	r.Get("/auth/callback", h.AuthCallback)
	r.Options("/auth/callback", h.Options)

	r.Get("/*", h.NotFound)
	r.Post("/*", h.MethodNotAllowed)

	return r
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	h.Error(w, http.StatusNotFound, "Route not found")
}

// MethodNotAllowed answers unsupported methods.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	h.Error(w, http.StatusMethodNotAllowed, "Method not supported")
}

// Health reports liveness and, for stores backed by a remote service,
// whether that service answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.states.(nonce.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			h.log.Warn("state store ping failed", "error", err)
			h.JSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unavailable",
				"error":   "state store unreachable",
				"version": version.Get(),
			})
			return
		}
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Get()})
}
