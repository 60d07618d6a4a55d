package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	r.Get("/health", h.Health)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/", h.ListSessions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Patch("/config", h.UpdateConfig)
			r.Put("/content", h.SetContent)
			r.Post("/document", h.AttachDocument)
			r.Post("/visual", h.AttachVisual)
			r.Post("/generate", h.Generate)
			r.Post("/generate/cancel", h.CancelGeneration)
			r.Post("/narration/toggle", h.ToggleNarration)
			r.Post("/narration/pause", h.PauseNarration)
			r.Post("/narration/resume", h.ResumeNarration)
			r.Post("/export", h.Export)
			r.Post("/fullscreen", h.ToggleFullscreen)
		})
	})

	r.Get("/jobs/{id}", h.GetJob)

	r.Route("/lessons", func(r chi.Router) {
		r.Post("/summary", h.LessonSummary)
		r.Post("/quiz", h.LessonQuiz)
	})

	return r
}
