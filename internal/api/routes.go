package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes. Resident-facing survey routes
// live at the root; administrative routes live under /api.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Resident-facing survey access. Tokens are the only credential:
	// possession of the link grants access to exactly one instance.
	r.Route("/s/{token}", func(r chi.Router) {
		r.Get("/", h.OpenSurvey)
		r.Post("/responses", h.SubmitSurvey)
	})

	// Administrative routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.ListSchedules)
			r.Post("/", h.CreateSchedule)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSchedule)
				r.Put("/", h.UpdateSchedule)
				r.Delete("/", h.DeleteSchedule)
				r.Post("/pause", h.PauseSchedule)
				r.Post("/resume", h.ResumeSchedule)
				r.Post("/run", h.RunScheduleNow)
			})
		})

		r.Route("/surveys", func(r chi.Router) {
			r.Get("/", h.ListSurveys)
			r.Get("/{id}", h.GetSurvey)
		})

		r.Route("/changes", func(r chi.Router) {
			r.Get("/", h.ListChanges)
			r.Post("/", h.ReportChange)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetChange)
				r.Post("/review", h.ReviewChange)
			})
		})
	})

	return r
}
