package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/painradar/internal/middleware"
)

// MountRoutes registers the health check and all API routes on r. Starting
// a query goes through limiter; reads do not.
func MountRoutes(r chi.Router, h *Handlers, limiter *middleware.RateLimiter) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.With(limiter.Handler).Post("/queries", h.RunQuery)
		r.Get("/queries", h.ListQueries)
		r.Get("/queries/{id}", h.GetQuery)

		r.Get("/modes", h.ListModes)
		r.Get("/sources", h.ListSources)
		r.Get("/credentials", h.CredentialStatus)
	})
}
