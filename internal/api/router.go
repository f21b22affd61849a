package api

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *APIHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.ServeTelemetryPage)
	r.Get("/overview", h.ServeOverviewPage)
	r.Get("/ws", h.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/readings", h.GetReadings)
		r.Get("/connection", h.GetConnection)
		r.Get("/config", h.GetDraft)
		r.Get("/overview", h.GetOverview)
		r.Get("/alerts", h.GetAlerts)
		r.Post("/login", h.HandleLogin)

		// Operator commands
		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware)
			r.Put("/config", h.PutDraft)
			r.Post("/configure", h.HandleConfigure)
			r.Post("/inject-anomaly", h.HandleInjectAnomaly)
		})
	})

	// Serve static files (CSS, JS)
	staticPath := filepath.Join(h.webDir, "static")
	fs := http.FileServer(http.Dir(staticPath))
	r.Handle("/static/*", http.StripPrefix("/static/", fs))

	return r
}
