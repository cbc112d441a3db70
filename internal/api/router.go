package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/ledger-insights/internal/api/handlers"
	"github.com/dvloznov/ledger-insights/internal/api/middleware"
	"github.com/dvloznov/ledger-insights/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterDeps are the collaborators wired into the HTTP router.
type RouterDeps struct {
	Config   *config.Config
	Analyzer handlers.Analyzer
	// Imports is optional; without it the import endpoints are not mounted.
	Imports *handlers.ImportsHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Log     zerolog.Logger
}

// NewRouter builds the HTTP handler for the API server.
func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config
	log := deps.Log

	analyzeHandler := handlers.NewAnalyzeHandler(deps.Analyzer, cfg.Server.MaxUploadBytes, log)
	datasetHandler := handlers.NewDatasetHandler(deps.Analyzer, log)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.Security.RateLimit.Enabled {
		limit = middleware.RateLimit(cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst)
	}
	analyze := limit(http.HandlerFunc(analyzeHandler.Analyze))

	r.Method(http.MethodPost, "/analyze", analyze)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/analyze", analyze)
		r.Get("/dataset", datasetHandler.GetDataset)

		if deps.Imports != nil {
			r.Post("/imports", deps.Imports.CreateImport)
			r.Get("/imports", deps.Imports.ListImports)
			r.Get("/imports/{id}", func(w http.ResponseWriter, r *http.Request) {
				deps.Imports.GetImport(w, r, chi.URLParam(r, "id"))
			})
		}
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	if cfg.Static.Dir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.Static.Dir)))
	}

	return r
}
