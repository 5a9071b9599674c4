// Package server provides the HTTP server and routing for macrolens.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/macrolens/internal/cache"
	"github.com/aristath/macrolens/internal/dashboard"
	"github.com/aristath/macrolens/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Series    SeriesFetcher
	Dashboard *dashboard.Service
	Cache     *cache.Cache         // optional, reported in system status
	Scheduler *scheduler.Scheduler // optional, reported in system status
	Gatherer  prometheus.Gatherer  // defaults to the global registry

	// Database backs the result cache when the sqlite backend is used. Optional.
	Database DatabaseChecker

	// CleanupJob is the scheduled cache cleanup, runnable on demand. Optional.
	CleanupJob scheduler.Job
}

// DatabaseChecker reports the health of a backing database.
type DatabaseChecker interface {
	Name() string
	QuickCheck(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	database       DatabaseChecker
	series         *SeriesHandlers
	systemHandlers *SystemHandlers
	gatherer       prometheus.Gatherer
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	log := cfg.Log.With().Str("component", "server").Logger()

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            log,
		port:           cfg.Port,
		database:       cfg.Database,
		series:         NewSeriesHandlers(cfg.Series, cfg.Dashboard, log),
		systemHandlers: NewSystemHandlers(cfg, log),
		gatherer:       gatherer,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
		r.Post("/jobs/cache-cleanup", s.systemHandlers.HandleTriggerCacheCleanup)

		r.Get("/overview", s.series.HandleOverview)
		r.Route("/series", func(r chi.Router) {
			r.Get("/", s.series.HandleListFamilies)
			r.Get("/{family}", s.series.HandleSeries)
			r.Get("/{family}/export.xlsx", s.series.HandleExport)
		})
	})
}

// Handler returns the routed handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
