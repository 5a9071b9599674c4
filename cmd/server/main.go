// Package main is the entry point for macrolens, a service that retrieves Turkish
// macroeconomic series from the central bank's data delivery system, normalizes and
// caches them, and serves them as JSON tables, an overview dashboard and xlsx exports.
//
// Startup sequence:
//  1. Load configuration from the environment (.env supported)
//  2. Initialize logging
//  3. Build the transport, result cache and series client
//  4. Register housekeeping jobs and start the scheduler
//  5. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/aristath/macrolens/internal/cache"
	"github.com/aristath/macrolens/internal/config"
	"github.com/aristath/macrolens/internal/dashboard"
	"github.com/aristath/macrolens/internal/database"
	"github.com/aristath/macrolens/internal/evds"
	"github.com/aristath/macrolens/internal/scheduler"
	"github.com/aristath/macrolens/internal/server"
	"github.com/aristath/macrolens/internal/transport"
	"github.com/aristath/macrolens/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting macrolens")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	fetcher := transport.New(transport.Config{
		Timeout:       cfg.EVDSTimeout,
		SecurityLevel: transport.SecurityLevel(cfg.TLSSecurityLevel),
		RateLimit:     cfg.RateLimit,
		Registerer:    registry,
	}, log)

	store, cacheDB, closeStore, err := newCacheStore(cfg.CacheBackend, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("Failed to initialize cache store")
	}
	defer closeStore()

	resultCache := cache.New(store, cache.Options{
		TTL:        cfg.CacheTTL,
		Registerer: registry,
		Logger:     log,
	})

	client := evds.NewClient(evds.Config{
		BaseURL: cfg.EVDSBaseURL,
		APIKey:  cfg.TCMBAPIKey,
	}, fetcher, resultCache, log)
	if !client.HasCredential() {
		log.Warn().Msg("TCMB_API_KEY is not set; series requests will return empty results")
	}

	cleanupJob := cache.NewCleanupJob(resultCache, log)
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.CleanupSchedule, cleanupJob); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.CleanupSchedule).Msg("Failed to register cache cleanup job")
	}
	sched.Start()

	serverCfg := server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Series:     client,
		Dashboard:  dashboard.NewService(client, log),
		Cache:      resultCache,
		Scheduler:  sched,
		Gatherer:   registry,
		CleanupJob: cleanupJob,
	}
	if cacheDB != nil {
		serverCfg.Database = cacheDB
	}
	srv := server.New(serverCfg)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().
		Int("port", cfg.Port).
		Str("cache_backend", cfg.CacheBackend).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("macrolens started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// newCacheStore builds the result cache store for the configured backend.
// The database is nil for the memory backend. The returned close function releases
// the backing database, if any.
func newCacheStore(backend string, log zerolog.Logger) (cache.Store, *database.DB, func(), error) {
	if backend != config.CacheBackendSQLite {
		return cache.NewMemoryStore(), nil, func() {}, nil
	}

	db, err := database.New(database.Config{Name: "result_cache"})
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := cache.NewSQLiteStore(db.Conn())
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	log.Info().Str("database", db.Name()).Msg("Using in-memory SQLite result cache")
	return store, db, func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close cache database")
		}
	}, nil
}
