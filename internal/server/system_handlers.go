package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/macrolens/internal/cache"
	"github.com/aristath/macrolens/internal/scheduler"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	series      SeriesFetcher
	cache       *cache.Cache
	scheduler   *scheduler.Scheduler
	database    DatabaseChecker
	cleanupJob  scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(cfg Config, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		series:      cfg.Series,
		cache:       cfg.Cache,
		scheduler:   cfg.Scheduler,
		database:    cfg.Database,
		cleanupJob:  cfg.CleanupJob,
	}
}

// CacheStatus reports result cache state.
type CacheStatus struct {
	Entries    int         `json:"entries"`
	TTLSeconds float64     `json:"ttl_seconds"`
	Stats      cache.Stats `json:"stats"`
}

// DatabaseStatus reports the cache database health.
type DatabaseStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// SystemStatusResponse is the /api/system/status payload
type SystemStatusResponse struct {
	Status            string                `json:"status"`
	UptimeSeconds     float64               `json:"uptime_seconds"`
	CredentialPresent bool                  `json:"credential_present"`
	CPUPercent        float64               `json:"cpu_percent"`
	MemoryUsedPercent float64               `json:"memory_used_percent"`
	Goroutines        int                   `json:"goroutines"`
	HeapAllocBytes    uint64                `json:"heap_alloc_bytes"`
	Cache             *CacheStatus          `json:"cache,omitempty"`
	Database          *DatabaseStatus       `json:"database,omitempty"`
	Jobs              []scheduler.JobStatus `json:"jobs,omitempty"`
}

// HandleSystemStatus reports process and host health.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	resp := SystemStatusResponse{
		Status:            "ok",
		UptimeSeconds:     time.Since(h.startupTime).Seconds(),
		CredentialPresent: h.series != nil && h.series.HasCredential(),
		CPUPercent:        cpuPercent,
		MemoryUsedPercent: memPercent,
		Goroutines:        runtime.NumGoroutine(),
		HeapAllocBytes:    ms.HeapAlloc,
	}
	if !resp.CredentialPresent {
		resp.Status = "degraded"
	}
	if h.cache != nil {
		entries, err := h.cache.Len()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count cache entries")
		}
		resp.Cache = &CacheStatus{
			Entries:    entries,
			TTLSeconds: h.cache.TTL().Seconds(),
			Stats:      h.cache.Stats(),
		}
	}
	if h.database != nil {
		resp.Database = &DatabaseStatus{Name: h.database.Name(), Healthy: true}
		if err := h.database.HealthCheck(r.Context()); err != nil {
			h.log.Error().Err(err).Str("database", h.database.Name()).Msg("Database health check failed")
			resp.Database.Healthy = false
			resp.Database.Error = err.Error()
			resp.Status = "degraded"
		}
	}
	if h.scheduler != nil {
		resp.Jobs = h.scheduler.Status()
	}

	writeJSON(h.log, w, http.StatusOK, resp)
}

// HandleTriggerCacheCleanup runs the cache cleanup job immediately
// POST /api/jobs/cache-cleanup
func (h *SystemHandlers) HandleTriggerCacheCleanup(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil || h.cleanupJob == nil {
		h.log.Warn().Msg("Cache cleanup job not registered")
		writeError(h.log, w, http.StatusNotFound, "cache cleanup job not registered")
		return
	}

	h.log.Info().Msg("Manual cache cleanup triggered")

	if err := h.scheduler.RunNow(h.cleanupJob); err != nil {
		h.log.Error().Err(err).Msg("Failed to run cache cleanup")
		writeError(h.log, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Cache cleanup completed",
	})
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
