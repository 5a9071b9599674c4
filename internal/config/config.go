// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
)

// Config holds application configuration
type Config struct {
	// TCMBAPIKey is the upstream credential. It is optional: without it every series
	// operation returns an empty table and a configuration notice.
	TCMBAPIKey       string
	EVDSBaseURL      string
	EVDSTimeout      time.Duration
	TLSSecurityLevel int     // 1 = legacy ciphers, 2 = modern
	RateLimit        float64 // upstream requests per second, 0 disables limiting
	CacheTTL         time.Duration
	CacheBackend     string // memory or sqlite
	CleanupSchedule  string // cron spec for expired cache entry cleanup
	LogLevel         string
	LogPretty        bool
	Port             int
	DevMode          bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		TCMBAPIKey:       getEnv("TCMB_API_KEY", ""),
		EVDSBaseURL:      getEnv("EVDS_BASE_URL", "https://evds2.tcmb.gov.tr/service/evds"),
		EVDSTimeout:      getEnvAsDuration("EVDS_TIMEOUT", 15*time.Second),
		TLSSecurityLevel: getEnvAsInt("EVDS_TLS_SECURITY_LEVEL", 1),
		RateLimit:        getEnvAsFloat("EVDS_RATE_LIMIT", 5),
		CacheTTL:         getEnvAsDuration("CACHE_TTL", time.Hour),
		CacheBackend:     getEnv("CACHE_BACKEND", CacheBackendMemory),
		CleanupSchedule:  getEnv("CACHE_CLEANUP_SCHEDULE", "@every 10m"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", true),
		Port:             getEnvAsInt("PORT", 8010),
		DevMode:          getEnvAsBool("DEV_MODE", false),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that settings are usable.
// A missing TCMB_API_KEY is not an error here; it is reported per operation.
func (c *Config) Validate() error {
	if c.EVDSBaseURL == "" {
		return fmt.Errorf("EVDS_BASE_URL must not be empty")
	}
	if c.EVDSTimeout <= 0 {
		return fmt.Errorf("EVDS_TIMEOUT must be positive, got %s", c.EVDSTimeout)
	}
	if c.TLSSecurityLevel != 1 && c.TLSSecurityLevel != 2 {
		return fmt.Errorf("EVDS_TLS_SECURITY_LEVEL must be 1 or 2, got %d", c.TLSSecurityLevel)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("EVDS_RATE_LIMIT must not be negative, got %v", c.RateLimit)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheBackend != CacheBackendMemory && c.CacheBackend != CacheBackendSQLite {
		return fmt.Errorf("unknown CACHE_BACKEND %q (want %s or %s)", c.CacheBackend, CacheBackendMemory, CacheBackendSQLite)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s", "1h") or a plain number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
