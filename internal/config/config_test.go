package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TCMB_API_KEY", "EVDS_BASE_URL", "EVDS_TIMEOUT", "EVDS_TLS_SECURITY_LEVEL",
		"EVDS_RATE_LIMIT", "CACHE_TTL", "CACHE_BACKEND", "CACHE_CLEANUP_SCHEDULE",
		"LOG_LEVEL", "LOG_PRETTY", "PORT", "DEV_MODE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.TCMBAPIKey)
	assert.Equal(t, "https://evds2.tcmb.gov.tr/service/evds", cfg.EVDSBaseURL)
	assert.Equal(t, 15*time.Second, cfg.EVDSTimeout)
	assert.Equal(t, 1, cfg.TLSSecurityLevel)
	assert.Equal(t, 5.0, cfg.RateLimit)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, "@every 10m", cfg.CleanupSchedule)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 8010, cfg.Port)
	assert.False(t, cfg.DevMode)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TCMB_API_KEY", "abc")
	t.Setenv("EVDS_TIMEOUT", "30")
	t.Setenv("EVDS_TLS_SECURITY_LEVEL", "2")
	t.Setenv("EVDS_RATE_LIMIT", "2.5")
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("CACHE_BACKEND", "sqlite")
	t.Setenv("LOG_PRETTY", "false")
	t.Setenv("PORT", "9000")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.TCMBAPIKey)
	assert.Equal(t, 30*time.Second, cfg.EVDSTimeout)
	assert.Equal(t, 2, cfg.TLSSecurityLevel)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, CacheBackendSQLite, cfg.CacheBackend)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.DevMode)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("EVDS_TIMEOUT", "soon")
	t.Setenv("PORT", "eighty")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.EVDSTimeout)
	assert.Equal(t, 8010, cfg.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			EVDSBaseURL:      "https://example.test",
			EVDSTimeout:      time.Second,
			TLSSecurityLevel: 1,
			CacheTTL:         time.Hour,
			CacheBackend:     CacheBackendMemory,
			Port:             8010,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing key is fine", func(c *Config) { c.TCMBAPIKey = "" }, ""},
		{"zero timeout", func(c *Config) { c.EVDSTimeout = 0 }, "EVDS_TIMEOUT"},
		{"bad security level", func(c *Config) { c.TLSSecurityLevel = 3 }, "EVDS_TLS_SECURITY_LEVEL"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "EVDS_RATE_LIMIT"},
		{"negative ttl", func(c *Config) { c.CacheTTL = -time.Second }, "CACHE_TTL"},
		{"unknown backend", func(c *Config) { c.CacheBackend = "redis" }, "CACHE_BACKEND"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"empty base url", func(c *Config) { c.EVDSBaseURL = "" }, "EVDS_BASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
