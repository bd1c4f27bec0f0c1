package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/observability"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("PROTOGUARD_TEST_VAR", "custom")

	assert.Equal(t, "custom", getEnv("PROTOGUARD_TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("PROTOGUARD_TEST_VAR_NOT_SET", "default"))
}

func TestGetEnvTyped(t *testing.T) {
	t.Setenv("PROTOGUARD_TEST_BOOL", "1")
	t.Setenv("PROTOGUARD_TEST_INT", "42")
	t.Setenv("PROTOGUARD_TEST_BAD_INT", "forty")
	t.Setenv("PROTOGUARD_TEST_FLOAT", "1e-6")
	t.Setenv("PROTOGUARD_TEST_DURATION", "90s")

	assert.True(t, getEnvBool("PROTOGUARD_TEST_BOOL", false))
	assert.Equal(t, 42, getEnvInt("PROTOGUARD_TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("PROTOGUARD_TEST_BAD_INT", 7))
	assert.InDelta(t, 1e-6, getEnvFloat("PROTOGUARD_TEST_FLOAT", 0), 1e-12)
	assert.Equal(t, 90*time.Second, getEnvDuration("PROTOGUARD_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("PROTOGUARD_TEST_BOOL", time.Second))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Validation.MaxDepth)
	assert.Equal(t, lookup.DefaultSeenBudget, cfg.Validation.UniqueBudgetBytes)
	assert.Equal(t, 1024, cfg.CEL.CacheSize)
	assert.True(t, cfg.Tolerance().IsZero())
	assert.Equal(t, observability.InfoLevel, cfg.LogLevel())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Zero(t, cfg.Server.RateLimit)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protoguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
validation:
  abs_tolerance: 0.001
  max_depth: 16
cel:
  cache_size: 32
observability:
  log_level: debug
server:
  rate_limit: 100
  rate_limit_window: 30s
`), 0o600))

	t.Setenv("PROTOGUARD_MAX_DEPTH", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, lookup.Tolerance{Abs: 0.001}, cfg.Tolerance())
	assert.Equal(t, 8, cfg.Validation.MaxDepth, "env wins over file")
	assert.Equal(t, 32, cfg.CEL.CacheSize)
	assert.Equal(t, observability.DebugLevel, cfg.LogLevel())
	assert.Equal(t, 100, cfg.Server.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Server.RateLimitWindow)
}

func TestLoadConfig_UsesEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protoguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cel:\n  cache_size: 5\n"), 0o600))
	t.Setenv(EnvConfigFile, path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.CEL.CacheSize)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Parse([]byte("validation:\n  max_dept: 3\n"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative tolerance", func(c *Config) { c.Validation.AbsTolerance = -1 }, true},
		{"zero depth", func(c *Config) { c.Validation.MaxDepth = 0 }, true},
		{"zero budget", func(c *Config) { c.Validation.UniqueBudgetBytes = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Validation.BatchConcurrency = 0 }, true},
		{"zero cache", func(c *Config) { c.CEL.CacheSize = 0 }, true},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, true},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, true},
		{"zero validator cache", func(c *Config) { c.Server.ValidatorCacheSize = 0 }, true},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, true},
		{"rate limit without window", func(c *Config) {
			c.Server.RateLimit = 10
			c.Server.RateLimitWindow = 0
		}, true},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTel.Enabled = true
			c.Observability.OTel.Endpoint = ""
		}, true},
		{"otel without service", func(c *Config) {
			c.Observability.OTel.Enabled = true
			c.Observability.OTel.ServiceName = ""
		}, true},
		{"otel sample ratio above one", func(c *Config) {
			c.Observability.OTel.Enabled = true
			c.Observability.OTel.SampleRatio = 1.5
		}, true},
		{"otel sample ratio", func(c *Config) {
			c.Observability.OTel.Enabled = true
			c.Observability.OTel.SampleRatio = 0.1
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
