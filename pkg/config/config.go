package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/observability"
)

// EnvConfigFile names the environment variable holding an optional YAML
// config file path
const EnvConfigFile = "PROTOGUARD_CONFIG"

// Config holds all application configuration
type Config struct {
	// Validation engine configuration
	Validation ValidationConfig `yaml:"validation"`

	// CEL engine configuration
	CEL CELConfig `yaml:"cel"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	// Validation service configuration
	Server ServerConfig `yaml:"server"`
}

// ValidationConfig holds validator defaults
type ValidationConfig struct {
	// Float equality tolerances
	AbsTolerance float64 `yaml:"abs_tolerance"`
	RelTolerance float64 `yaml:"rel_tolerance"`

	// MaxDepth bounds message recursion
	MaxDepth int `yaml:"max_depth"`

	// UniqueBudgetBytes caps the memory of a uniqueness check
	UniqueBudgetBytes int `yaml:"unique_budget_bytes"`

	// BatchConcurrency bounds the goroutines of a batch validation
	BatchConcurrency int `yaml:"batch_concurrency"`
}

// CELConfig holds CEL engine settings
type CELConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`

	// OpenTelemetry
	OTel observability.OTelConfig `yaml:"otel"`
}

// ServerConfig holds settings of the validation service
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`

	// ValidatorCacheSize bounds the number of cached validators
	ValidatorCacheSize int `yaml:"validator_cache_size"`

	// RateLimit is the number of requests a client may make per window;
	// zero disables rate limiting
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`

	// RedisAddr switches rate limiting to a Redis-backed counter shared by
	// every instance
	RedisAddr string `yaml:"redis_addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Validation: ValidationConfig{
			MaxDepth:          64,
			UniqueBudgetBytes: lookup.DefaultSeenBudget,
			BatchConcurrency:  8,
		},
		CEL: CELConfig{
			CacheSize: 1024,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: false,
			OTel: observability.OTelConfig{
				Enabled:        false,
				Endpoint:       "localhost:4317",
				ServiceName:    "protoguard",
				ServiceVersion: "1.0.0",
				Insecure:       true,
			},
		},
		Server: ServerConfig{
			Addr:               ":8080",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			MaxBodyBytes:       4 << 20,
			ValidatorCacheSize: 256,
			RateLimitWindow:    time.Minute,
		},
	}
}

// LoadConfig loads configuration from the file named by PROTOGUARD_CONFIG,
// if any, then applies environment overrides
func LoadConfig() (*Config, error) {
	return Load(getEnv(EnvConfigFile, ""))
}

// Load reads the YAML file at path (skipped when empty), applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML data over the defaults without consulting the
// environment
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides fields whose environment variable is set
func (c *Config) applyEnv() {
	c.Validation.AbsTolerance = getEnvFloat("PROTOGUARD_ABS_TOLERANCE", c.Validation.AbsTolerance)
	c.Validation.RelTolerance = getEnvFloat("PROTOGUARD_REL_TOLERANCE", c.Validation.RelTolerance)
	c.Validation.MaxDepth = getEnvInt("PROTOGUARD_MAX_DEPTH", c.Validation.MaxDepth)
	c.Validation.UniqueBudgetBytes = getEnvInt("PROTOGUARD_UNIQUE_BUDGET_BYTES", c.Validation.UniqueBudgetBytes)
	c.Validation.BatchConcurrency = getEnvInt("PROTOGUARD_BATCH_CONCURRENCY", c.Validation.BatchConcurrency)

	c.CEL.CacheSize = getEnvInt("PROTOGUARD_CEL_CACHE_SIZE", c.CEL.CacheSize)

	c.Observability.LogLevel = getEnv("PROTOGUARD_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("PROTOGUARD_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.MetricsAddr = getEnv("PROTOGUARD_METRICS_ADDR", c.Observability.MetricsAddr)
	c.Observability.OTel.Enabled = getEnvBool("PROTOGUARD_OTEL_ENABLED", c.Observability.OTel.Enabled)
	c.Observability.OTel.Endpoint = getEnv("PROTOGUARD_OTEL_ENDPOINT", c.Observability.OTel.Endpoint)
	c.Observability.OTel.ServiceName = getEnv("PROTOGUARD_OTEL_SERVICE_NAME", c.Observability.OTel.ServiceName)
	c.Observability.OTel.ServiceVersion = getEnv("PROTOGUARD_OTEL_SERVICE_VERSION", c.Observability.OTel.ServiceVersion)
	c.Observability.OTel.Insecure = getEnvBool("PROTOGUARD_OTEL_INSECURE", c.Observability.OTel.Insecure)
	c.Observability.OTel.SampleRatio = getEnvFloat("PROTOGUARD_OTEL_SAMPLE_RATIO", c.Observability.OTel.SampleRatio)

	c.Server.Addr = getEnv("PROTOGUARD_SERVER_ADDR", c.Server.Addr)
	c.Server.ReadTimeout = getEnvDuration("PROTOGUARD_SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("PROTOGUARD_SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.RateLimit = getEnvInt("PROTOGUARD_RATE_LIMIT", c.Server.RateLimit)
	c.Server.RateLimitWindow = getEnvDuration("PROTOGUARD_RATE_LIMIT_WINDOW", c.Server.RateLimitWindow)
	c.Server.RedisAddr = getEnv("PROTOGUARD_REDIS_ADDR", c.Server.RedisAddr)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Validation.AbsTolerance < 0 || c.Validation.RelTolerance < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	if c.Validation.MaxDepth <= 0 {
		return fmt.Errorf("max depth must be positive, got %d", c.Validation.MaxDepth)
	}
	if c.Validation.UniqueBudgetBytes <= 0 {
		return fmt.Errorf("unique budget must be positive, got %d", c.Validation.UniqueBudgetBytes)
	}
	if c.Validation.BatchConcurrency <= 0 {
		return fmt.Errorf("batch concurrency must be positive, got %d", c.Validation.BatchConcurrency)
	}
	if c.CEL.CacheSize <= 0 {
		return fmt.Errorf("CEL cache size must be positive, got %d", c.CEL.CacheSize)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.ValidatorCacheSize <= 0 {
		return fmt.Errorf("validator cache size must be positive, got %d", c.Server.ValidatorCacheSize)
	}
	if c.Server.RateLimit < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive when rate limiting is enabled")
	}
	if _, err := observability.ParseLevel(c.Observability.LogLevel); err != nil {
		return err
	}
	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTel.SampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1], got %g", r)
		}
	}
	return nil
}

// Tolerance returns the configured float tolerance
func (c *Config) Tolerance() lookup.Tolerance {
	return lookup.Tolerance{Abs: c.Validation.AbsTolerance, Rel: c.Validation.RelTolerance}
}

// LogLevel returns the parsed log level, defaulting to info
func (c *Config) LogLevel() observability.LogLevel {
	level, err := observability.ParseLevel(c.Observability.LogLevel)
	if err != nil {
		return observability.InfoLevel
	}
	return level
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
