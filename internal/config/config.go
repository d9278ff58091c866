package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by FromEnv / applyEnv.
const (
	EnvCollectorURL = "EVALRELAY_COLLECTOR_URL"
	EnvProject      = "EVALRELAY_PROJECT"
	EnvAPIKey       = "EVALRELAY_API_KEY"
	EnvAPIVersion   = "EVALRELAY_API_VERSION"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultAPIVersion     = "v1"
	DefaultBatchSize      = 10
	DefaultBatchWindow    = 500 * time.Millisecond
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultFlushTimeout   = 30 * time.Second
)

// Config is the top-level evalrelay configuration.
type Config struct {
	Collector CollectorConfig `yaml:"collector"`
	Reporting ReportingConfig `yaml:"reporting"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// CollectorConfig identifies the collector and how to authenticate to it.
type CollectorConfig struct {
	// URL is the collector base URL (scheme + host, no path).
	URL string `yaml:"url"`

	// Project is the collector project runs are created under.
	Project string `yaml:"project"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never appears in the config file.
	APIKeyEnv string `yaml:"api_key_env"`

	// Version is the wire protocol version segment.
	Version string `yaml:"version"`
}

// APIKey returns the credential resolved from the environment. It prefers
// the variable named by APIKeyEnv and falls back to EVALRELAY_API_KEY.
func (c CollectorConfig) APIKey() string {
	if c.APIKeyEnv != "" {
		if v := os.Getenv(c.APIKeyEnv); v != "" {
			return v
		}
	}
	return os.Getenv(EnvAPIKey)
}

// ReportingConfig holds batching and retry tunables.
type ReportingConfig struct {
	// BatchSize is the item count that triggers an immediate batch send.
	BatchSize int `yaml:"batch_size"`

	// BatchWindow is the longest a non-empty batch waits before sending.
	BatchWindow time.Duration `yaml:"batch_window"`

	// MaxAttempts bounds transmission attempts per request.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the first retry delay; it doubles per attempt.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// FlushTimeout bounds Flush and the drain phase of CompleteRun.
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// MetricsConfig configures the optional Prometheus endpoint of the CLI.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, e.g. ":9090". Empty
	// disables the endpoint.
	Addr string `yaml:"addr"`
}

// Load reads and parses the YAML config file at path, overlays environment
// variables, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a config from defaults and environment variables alone,
// for running without a config file.
func FromEnv() (*Config, error) {
	cfg := defaults()
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Collector: CollectorConfig{
			Version: DefaultAPIVersion,
		},
		Reporting: ReportingConfig{
			BatchSize:      DefaultBatchSize,
			BatchWindow:    DefaultBatchWindow,
			MaxAttempts:    DefaultMaxAttempts,
			InitialBackoff: DefaultInitialBackoff,
			FlushTimeout:   DefaultFlushTimeout,
		},
	}
}

// applyEnv overlays recognized environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvCollectorURL); v != "" {
		cfg.Collector.URL = v
	}
	if v := os.Getenv(EnvProject); v != "" {
		cfg.Collector.Project = v
	}
	if v := os.Getenv(EnvAPIVersion); v != "" {
		cfg.Collector.Version = v
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Collector.URL == "" {
		return fmt.Errorf("collector.url is required (or set %s)", EnvCollectorURL)
	}
	if cfg.Collector.Project == "" {
		return fmt.Errorf("collector.project is required (or set %s)", EnvProject)
	}
	if cfg.Reporting.BatchSize <= 0 {
		return fmt.Errorf("reporting.batch_size must be positive")
	}
	if cfg.Reporting.BatchWindow <= 0 {
		return fmt.Errorf("reporting.batch_window must be positive")
	}
	if cfg.Reporting.MaxAttempts <= 0 {
		return fmt.Errorf("reporting.max_attempts must be positive")
	}
	return nil
}
