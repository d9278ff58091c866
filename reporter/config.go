package reporter

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default values applied when fields are absent from the Config.
const (
	DefaultBatchSize    = 10
	DefaultBatchWindow  = 500 * time.Millisecond
	DefaultFlushTimeout = 30 * time.Second
	DefaultCloseTimeout = 5 * time.Second
)

// Config is the programmatic configuration surface of a Reporter.
// CollectorURL and Project are required; everything else has a default.
type Config struct {
	// CollectorURL is the collector base URL, e.g. "https://collector.example.com".
	CollectorURL string

	// Project is the collector project runs are created under.
	Project string

	// APIKey, when non-empty, is attached as a bearer credential to every
	// outbound request.
	APIKey string

	// APIVersion selects the versioned path prefix (default "v1").
	APIVersion string

	// BatchSize is the item count that triggers an immediate batch send.
	BatchSize int

	// BatchWindow is the longest a non-empty batch waits before being sent.
	BatchWindow time.Duration

	// MaxAttempts bounds transmission attempts per request.
	MaxAttempts int

	// InitialBackoff is the first retry delay; it doubles per attempt.
	InitialBackoff time.Duration

	// RequestTimeout bounds each individual HTTP request.
	RequestTimeout time.Duration

	// FlushTimeout bounds Flush and the drain phase of CompleteRun.
	FlushTimeout time.Duration

	// CloseTimeout bounds how long Close waits for the worker to finish
	// its final drain before hard-cancelling in-flight sends.
	CloseTimeout time.Duration

	// Registerer, when non-nil, receives the reporter's self-metrics.
	Registerer prometheus.Registerer
}

// withDefaults validates required fields and fills in defaults.
func (c Config) withDefaults() (Config, error) {
	if c.CollectorURL == "" {
		return c, fmt.Errorf("reporter: CollectorURL is required")
	}
	if c.Project == "" {
		return c, fmt.Errorf("reporter: Project is required")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchWindow <= 0 {
		c.BatchWindow = DefaultBatchWindow
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	return c, nil
}
