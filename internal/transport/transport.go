package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default tunables applied by New when the corresponding Config field is zero.
const (
	DefaultVersion        = "v1"
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultRequestTimeout = 10 * time.Second
)

// Kind classifies the outcome of one request attempt.
type Kind int

const (
	// Success: 2xx response.
	Success Kind = iota
	// Retryable: 5xx response, connection failure, or timeout.
	Retryable
	// Permanent: 4xx response or a request that could not be built.
	Permanent
)

// Outcome is the tagged result of a single request attempt.
type Outcome struct {
	Kind Kind

	// Status is the HTTP status code, or 0 when no response was received.
	Status int

	// Body is the response body; populated on Success.
	Body []byte

	// Err describes the failure for Retryable and Permanent outcomes.
	Err error
}

// Config holds the collector connection settings for a Client.
type Config struct {
	// BaseURL is the collector base URL, e.g. "https://collector.example.com".
	BaseURL string

	// APIKey, when non-empty, is sent as a bearer credential on every request.
	APIKey string

	// Version is the protocol version segment of the path prefix.
	Version string

	// MaxAttempts bounds the total attempts per request in SendWithRetry.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry; it doubles on
	// each subsequent retry.
	InitialBackoff time.Duration

	// RequestTimeout bounds each individual HTTP request.
	RequestTimeout time.Duration

	// OnRetry, when set, is invoked once per retry attempt.
	OnRetry func()
}

// Client performs JSON requests against a collector under a versioned path
// prefix (/api/{version}/...).
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client, filling unset Config fields with defaults.
func New(cfg Config) *Client {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Do issues one request with a JSON-encoded body and classifies the result.
// path is relative to the versioned prefix, e.g. "runs/42/items".
func (c *Client) Do(ctx context.Context, method, path string, body any) Outcome {
	payload, err := json.Marshal(body)
	if err != nil {
		return Outcome{Kind: Permanent, Err: fmt.Errorf("transport: marshal body for %s %s: %w", method, path, err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), bytes.NewReader(payload))
	if err != nil {
		return Outcome{Kind: Permanent, Err: fmt.Errorf("transport: build request %s %s: %w", method, path, err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection failures and timeouts surface here.
		return Outcome{Kind: Retryable, Err: fmt.Errorf("transport: %s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: Retryable, Status: resp.StatusCode, Err: fmt.Errorf("transport: %s %s: read body: %w", method, path, err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Outcome{Kind: Success, Status: resp.StatusCode, Body: data}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Outcome{Kind: Permanent, Status: resp.StatusCode,
			Err: fmt.Errorf("transport: %s %s: collector rejected request: %d %s", method, path, resp.StatusCode, truncate(data))}
	default:
		return Outcome{Kind: Retryable, Status: resp.StatusCode,
			Err: fmt.Errorf("transport: %s %s: collector returned %d", method, path, resp.StatusCode)}
	}
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/api/%s/%s",
		strings.TrimSuffix(c.cfg.BaseURL, "/"),
		c.cfg.Version,
		strings.TrimPrefix(path, "/"))
}

// truncate keeps error messages readable when the collector returns a large
// error body.
func truncate(body []byte) string {
	const max = 256
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
