// Package transport speaks the collector's JSON-over-HTTP protocol.
//
// Client.Do issues a single request and classifies the result as Success,
// Retryable (5xx, connection failure, timeout) or Permanent (4xx). The
// classification is a tagged Outcome value so the retry policy can be tested
// in isolation from HTTP plumbing.
//
// Client.SendWithRetry wraps Do with bounded exponential backoff
// (cenkalti/backoff): permanent failures abort after one attempt, retryable
// failures back off with strictly doubling delays until the attempt cap,
// and context cancellation interrupts any backoff sleep immediately.
// Persistent failure yields nil, never an error: a reporting failure must
// never fail the evaluation run that produced the telemetry.
//
// When an API key is configured every request carries
// "Authorization: Bearer <key>".
package transport
