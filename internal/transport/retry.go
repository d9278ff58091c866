package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SendWithRetry issues the request with bounded retries and exponential
// backoff. It returns the response body on success and nil once the request
// has been abandoned: after a permanent (4xx) failure, after MaxAttempts
// retryable failures, or when ctx is cancelled during a backoff sleep.
// Failures are logged, never returned; see the package doc.
func (c *Client) SendWithRetry(ctx context.Context, method, path string, body any) []byte {
	var result []byte
	op := func() error {
		out := c.Do(ctx, method, path, body)
		switch out.Kind {
		case Success:
			result = out.Body
			return nil
		case Permanent:
			return backoff.Permanent(out.Err)
		default:
			return out.Err
		}
	}

	notify := func(err error, wait time.Duration) {
		if c.cfg.OnRetry != nil {
			c.cfg.OnRetry()
		}
		slog.Warn("transport: request failed, backing off",
			"method", method, "path", path, "wait", wait, "err", err)
	}

	if err := backoff.RetryNotify(op, c.newBackOff(ctx), notify); err != nil {
		slog.Warn("transport: request abandoned",
			"method", method, "path", path, "max_attempts", c.cfg.MaxAttempts, "err", err)
		return nil
	}
	return result
}

// newBackOff builds the per-request retry schedule: InitialBackoff doubling
// each attempt with no jitter, capped at MaxAttempts total attempts, aborted
// by ctx.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0 // attempts, not elapsed time, bound the loop
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxAttempts-1)), ctx)
}
