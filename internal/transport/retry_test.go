package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// flakyCollector fails the first failN requests with failStatus, then
// succeeds. It records the arrival time of every attempt.
type flakyCollector struct {
	mu         sync.Mutex
	failN      int
	failStatus int
	arrivals   []time.Time
}

func (fc *flakyCollector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	fc.arrivals = append(fc.arrivals, time.Now())
	fail := len(fc.arrivals) <= fc.failN
	fc.mu.Unlock()

	if fail {
		w.WriteHeader(fc.failStatus)
		return
	}
	w.Write([]byte(`{"ok":true}`))
}

func (fc *flakyCollector) attempts() []time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	out := make([]time.Time, len(fc.arrivals))
	copy(out, fc.arrivals)
	return out
}

func TestSendWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	fc := &flakyCollector{failN: 2, failStatus: http.StatusInternalServerError}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)

	var retries int
	c := New(Config{
		BaseURL:        srv.URL,
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Millisecond,
		OnRetry:        func() { retries++ },
	})

	body := c.SendWithRetry(context.Background(), http.MethodPost, "runs/r/items", nil)
	if body == nil {
		t.Fatal("SendWithRetry returned nil, want body after recovery")
	}
	if got := len(fc.attempts()); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if retries != 2 {
		t.Errorf("retry notifications = %d, want 2", retries)
	}
}

func TestSendWithRetry_ExhaustsAttemptsWithDoublingDelays(t *testing.T) {
	fc := &flakyCollector{failN: 100, failStatus: http.StatusBadGateway}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)

	const initial = 20 * time.Millisecond
	c := New(Config{BaseURL: srv.URL, MaxAttempts: 3, InitialBackoff: initial})

	start := time.Now()
	body := c.SendWithRetry(context.Background(), http.MethodPost, "runs/r/items", nil)
	elapsed := time.Since(start)

	if body != nil {
		t.Errorf("SendWithRetry = %q, want nil after exhausting retries", body)
	}
	attempts := fc.attempts()
	if len(attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(attempts))
	}

	// Delays are initial, then 2*initial, so the whole exchange takes at
	// least 3*initial, and the second gap exceeds the first.
	if elapsed < 3*initial {
		t.Errorf("elapsed %v, want >= %v (initial + doubled delay)", elapsed, 3*initial)
	}
	gap1 := attempts[1].Sub(attempts[0])
	gap2 := attempts[2].Sub(attempts[1])
	if gap2 <= gap1 {
		t.Errorf("delays not increasing: gap1=%v gap2=%v", gap1, gap2)
	}
}

func TestSendWithRetry_ClientErrorIsNotRetried(t *testing.T) {
	fc := &flakyCollector{failN: 100, failStatus: http.StatusUnprocessableEntity}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL, MaxAttempts: 3, InitialBackoff: 10 * time.Millisecond})

	body := c.SendWithRetry(context.Background(), http.MethodPost, "runs/r/items", nil)
	if body != nil {
		t.Error("SendWithRetry returned a body for a rejected request")
	}
	if got := len(fc.attempts()); got != 1 {
		t.Errorf("attempts = %d, want exactly 1 for a 4xx", got)
	}
}

func TestSendWithRetry_CancelledDuringBackoff(t *testing.T) {
	fc := &flakyCollector{failN: 100, failStatus: http.StatusInternalServerError}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL, MaxAttempts: 3, InitialBackoff: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond) // let the first attempt fail
		cancel()
	}()

	start := time.Now()
	body := c.SendWithRetry(ctx, http.MethodPost, "runs/r/items", nil)
	elapsed := time.Since(start)

	if body != nil {
		t.Error("SendWithRetry returned a body after cancellation")
	}
	if elapsed > 2*time.Second {
		t.Errorf("cancellation did not interrupt backoff sleep: took %v", elapsed)
	}
}
