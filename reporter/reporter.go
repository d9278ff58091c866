package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evalrelay/evalrelay/internal/transport"
	"github.com/evalrelay/evalrelay/pkg/types"
)

// Reporter states. A reporter moves Running → Draining → Stopped exactly
// once; every state transition happens inside Close.
const (
	stateRunning int32 = iota
	stateDraining
	stateStopped
)

// Wire bodies for the collector protocol.
type createRunRequest struct {
	ExperimentName string            `json:"experimentName"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type createRunResponse struct {
	RunID string `json:"runId"`
}

type appendItemsRequest struct {
	Items []types.TelemetryItem `json:"items"`
}

type updateRunRequest struct {
	Status types.RunStatus `json:"status"`
}

// Reporter is an asynchronous telemetry shipping client. All state is owned
// by the instance; multiple reporters can coexist in one process. Create
// with New, stop with Close.
type Reporter struct {
	cfg     Config
	client  *transport.Client
	queue   *queue
	pending *pendingTracker
	metrics *metrics

	state      atomic.Int32
	stopCh     chan struct{}
	done       chan struct{}
	hardCtx    context.Context
	hardCancel context.CancelFunc
	closeOnce  sync.Once
}

// New validates cfg, starts the background assembler worker, and returns the
// reporter. Configuration problems are the only errors a Reporter ever
// returns from construction or operation.
func New(cfg Config) (*Reporter, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	m := newMetrics(cfg.Registerer)
	r := &Reporter{
		cfg:     cfg,
		queue:   newQueue(),
		pending: newPendingTracker(),
		metrics: m,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.client = transport.New(transport.Config{
		BaseURL:        cfg.CollectorURL,
		APIKey:         cfg.APIKey,
		Version:        cfg.APIVersion,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		RequestTimeout: cfg.RequestTimeout,
		OnRetry:        func() { m.retryAttempts.Inc() },
	})
	r.hardCtx, r.hardCancel = context.WithCancel(context.Background())

	go r.run()
	return r, nil
}

// StartRun creates a logical run on the collector and returns its handle.
// It never fails: when the collector is unreachable or answers with garbage,
// a locally synthesized handle is returned so the evaluation can proceed.
// One best-effort request; no retries.
func (r *Reporter) StartRun(ctx context.Context, name string, metadata map[string]string) types.RunHandle {
	path := fmt.Sprintf("projects/%s/runs", url.PathEscape(r.cfg.Project))
	out := r.client.Do(ctx, http.MethodPost, path, createRunRequest{ExperimentName: name, Metadata: metadata})

	if out.Kind == transport.Success {
		var resp createRunResponse
		if err := json.Unmarshal(out.Body, &resp); err == nil && resp.RunID != "" {
			slog.Debug("reporter: run created", "run", name, "handle", resp.RunID)
			return types.RunHandle(resp.RunID)
		}
		slog.Warn("reporter: malformed create-run response, using local handle", "run", name)
	} else {
		slog.Warn("reporter: collector unreachable at run start, using local handle",
			"run", name, "err", out.Err)
	}

	h := types.NewLocalHandle()
	r.metrics.fallbackRuns.Inc()
	return h
}

// ReportItem accepts one telemetry item for the given run. It increments
// the pending counts, enqueues the entry, and returns immediately: it never
// blocks and never fails. Items reported after Close are dropped with a
// warning.
func (r *Reporter) ReportItem(h types.RunHandle, item types.TelemetryItem) {
	if r.state.Load() != stateRunning {
		slog.Warn("reporter: item reported after close, dropping", "handle", h)
		return
	}
	r.pending.add(h)
	r.metrics.itemsSubmitted.Inc()
	r.queue.push(queuedEntry{handle: h, item: item})
}

// Flush blocks until every previously accepted item has been transmitted or
// explicitly abandoned, bounded by ctx and FlushTimeout. A deadline expiry
// is the only error it returns.
func (r *Reporter) Flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FlushTimeout)
	defer cancel()

	if err := r.pending.waitZero(ctx); err != nil {
		slog.Warn("reporter: flush deadline elapsed with items still pending",
			"pending", r.pending.pending())
		return fmt.Errorf("reporter: flush: %w", err)
	}
	return nil
}

// CompleteRun marks the run terminal on the collector. It first waits,
// bounded by ctx and FlushTimeout, until no entry for this handle is queued
// or in flight, then issues the status PATCH. If the drain wait times out,
// the PATCH is not sent and the deadline error is returned.
func (r *Reporter) CompleteRun(ctx context.Context, h types.RunHandle, status types.RunStatus) error {
	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.FlushTimeout)
	defer cancel()

	if err := r.pending.waitRunZero(waitCtx, h); err != nil {
		slog.Warn("reporter: run still has pending items, not marking complete",
			"handle", h, "pending", r.pending.pendingFor(h))
		return fmt.Errorf("reporter: complete run %s: %w", h, err)
	}

	path := "runs/" + url.PathEscape(string(h))
	r.client.SendWithRetry(ctx, http.MethodPatch, path, updateRunRequest{Status: status})
	return nil
}

// Close signals the assembler to stop and waits (bounded by CloseTimeout)
// for its final drain; remaining queue contents are sent, not abandoned.
// Past the bound, in-flight sends are hard-cancelled and accounted as
// dropped. A final Flush verifies the pending count reached zero. Close is
// idempotent and safe to call more than once.
func (r *Reporter) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.state.Store(stateDraining)
		close(r.stopCh)

		select {
		case <-r.done:
		case <-time.After(r.cfg.CloseTimeout):
			slog.Warn("reporter: worker still draining past close timeout, cancelling in-flight sends")
			r.hardCancel()
			<-r.done
		}

		err = r.Flush(ctx)
		r.hardCancel()
		r.state.Store(stateStopped)
		slog.Debug("reporter: stopped")
	})
	return err
}
