package reporter

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// run is the assembler loop, executed by exactly one goroutine per reporter.
// It accumulates queued entries into a batch and transmits when the batch
// reaches BatchSize or the batch window elapses. The window starts when the
// first entry of a batch arrives. On stop it drains whatever is immediately
// available and sends it before returning, so no accepted item is abandoned
// in the queue.
func (r *Reporter) run() {
	defer close(r.done)

	var batch []queuedEntry

	window := time.NewTimer(r.cfg.BatchWindow)
	if !window.Stop() {
		<-window.C
	}
	defer window.Stop()

	// stopWindow halts the timer and clears a pending fire. Safe here
	// because this goroutine is the only reader of window.C.
	stopWindow := func() {
		if !window.Stop() {
			select {
			case <-window.C:
			default:
			}
		}
	}

	for {
		select {
		case <-r.stopCh:
			batch = append(batch, r.queue.popAll()...)
			if len(batch) > 0 {
				slog.Debug("reporter: final drain", "items", len(batch))
				r.sendBatch(batch)
			}
			return

		case <-r.queue.signal:
			entries := r.queue.popN(r.cfg.BatchSize - len(batch))
			if len(entries) > 0 && len(batch) == 0 {
				window.Reset(r.cfg.BatchWindow)
			}
			batch = append(batch, entries...)
			if len(batch) >= r.cfg.BatchSize {
				stopWindow()
				r.sendBatch(batch)
				batch = nil
			}

		case <-window.C:
			if len(batch) > 0 {
				r.sendBatch(batch)
				batch = nil
			}
		}
	}
}

// sendBatch partitions the batch by run and issues one append-items request
// per run, sequentially. Every entry's pending count is decremented exactly
// once after its group's transmission attempt completes, success or not.
func (r *Reporter) sendBatch(batch []queuedEntry) {
	for _, g := range groupByRun(batch) {
		path := "runs/" + url.PathEscape(string(g.handle)) + "/items"
		body := r.client.SendWithRetry(r.hardCtx, http.MethodPost, path, appendItemsRequest{Items: g.items})

		if body == nil {
			r.metrics.itemsDropped.Add(float64(len(g.items)))
			slog.Warn("reporter: giving up on batch for run",
				"handle", g.handle, "items", len(g.items))
		} else {
			r.metrics.itemsSent.Add(float64(len(g.items)))
			slog.Debug("reporter: batch delivered", "handle", g.handle, "items", len(g.items))
		}
		r.metrics.batchesSent.Inc()

		for range g.items {
			r.pending.done(g.handle)
		}
	}
}
