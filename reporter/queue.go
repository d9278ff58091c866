package reporter

import (
	"sync"

	"github.com/evalrelay/evalrelay/pkg/types"
)

// queuedEntry pairs a run handle with one telemetry item; it is the unit of
// work flowing from caller goroutines to the assembler.
type queuedEntry struct {
	handle types.RunHandle
	item   types.TelemetryItem
}

// queue is an unbounded FIFO safe for concurrent producers and a single
// consumer. push never blocks. The consumer waits on the signal channel,
// which holds at most one pending wakeup; pop operations re-arm it when
// entries remain so no wakeup is ever lost.
type queue struct {
	mu      sync.Mutex
	entries []queuedEntry
	signal  chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

func (q *queue) push(e queuedEntry) {
	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()
	q.wake()
}

// popN removes and returns up to n entries in FIFO order.
func (q *queue) popN(n int) []queuedEntry {
	q.mu.Lock()
	if n > len(q.entries) {
		n = len(q.entries)
	}
	out := make([]queuedEntry, n)
	copy(out, q.entries[:n])
	q.entries = q.entries[n:]
	remaining := len(q.entries)
	q.mu.Unlock()

	if remaining > 0 {
		q.wake()
	}
	return out
}

// popAll removes and returns every queued entry.
func (q *queue) popAll() []queuedEntry {
	q.mu.Lock()
	out := q.entries
	q.entries = nil
	q.mu.Unlock()
	return out
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
