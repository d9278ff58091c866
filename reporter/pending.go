package reporter

import (
	"context"
	"sync"

	"github.com/evalrelay/evalrelay/pkg/types"
)

// pendingTracker counts items that have been accepted but whose transmission
// attempt has not yet completed, both globally and per run handle. done is
// called exactly once per entry regardless of transport outcome, so waiters
// observe in-flight batches as well as queued entries.
type pendingTracker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	total  int
	perRun map[types.RunHandle]int
}

func newPendingTracker() *pendingTracker {
	p := &pendingTracker{perRun: make(map[types.RunHandle]int)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pendingTracker) add(h types.RunHandle) {
	p.mu.Lock()
	p.total++
	p.perRun[h]++
	p.mu.Unlock()
}

func (p *pendingTracker) done(h types.RunHandle) {
	p.mu.Lock()
	p.total--
	p.perRun[h]--
	if p.perRun[h] <= 0 {
		delete(p.perRun, h)
	}
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *pendingTracker) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

func (p *pendingTracker) pendingFor(h types.RunHandle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perRun[h]
}

// waitZero blocks until the global pending count reaches zero or ctx ends.
func (p *pendingTracker) waitZero(ctx context.Context) error {
	return p.wait(ctx, func() bool { return p.total == 0 })
}

// waitRunZero blocks until no entry for h is queued or in flight.
func (p *pendingTracker) waitRunZero(ctx context.Context, h types.RunHandle) error {
	return p.wait(ctx, func() bool { return p.perRun[h] == 0 })
}

// wait blocks until satisfied (evaluated under the tracker lock) returns
// true. Context expiry wakes the condition so the wait stays bounded.
func (p *pendingTracker) wait(ctx context.Context, satisfied func() bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	for !satisfied() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.cond.Wait()
	}
	return nil
}
