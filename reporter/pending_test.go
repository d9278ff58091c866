package reporter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evalrelay/evalrelay/pkg/types"
)

func TestPending_CountsPerRunAndTotal(t *testing.T) {
	p := newPendingTracker()
	a, b := types.RunHandle("a"), types.RunHandle("b")

	p.add(a)
	p.add(a)
	p.add(b)

	if got := p.pending(); got != 3 {
		t.Errorf("pending = %d, want 3", got)
	}
	if got := p.pendingFor(a); got != 2 {
		t.Errorf("pendingFor(a) = %d, want 2", got)
	}

	p.done(a)
	p.done(b)
	if got := p.pending(); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
	if got := p.pendingFor(b); got != 0 {
		t.Errorf("pendingFor(b) = %d, want 0", got)
	}
}

func TestPending_WaitZeroReturnsImmediatelyWhenEmpty(t *testing.T) {
	p := newPendingTracker()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.waitZero(ctx); err != nil {
		t.Errorf("waitZero on empty tracker: %v", err)
	}
}

func TestPending_WaitZeroUnblocksOnLastDone(t *testing.T) {
	p := newPendingTracker()
	h := types.RunHandle("r")
	p.add(h)
	p.add(h)

	released := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		released <- p.waitZero(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	p.done(h)

	select {
	case <-released:
		t.Fatal("waitZero returned while one item was still pending")
	case <-time.After(50 * time.Millisecond):
	}

	p.done(h)
	select {
	case err := <-released:
		if err != nil {
			t.Errorf("waitZero: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waitZero did not unblock after the last done")
	}
}

func TestPending_WaitZeroHonorsDeadline(t *testing.T) {
	p := newPendingTracker()
	p.add(types.RunHandle("stuck"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.waitZero(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waitZero = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("waitZero overshot its deadline")
	}
}

func TestPending_WaitRunZeroIgnoresOtherRuns(t *testing.T) {
	p := newPendingTracker()
	busy, idle := types.RunHandle("busy"), types.RunHandle("idle")
	p.add(busy)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.waitRunZero(ctx, idle); err != nil {
		t.Errorf("waitRunZero(idle) blocked on another run: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if err := p.waitRunZero(ctx2, busy); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waitRunZero(busy) = %v, want deadline exceeded", err)
	}
}
