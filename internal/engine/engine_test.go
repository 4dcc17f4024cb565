package engine

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nraines/tracewatch/pkg/pathmodel"
)

func TestNextWindowGrowsUntilMaxHops(t *testing.T) {
	terminal, window := 0, initialWindow
	terminal, window = nextWindow(0, terminal, window, 30)
	if terminal != 0 || window != initialWindow+windowGrowth {
		t.Fatalf("got terminal=%d window=%d", terminal, window)
	}
	terminal, window = nextWindow(0, terminal, window, 12)
	if terminal != 0 || window != 12 {
		t.Fatalf("expected window clamped to maxHops=12, got %d", window)
	}
}

func TestNextWindowLocksOnTerminalHop(t *testing.T) {
	terminal, window := nextWindow(4, 0, initialWindow, 30)
	if terminal != 4 || window != 4 {
		t.Fatalf("got terminal=%d window=%d", terminal, window)
	}
	// Once locked, a round with no terminal hop (e.g. a transient loss)
	// keeps the prior terminal hop rather than re-growing the window.
	terminal, window = nextWindow(0, terminal, window, 30)
	if terminal != 4 || window != 4 {
		t.Fatalf("expected window to stay locked at 4, got terminal=%d window=%d", terminal, window)
	}
}

func TestRunRespectsCancellationBeforeFirstIteration(t *testing.T) {
	opts := pathmodel.DefaultTraceOpts()
	opts.Target = net.ParseIP("192.0.2.1")
	state := pathmodel.NewSharedState()

	notified := 0
	e := New(opts, state, func() { notified++ })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notified != 0 {
		t.Fatalf("expected no publications after immediate cancellation, got %d", notified)
	}
	if len(state.Snapshot().Iterations) != 0 {
		t.Fatal("expected no iterations published after immediate cancellation")
	}
}

func TestRunStopsWithinOneReceiverTick(t *testing.T) {
	opts := pathmodel.DefaultTraceOpts()
	opts.Target = net.ParseIP("192.0.2.1")
	opts.RxTimeout = 5 * time.Second
	state := pathmodel.NewSharedState()
	e := New(opts, state, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Skipf("raw ICMP socket unavailable in this environment: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop within a reasonable bound after cancellation")
	}
}
