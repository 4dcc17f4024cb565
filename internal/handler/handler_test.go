package handler

import (
	"net"
	"testing"
	"time"

	"github.com/nraines/tracewatch/internal/receiver"
	"github.com/nraines/tracewatch/pkg/pathmodel"
)

// requireRawSocket skips the test when raw ICMP sockets aren't
// available, which the engine needs to make any forward progress at
// all (independent of probe mode).
func requireRawSocket(t *testing.T) {
	t.Helper()
	rx, err := receiver.Open(net.ParseIP("192.0.2.1"))
	if err != nil {
		t.Skipf("raw ICMP socket unavailable in this environment: %v", err)
	}
	rx.Close()
}

func TestBeginTraceRejectsInvalidOpts(t *testing.T) {
	h := New(pathmodel.NewSharedState(), nil)
	err := h.BeginTrace(pathmodel.TraceOpts{})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if h.IsTracing() {
		t.Fatal("expected IsTracing to remain false after a rejected BeginTrace")
	}
}

func TestBeginTraceIsIdempotentUnderError(t *testing.T) {
	requireRawSocket(t)
	h := New(pathmodel.NewSharedState(), nil)
	opts := pathmodel.DefaultTraceOpts()
	opts.Target = net.ParseIP("192.0.2.1")

	if err := h.BeginTrace(opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.IsTracing() {
		t.Fatal("expected IsTracing to be true after BeginTrace")
	}
	if err := h.BeginTrace(opts); err != ErrAlreadyTracing {
		t.Fatalf("expected ErrAlreadyTracing, got %v", err)
	}

	h.StopTrace()
	deadline := time.Now().Add(time.Second)
	for h.IsTracing() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.IsTracing() {
		t.Fatal("expected IsTracing to become false after StopTrace")
	}
}

func TestStopTraceWithoutBeginIsANoOp(t *testing.T) {
	h := New(pathmodel.NewSharedState(), nil)
	h.StopTrace()
	if h.IsTracing() {
		t.Fatal("expected IsTracing to remain false")
	}
}
