// Package handler is the external facade over one tracer session: it
// owns the shared state handle, starts and stops the engine task, and
// carries the change-notification callback observers subscribe to.
package handler

import (
	"context"
	"errors"
	"sync"

	"github.com/nraines/tracewatch/internal/engine"
	"github.com/nraines/tracewatch/pkg/pathmodel"
)

// ErrAlreadyTracing is returned by BeginTrace when a trace is already
// running; per the facade's idempotent-under-error contract, this is a
// no-op rather than a hard failure the caller must unwind.
var ErrAlreadyTracing = errors.New("handler: a trace is already running")

// Handler is the Idle/Running facade a UI or MCP tool holds. The zero
// value is not usable; construct with New.
type Handler struct {
	state  *pathmodel.SharedState
	notify func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	tracing bool
}

// New constructs a Handler bound to state, invoking notify after every
// publication made by a trace it starts.
func New(state *pathmodel.SharedState, notify func()) *Handler {
	return &Handler{state: state, notify: notify}
}

// State returns the shared state handle observers read from.
func (h *Handler) State() *pathmodel.SharedState {
	return h.state
}

// IsTracing reports whether a trace is currently running.
func (h *Handler) IsTracing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracing
}

// BeginTrace validates opts and, if no trace is already running, spawns
// the engine task. It returns ErrAlreadyTracing (not a fatal error) if
// called while already tracing.
func (h *Handler) BeginTrace(opts pathmodel.TraceOpts) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	if h.tracing {
		h.mu.Unlock()
		return ErrAlreadyTracing
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.tracing = true
	h.mu.Unlock()

	e := engine.New(opts, h.state, h.notify)
	go func() {
		_ = e.Run(ctx)
		h.mu.Lock()
		h.tracing = false
		h.cancel = nil
		h.mu.Unlock()
	}()
	return nil
}

// StopTrace sets the cancellation flag and signals the engine task to
// stop. It's a no-op if no trace is running. StopTrace does not block
// until the engine task has fully exited; IsTracing reports false as
// soon as StopTrace returns, whether or not the task has exited yet.
func (h *Handler) StopTrace() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
	h.tracing = false
}
