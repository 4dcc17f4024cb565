package pathmodel

import "sync/atomic"

// SharedState is the single-writer, many-reader holder for the latest
// published TraceState. The Engine task is the sole writer; any number
// of observers may call Snapshot concurrently without blocking the
// writer or each other.
type SharedState struct {
	v atomic.Pointer[TraceState]
}

// NewSharedState returns a SharedState holding an empty TraceState.
func NewSharedState() *SharedState {
	s := &SharedState{}
	s.v.Store(&TraceState{})
	return s
}

// Snapshot returns the most recently published TraceState. The returned
// value is immutable; callers never see a partially-written snapshot.
func (s *SharedState) Snapshot() *TraceState {
	return s.v.Load()
}

// Publish atomically replaces the held snapshot. Only the Engine calls
// this.
func (s *SharedState) Publish(ts *TraceState) {
	s.v.Store(ts)
}
