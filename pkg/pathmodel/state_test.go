package pathmodel

import (
	"sync"
	"testing"
)

func TestSharedStatePublishSnapshot(t *testing.T) {
	s := NewSharedState()
	if got := s.Snapshot(); len(got.Iterations) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d iterations", len(got.Iterations))
	}

	published := s.Snapshot().WithAppended(&Iteration{TerminalHop: 2})
	s.Publish(published)

	if got := s.Snapshot(); len(got.Iterations) != 1 {
		t.Fatalf("expected 1 iteration after publish, got %d", len(got.Iterations))
	}
}

func TestSharedStateConcurrentReaders(t *testing.T) {
	s := NewSharedState()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	for i := 0; i < 5; i++ {
		s.Publish(s.Snapshot().WithAppended(&Iteration{}))
	}
	wg.Wait()
}
