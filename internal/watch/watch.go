// Package watch detects route, latency, and MPLS changes between
// consecutive iterations of a published TraceState. It never mutates
// the state it reads; it's a passive observer of the Engine's output.
package watch

import (
	"fmt"
	"time"

	"github.com/nraines/tracewatch/pkg/pathmodel"
)

// ChangeType classifies a detected difference between two rounds.
type ChangeType string

const (
	ChangeRoute   ChangeType = "route"
	ChangeLatency ChangeType = "latency"
	ChangeMPLS    ChangeType = "mpls"
)

// Change is one detected difference at a specific hop between two
// consecutive Iterations.
type Change struct {
	Type    ChangeType
	Hop     int
	Message string
}

// String formats the change for a plain-text observer.
func (c Change) String() string {
	return fmt.Sprintf("[%s] hop %d: %s", c.Type, c.Hop, c.Message)
}

// Config tunes which classes of change are reported.
type Config struct {
	// LatencyThreshold reports a latency change only when the new
	// latency exceeds both the old latency and this threshold. Zero
	// disables latency change detection.
	LatencyThreshold time.Duration
	AlertOnRoute     bool
	AlertOnMPLS      bool
}

// DefaultConfig enables route and MPLS change detection with no
// latency threshold.
func DefaultConfig() Config {
	return Config{AlertOnRoute: true, AlertOnMPLS: true}
}

// Watcher compares each newly published Iteration against the one
// before it.
type Watcher struct {
	cfg Config
}

// NewWatcher constructs a Watcher with the given configuration.
func NewWatcher(cfg Config) *Watcher {
	return &Watcher{cfg: cfg}
}

// Compare returns every change between prev and curr, the two most
// recent Iterations of a TraceState. prev may be nil (first round),
// in which case no changes are reported.
func (w *Watcher) Compare(prev, curr *pathmodel.Iteration) []Change {
	if prev == nil || curr == nil {
		return nil
	}

	maxHops := len(prev.Hops)
	if len(curr.Hops) > maxHops {
		maxHops = len(curr.Hops)
	}

	var changes []Change
	for h := 1; h <= maxHops; h++ {
		changes = append(changes, w.compareHop(h, prev.At(h), curr.At(h))...)
	}
	return changes
}

func (w *Watcher) compareHop(hop int, prev, curr *pathmodel.Ping) []Change {
	switch {
	case (prev == nil || curr == nil) && !w.cfg.AlertOnRoute:
		return nil
	case prev == nil && curr != nil:
		return []Change{{Type: ChangeRoute, Hop: hop, Message: fmt.Sprintf("new hop appeared: %s", curr.Source)}}
	case prev != nil && curr == nil:
		return []Change{{Type: ChangeRoute, Hop: hop, Message: fmt.Sprintf("hop disappeared: %s", prev.Source)}}
	case prev == nil && curr == nil:
		return nil
	}

	var changes []Change
	if w.cfg.AlertOnRoute && !prev.Source.Equal(curr.Source) {
		changes = append(changes, Change{
			Type:    ChangeRoute,
			Hop:     hop,
			Message: fmt.Sprintf("address changed from %s to %s", prev.Source, curr.Source),
		})
	}
	if w.cfg.LatencyThreshold > 0 && curr.Latency > w.cfg.LatencyThreshold && curr.Latency > prev.Latency {
		changes = append(changes, Change{
			Type:    ChangeLatency,
			Hop:     hop,
			Message: fmt.Sprintf("latency increased from %s to %s", prev.Latency, curr.Latency),
		})
	}
	if w.cfg.AlertOnMPLS && !mplsEqual(prev.MPLS, curr.MPLS) {
		changes = append(changes, Change{Type: ChangeMPLS, Hop: hop, Message: "MPLS label stack changed"})
	}
	return changes
}

func mplsEqual(a, b []pathmodel.MPLSLabel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Label != b[i].Label || a[i].TTL != b[i].TTL {
			return false
		}
	}
	return true
}
