// Package pathmodel defines the data model shared between the tracer
// engine and its observers: trace configuration, a single observed
// response, and the append-only snapshot of discovered hops.
package pathmodel

import (
	"errors"
	"net"
	"time"
)

// PingMode selects the probe family used for one trace.
type PingMode string

const (
	ModeICMP PingMode = "icmp"
	ModeUDP  PingMode = "udp"
	// ModeTCP is reserved. TCP-mode probing is not implemented; a tracer
	// configured with ModeTCP fails fast at Validate/BeginTrace time.
	ModeTCP PingMode = "tcp"
)

// udpBasePort is the historical traceroute UDP base port (33433).
// Outbound UDP probes use udpBasePort + identifier as their destination port.
const udpBasePort = 33433

// UDPBasePort returns the base port identifiers are offset from in UDP mode.
func UDPBasePort() int { return udpBasePort }

// TraceOpts is the user-supplied, immutable-for-the-trace configuration.
type TraceOpts struct {
	// Target is the destination, as a parsed IPv4 or IPv6 address.
	Target net.IP
	// Mode selects the probe family.
	Mode PingMode
	// MaxHops bounds the TTL/hop-limit sweep (1..100).
	MaxHops int
	// Attempts is the number of probes sent per hop per round (>=1).
	Attempts int
	// RxTimeout bounds the receive phase of one iteration.
	RxTimeout time.Duration
	// TxTimeout bounds a single probe send.
	TxTimeout time.Duration
}

// DefaultTraceOpts returns the documented defaults for unset fields.
func DefaultTraceOpts() TraceOpts {
	return TraceOpts{
		Mode:      ModeUDP,
		MaxHops:   30,
		Attempts:  1,
		RxTimeout: 3 * time.Second,
		TxTimeout: 1 * time.Second,
	}
}

// Validate checks the configuration invariants from spec §6/§7.
// A configuration error is raised to the caller of BeginTrace and never
// starts a trace.
func (o TraceOpts) Validate() error {
	if o.Target == nil {
		return errors.New("pathmodel: target is required")
	}
	switch o.Mode {
	case ModeICMP, ModeUDP, ModeTCP:
	default:
		return errors.New("pathmodel: mode must be icmp, udp, or tcp")
	}
	if o.Mode == ModeTCP {
		return errors.New("pathmodel: tcp mode is reserved and not implemented")
	}
	if o.MaxHops < 1 || o.MaxHops > 100 {
		return errors.New("pathmodel: max_hops must be between 1 and 100")
	}
	if o.Attempts < 1 {
		return errors.New("pathmodel: attempts must be at least 1")
	}
	if o.RxTimeout <= 0 {
		return errors.New("pathmodel: rx_timeout must be positive")
	}
	if o.TxTimeout <= 0 {
		return errors.New("pathmodel: tx_timeout must be positive")
	}
	return nil
}

// IsIPv6 reports whether the target is an IPv6 address.
func (o TraceOpts) IsIPv6() bool {
	return o.Target.To4() == nil
}

// Ping is one observed response: a source address and how long it took
// to arrive, measured from the start of the iteration it belongs to.
// A Ping is created once on a successful parse match and never mutated.
type Ping struct {
	Source  net.IP
	Latency time.Duration
	// MPLS carries any RFC 4950 label-stack entries found in the
	// quotation that produced this Ping (optional, UDP/ICMP Time
	// Exceeded only).
	MPLS []MPLSLabel
}

// MPLSLabel is one RFC 4950 MPLS label-stack entry.
type MPLSLabel struct {
	Label uint32
	Exp   uint8
	S     bool
	TTL   uint8
}

// Iteration is one round's sparse, 1-based list of hop slots. Slot h-1
// holds the Ping observed for hop h, or nil if no response has arrived
// yet (or ever will) for that hop in this round.
type Iteration struct {
	Hops []*Ping
	// TerminalHop is the hop at which the target itself replied, or 0
	// if the target has not (yet) been reached this round.
	TerminalHop int
	// StartedAt is when this iteration's probes began firing; every
	// Ping.Latency is measured relative to this instant.
	StartedAt time.Time
}

// Set stores a Ping at 1-based hop index h, extending the slice as
// needed. The first Ping for a given hop wins; later duplicates for the
// same hop within a round are ignored.
func (it *Iteration) Set(h int, p *Ping) {
	if h < 1 {
		return
	}
	for len(it.Hops) < h {
		it.Hops = append(it.Hops, nil)
	}
	if it.Hops[h-1] != nil {
		return
	}
	it.Hops[h-1] = p
}

// At returns the Ping stored at 1-based hop index h, or nil.
func (it *Iteration) At(h int) *Ping {
	if h < 1 || h > len(it.Hops) {
		return nil
	}
	return it.Hops[h-1]
}

// FilledCount returns how many distinct hops have at least one Ping.
func (it *Iteration) FilledCount() int {
	n := 0
	for _, p := range it.Hops {
		if p != nil {
			n++
		}
	}
	return n
}

// ReadyThroughTerminal reports whether every hop up to and including the
// terminal hop has a recorded Ping. Used by the Engine to decide whether
// the receive phase can end early once the target has replied.
func (it *Iteration) ReadyThroughTerminal() bool {
	if it.TerminalHop == 0 {
		return false
	}
	for h := 1; h <= it.TerminalHop; h++ {
		if it.At(h) == nil {
			return false
		}
	}
	return true
}

// TraceState is the append-only, publishable snapshot of one trace: the
// ordered list of rounds observed so far. Only the Engine task writes a
// TraceState; readers always observe a whole, immutable snapshot.
type TraceState struct {
	Iterations []*Iteration
}

// LastIteration returns the most recently appended Iteration, or nil if
// none has been published yet.
func (s *TraceState) LastIteration() *Iteration {
	if s == nil || len(s.Iterations) == 0 {
		return nil
	}
	return s.Iterations[len(s.Iterations)-1]
}

// WithAppended returns a new TraceState with it appended, leaving the
// receiver untouched. TraceState values are never mutated in place once
// published; a publish always swaps in a freshly built value.
func (s *TraceState) WithAppended(it *Iteration) *TraceState {
	var prev []*Iteration
	if s != nil {
		prev = s.Iterations
	}
	next := make([]*Iteration, len(prev)+1)
	copy(next, prev)
	next[len(prev)] = it
	return &TraceState{Iterations: next}
}

// WithReplacedLast returns a new TraceState with its last Iteration
// replaced by it, leaving the receiver untouched. Used to publish a
// round's final hop list without mutating the placeholder Iteration
// published at the round's start (which a reader may still be holding).
// If s has no iterations, it behaves like WithAppended.
func (s *TraceState) WithReplacedLast(it *Iteration) *TraceState {
	if s == nil || len(s.Iterations) == 0 {
		return (*TraceState)(nil).WithAppended(it)
	}
	next := make([]*Iteration, len(s.Iterations))
	copy(next, s.Iterations)
	next[len(next)-1] = it
	return &TraceState{Iterations: next}
}
