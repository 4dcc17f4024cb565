// Package display provides observers over a trace's published state: a
// plain-text renderer for non-interactive terminals and a bubbletea TUI
// for interactive ones. Both are driven exclusively through the
// handler's change-notification callback and read-only snapshot
// surface (spec.md §6's Observer contract); neither calls back into
// the handler's BeginTrace/StopTrace from inside a notify callback,
// except StopTrace from the TUI's own key handling, which runs on the
// bubbletea event loop, not from inside Notify itself.
package display

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/nraines/tracewatch/pkg/pathmodel"
)

// SimpleRenderer renders one Iteration in traditional traceroute text
// format, one line per hop.
type SimpleRenderer struct {
	Out io.Writer
}

// NewSimpleRenderer creates a new SimpleRenderer writing to w.
func NewSimpleRenderer(w io.Writer) *SimpleRenderer {
	return &SimpleRenderer{Out: w}
}

// FormatRTT formats a duration as milliseconds.
func (r *SimpleRenderer) FormatRTT(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

// RenderHop renders a single hop as a text line. hop is the 1-based
// hop index; p is nil for a hop with no response this round.
func (r *SimpleRenderer) RenderHop(hop int, p *pathmodel.Ping) string {
	if p == nil {
		return fmt.Sprintf("%2d  *", hop)
	}
	parts := []string{
		fmt.Sprintf("%2d", hop),
		p.Source.String(),
		r.FormatRTT(p.Latency),
	}
	for _, label := range p.MPLS {
		parts = append(parts, fmt.Sprintf("[MPLS: label=%d exp=%d ttl=%d]", label.Label, label.Exp, label.TTL))
	}
	return strings.Join(parts, "  ")
}

// RenderIteration writes one full round to the writer.
func (r *SimpleRenderer) RenderIteration(target net.IP, it *pathmodel.Iteration) {
	if it == nil {
		return
	}
	for h := 1; h <= len(it.Hops); h++ {
		fmt.Fprintln(r.Out, r.RenderHop(h, it.At(h)))
	}
	if it.TerminalHop > 0 {
		fmt.Fprintf(r.Out, "reached %s in %d hops\n", target, it.TerminalHop)
	}
}

// SimpleObserver is a plain-text observer suitable for non-interactive
// terminals or piped output. It tracks how many rounds it has already
// printed and, on each Notify, prints every round that has become
// final since the last call (a round becomes final once the Engine
// appends the next one; the in-flight round is never printed
// mid-flight, since its hop slots are still being filled in).
type SimpleObserver struct {
	target net.IP
	state  *pathmodel.SharedState
	render *SimpleRenderer
	last   int
}

// NewSimpleObserver constructs a SimpleObserver rendering snapshots of
// state to w.
func NewSimpleObserver(target net.IP, state *pathmodel.SharedState, w io.Writer) *SimpleObserver {
	return &SimpleObserver{target: target, state: state, render: NewSimpleRenderer(w)}
}

// Notify is the handler's change-notification callback. The Engine
// invokes notify callbacks synchronously, one at a time, from its own
// task, so Notify needs no locking of its own.
func (o *SimpleObserver) Notify() {
	snap := o.state.Snapshot()
	for o.last < len(snap.Iterations)-1 {
		fmt.Fprintf(o.render.Out, "--- round %d ---\n", o.last+1)
		o.render.RenderIteration(o.target, snap.Iterations[o.last])
		o.last++
	}
}
