// Package engine implements the per-iteration tracer state machine:
// fire a round of probes across the hop window, drive the receiver
// until the round is done, publish the observed hops, and repeat.
package engine

import (
	"context"
	"log"
	"math/rand"
	"net"
	"time"

	"github.com/nraines/tracewatch/internal/codec"
	"github.com/nraines/tracewatch/internal/probe"
	"github.com/nraines/tracewatch/internal/receiver"
	"github.com/nraines/tracewatch/pkg/pathmodel"
)

// initialWindow and windowGrowth implement the adaptive hop window: an
// iteration only probes hops 1..window, and window grows toward
// opts.MaxHops across rounds until a terminal hop narrows it back down.
const (
	initialWindow = 6
	windowGrowth  = 5

	// postTerminalPause is how long the Engine waits after a round that
	// reached the target, to avoid flooding it with rounds in a tight loop.
	postTerminalPause = 2 * time.Second
)

// Engine runs one trace's probe/receive loop until its context is
// cancelled. Each Engine instance is single-use: construct one per
// begin_trace call.
type Engine struct {
	opts   pathmodel.TraceOpts
	state  *pathmodel.SharedState
	notify func()
	icmpID int
}

// New constructs an Engine that publishes to state and calls notify
// after every publication.
func New(opts pathmodel.TraceOpts, state *pathmodel.SharedState, notify func()) *Engine {
	return &Engine{
		opts:   opts,
		state:  state,
		notify: notify,
		icmpID: rand.Intn(0xffff),
	}
}

// Run drives the iteration loop until ctx is cancelled. It never
// returns an error for transient per-probe failures; only a fatal
// socket-open failure ends the loop early.
func (e *Engine) Run(ctx context.Context) error {
	window := initialWindow
	if window > e.opts.MaxHops {
		window = e.opts.MaxHops
	}
	terminalHop := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		it, err := e.runIteration(ctx, window)
		if err != nil {
			log.Printf("tracewatch: engine: iteration failed, stopping: %v", err)
			return err
		}
		if it == nil {
			// Cancelled mid-iteration: only the round's empty placeholder
			// was published, never its observed hops.
			return nil
		}

		terminalHop, window = nextWindow(it.TerminalHop, terminalHop, window, e.opts.MaxHops)

		if it.TerminalHop > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(postTerminalPause):
			}
		}
	}
}

// nextWindow computes the adaptive hop window for the following round.
// roundTerminalHop is the terminal hop found in the round just
// finished (0 if none); prevTerminalHop is the best terminal hop known
// across all rounds so far. Once any round finds a terminal hop, the
// window locks to it; otherwise the window grows by windowGrowth each
// round up to maxHops.
func nextWindow(roundTerminalHop, prevTerminalHop, window, maxHops int) (newTerminalHop, newWindow int) {
	if roundTerminalHop > 0 {
		return roundTerminalHop, roundTerminalHop
	}
	if prevTerminalHop > 0 {
		return prevTerminalHop, prevTerminalHop
	}
	window += windowGrowth
	if window > maxHops {
		window = maxHops
	}
	return 0, window
}

// runIteration runs exactly one round: publish an empty placeholder
// iteration, fire every probe for the current window concurrently,
// build up the round's hops in a private working copy (never shared
// until it's complete, so nothing reads a half-written Iteration), then
// replace the placeholder with the finished result. Returns nil (no
// error, no result) if ctx was cancelled before the round could be
// published.
func (e *Engine) runIteration(ctx context.Context, window int) (*pathmodel.Iteration, error) {
	startedAt := time.Now()
	e.publishAppend(&pathmodel.Iteration{StartedAt: startedAt})

	it := &pathmodel.Iteration{StartedAt: startedAt}

	for hop := 1; hop <= window; hop++ {
		for attempt := 0; attempt < e.opts.Attempts; attempt++ {
			hop, attempt := hop, attempt
			go func() {
				wireID := codec.WireIdentifier(e.opts.Mode, hop, attempt, e.opts.Attempts)
				if err := probe.Send(e.opts.Target, e.opts.Mode, hop, wireID, e.icmpID, e.opts.TxTimeout); err != nil {
					log.Printf("tracewatch: engine: probe hop=%d attempt=%d: %v", hop, attempt, err)
				}
			}()
		}
	}

	rx, err := receiver.Open(e.opts.Target)
	if err != nil {
		return nil, err
	}
	defer rx.Close()

	isIPv6 := e.opts.IsIPv6()
	deadline := it.StartedAt.Add(e.opts.RxTimeout)
	seenHops := 0

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		default:
		}
		if time.Now().After(deadline) {
			break
		}

		buf, src, err := rx.Recv()
		if err != nil {
			if err == receiver.ErrTimeout {
				continue
			}
			log.Printf("tracewatch: engine: receive error: %v", err)
			continue
		}

		res := codec.ParseInbound(buf, src, e.opts.Target, isIPv6, e.opts.Mode, e.opts.Attempts, e.opts.MaxHops)
		if res == nil {
			continue
		}

		if it.At(res.Hop) == nil {
			seenHops++
		}
		it.Set(res.Hop, &pathmodel.Ping{
			Source:  append(net.IP(nil), src...),
			Latency: time.Since(it.StartedAt),
			MPLS:    res.MPLS,
		})
		if res.IsTerminal && it.TerminalHop == 0 {
			it.TerminalHop = res.Hop
		}

		if seenHops >= window {
			break
		}
		if it.ReadyThroughTerminal() {
			break
		}
	}

	e.publishReplaceLast(it)
	return it, nil
}

func (e *Engine) publishAppend(it *pathmodel.Iteration) {
	e.state.Publish(e.state.Snapshot().WithAppended(it))
	if e.notify != nil {
		e.notify()
	}
}

func (e *Engine) publishReplaceLast(it *pathmodel.Iteration) {
	e.state.Publish(e.state.Snapshot().WithReplacedLast(it))
	if e.notify != nil {
		e.notify()
	}
}
