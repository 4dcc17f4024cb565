package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nraines/tracewatch/internal/diag"
	"github.com/nraines/tracewatch/internal/display"
	"github.com/nraines/tracewatch/internal/handler"
	"github.com/nraines/tracewatch/internal/mcpserver"
	"github.com/nraines/tracewatch/internal/rawsock"
	"github.com/nraines/tracewatch/internal/watch"
	"github.com/nraines/tracewatch/pkg/pathmodel"
)

// Config holds the parsed CLI configuration.
type Config struct {
	Target    string
	Mode      string
	MaxHops   int
	Attempts  int
	RxTimeout string
	TxTimeout string
	Simple    bool
	ServeMCP  bool
}

var validModes = map[string]bool{
	"icmp": true,
	"udp":  true,
	"tcp":  true,
}

// NewRootCmd creates and returns the root cobra command.
func NewRootCmd() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "tracewatch <target>",
		Short: "Continuously-updating IP path discovery",
		Long: `tracewatch repeatedly traces the path to a destination host,
reporting per-hop source addresses and round-trip latencies as they are
discovered. It can render a live terminal UI, print plain text, or serve
its trace handler as a set of MCP tools for an external observer.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !validModes[cfg.Mode] {
				return fmt.Errorf("invalid mode %q: must be icmp, udp, or tcp", cfg.Mode)
			}
			if !cfg.ServeMCP && len(args) != 1 {
				return fmt.Errorf("a target is required unless --mcp is set")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.ServeMCP {
				return runMCP(cmd, &cfg)
			}
			cfg.Target = args[0]
			return runTrace(cmd, &cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Mode, "mode", "udp", "Probe family: icmp|udp|tcp")
	cmd.Flags().IntVar(&cfg.MaxHops, "max-hops", 30, "Maximum TTL / hop-limit")
	cmd.Flags().IntVar(&cfg.Attempts, "attempts", 1, "Probes per hop per round")
	cmd.Flags().StringVar(&cfg.RxTimeout, "rx-timeout", "3s", "Receive-phase budget per round")
	cmd.Flags().StringVar(&cfg.TxTimeout, "tx-timeout", "1s", "Per-probe send timeout")
	cmd.Flags().BoolVar(&cfg.Simple, "simple", false, "Plain-text output instead of the live TUI")
	cmd.Flags().BoolVar(&cfg.ServeMCP, "mcp", false, "Serve begin_trace/stop_trace/get_state as MCP tools over stdio")

	return cmd
}

func parseOpts(cfg *Config) (pathmodel.TraceOpts, error) {
	target := net.ParseIP(cfg.Target)
	if target == nil {
		return pathmodel.TraceOpts{}, fmt.Errorf("invalid target %q: not an IPv4 or IPv6 literal", cfg.Target)
	}
	rxTimeout, err := time.ParseDuration(cfg.RxTimeout)
	if err != nil {
		return pathmodel.TraceOpts{}, fmt.Errorf("invalid rx-timeout: %w", err)
	}
	txTimeout, err := time.ParseDuration(cfg.TxTimeout)
	if err != nil {
		return pathmodel.TraceOpts{}, fmt.Errorf("invalid tx-timeout: %w", err)
	}

	opts := pathmodel.TraceOpts{
		Target:    target,
		Mode:      pathmodel.PingMode(cfg.Mode),
		MaxHops:   cfg.MaxHops,
		Attempts:  cfg.Attempts,
		RxTimeout: rxTimeout,
		TxTimeout: txTimeout,
	}
	if err := opts.Validate(); err != nil {
		return pathmodel.TraceOpts{}, err
	}
	return opts, nil
}

// runTrace starts a trace and renders it either via the bubbletea TUI
// (interactive terminals) or plain text (piped output or --simple).
func runTrace(cmd *cobra.Command, cfg *Config) error {
	opts, err := parseOpts(cfg)
	if err != nil {
		return err
	}
	if err := rawsock.CheckPrivileges(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	state := pathmodel.NewSharedState()
	cfgWatch := watch.DefaultConfig()
	cfgWatch.LatencyThreshold = 50 * time.Millisecond
	watcher := watch.NewWatcher(cfgWatch)

	interactive := !cfg.Simple && term.IsTerminal(int(os.Stdout.Fd()))

	if interactive {
		return runInteractive(ctx, cancel, opts, state)
	}
	return runPlain(ctx, cancel, opts, state, cmd, watcher)
}

func runInteractive(ctx context.Context, cancel context.CancelFunc, opts pathmodel.TraceOpts, state *pathmodel.SharedState) error {
	var h *handler.Handler
	p, model := display.RunTUI(opts.Target, state, func() {
		h.StopTrace()
		cancel()
	})
	h = handler.New(state, model.Notify(p))

	if err := h.BeginTrace(opts); err != nil {
		return err
	}
	_, err := p.Run()
	return err
}

func runPlain(ctx context.Context, cancel context.CancelFunc, opts pathmodel.TraceOpts, state *pathmodel.SharedState, cmd *cobra.Command, watcher *watch.Watcher) error {
	out := cmd.OutOrStdout()
	obs := display.NewSimpleObserver(opts.Target, state, out)

	var prev *pathmodel.Iteration
	h := handler.New(state, func() {
		obs.Notify()
		snap := state.Snapshot()
		curr := snap.LastIteration()
		if prev != nil && curr != nil && len(curr.Hops) > 0 {
			for _, ch := range watcher.Compare(prev, curr) {
				fmt.Fprintln(out, ch.String())
			}
		}
		if curr != nil && curr.ReadyThroughTerminal() {
			for _, hint := range diag.AnalyzeIteration(curr) {
				fmt.Fprintf(out, "nat hint: hop %d: %s\n", hint.Hop, hint.Reason)
			}
		}
		if curr != nil && len(curr.Hops) > 0 {
			prev = curr
		}
	})

	fmt.Fprintf(out, "tracewatch: tracing %s, %d hops max, %s mode\n", opts.Target, opts.MaxHops, opts.Mode)
	if err := h.BeginTrace(opts); err != nil {
		return err
	}

	<-ctx.Done()
	h.StopTrace()
	return nil
}

// runMCP serves begin_trace/stop_trace/get_state as MCP tools over
// stdio until the process receives an interrupt.
func runMCP(cmd *cobra.Command, cfg *Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	state := pathmodel.NewSharedState()
	h := handler.New(state, nil)
	s := mcpserver.New(h)
	return mcpserver.Serve(ctx, s)
}
