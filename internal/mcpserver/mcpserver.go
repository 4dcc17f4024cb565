// Package mcpserver exposes the tracer's Handler Facade as MCP tools,
// so an MCP-speaking client (e.g. an editor agent or the map UI's
// automation layer) can drive a trace the same way a human observer
// would: begin_trace, stop_trace, get_state. This is the one consumer
// in tracewatch of github.com/mark3labs/mcp-go, a dependency the
// teacher's go.mod carries but never imports from any package.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nraines/tracewatch/internal/handler"
	"github.com/nraines/tracewatch/pkg/pathmodel"
)

const (
	serverName    = "tracewatch"
	serverVersion = "0.1.0"
)

// New builds an MCP server wrapping h: begin_trace starts a new trace
// (no-op with a note if one is already running, per the facade's
// idempotent-under-error contract), stop_trace cancels it, and
// get_state returns the latest published TraceState as JSON.
func New(h *handler.Handler) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion)

	s.AddTool(beginTraceTool(), beginTraceHandler(h))
	s.AddTool(stopTraceTool(), stopTraceHandler(h))
	s.AddTool(getStateTool(), getStateHandler(h))

	return s
}

// Serve runs s over stdio until ctx is cancelled or the transport
// closes, matching the teacher's pattern of a foreground CLI command
// that exits when its context does.
func Serve(ctx context.Context, s *server.MCPServer) error {
	return server.ServeStdio(s, server.WithStdioContextFunc(func(context.Context) context.Context { return ctx }))
}

func beginTraceTool() mcp.Tool {
	return mcp.NewTool("begin_trace",
		mcp.WithDescription("Start a continuously-updating traceroute toward a target IP address."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Destination as an IPv4 or IPv6 literal.")),
		mcp.WithString("mode", mcp.Description("Probe family: icmp or udp. Defaults to udp.")),
		mcp.WithNumber("max_hops", mcp.Description("Upper bound on TTL, 1..100. Defaults to 30.")),
		mcp.WithNumber("attempts", mcp.Description("Probes per hop per round, >=1. Defaults to 1.")),
	)
}

func beginTraceHandler(h *handler.Handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		targetStr, err := req.RequireString("target")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		target := net.ParseIP(targetStr)
		if target == nil {
			return mcp.NewToolResultError(fmt.Sprintf("mcpserver: %q is not a valid IP literal", targetStr)), nil
		}

		opts := pathmodel.DefaultTraceOpts()
		opts.Target = target
		if mode := req.GetString("mode", ""); mode != "" {
			opts.Mode = pathmodel.PingMode(mode)
		}
		if mh := req.GetInt("max_hops", 0); mh > 0 {
			opts.MaxHops = mh
		}
		if a := req.GetInt("attempts", 0); a > 0 {
			opts.Attempts = a
		}

		if err := h.BeginTrace(opts); err != nil {
			if err == handler.ErrAlreadyTracing {
				return mcp.NewToolResultText("a trace is already running; call stop_trace first"), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("trace started toward %s", target)), nil
	}
}

func stopTraceTool() mcp.Tool {
	return mcp.NewTool("stop_trace",
		mcp.WithDescription("Stop the currently running trace, if any."),
	)
}

func stopTraceHandler(h *handler.Handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h.StopTrace()
		return mcp.NewToolResultText("trace stopped"), nil
	}
}

func getStateTool() mcp.Tool {
	return mcp.NewTool("get_state",
		mcp.WithDescription("Return the latest published trace snapshot as JSON: each round's per-hop source address, latency, and terminal hop."),
	)
}

// stateView is the JSON shape returned by get_state: a flattened,
// observer-friendly projection of pathmodel.TraceState that doesn't
// leak the package's internal sparse-slice representation.
type stateView struct {
	Tracing    bool            `json:"tracing"`
	Iterations []iterationView `json:"iterations"`
}

type iterationView struct {
	TerminalHop int       `json:"terminal_hop,omitempty"`
	Hops        []hopView `json:"hops"`
}

type hopView struct {
	Hop       int    `json:"hop"`
	Source    string `json:"source,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

func getStateHandler(h *handler.Handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap := h.State().Snapshot()
		view := stateView{Tracing: h.IsTracing()}
		for _, it := range snap.Iterations {
			iv := iterationView{TerminalHop: it.TerminalHop}
			for hop := 1; hop <= len(it.Hops); hop++ {
				p := it.At(hop)
				if p == nil {
					iv.Hops = append(iv.Hops, hopView{Hop: hop})
					continue
				}
				iv.Hops = append(iv.Hops, hopView{
					Hop:       hop,
					Source:    p.Source.String(),
					LatencyMs: float64(p.Latency) / float64(time.Millisecond),
				})
			}
			view.Iterations = append(view.Iterations, iv)
		}

		data, err := json.Marshal(view)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
