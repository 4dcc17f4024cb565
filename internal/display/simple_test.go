package display

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nraines/tracewatch/pkg/pathmodel"
)

func TestSimpleRenderer_RenderHop_FormatsBasicHop(t *testing.T) {
	r := NewSimpleRenderer(&bytes.Buffer{})
	p := &pathmodel.Ping{Source: net.ParseIP("192.168.1.1"), Latency: 5 * time.Millisecond}

	result := r.RenderHop(1, p)

	if !strings.Contains(result, "1") {
		t.Error("expected hop number in output")
	}
	if !strings.Contains(result, "192.168.1.1") {
		t.Error("expected IP address in output")
	}
	if !strings.Contains(result, "5.00ms") {
		t.Errorf("expected RTT value in output, got %q", result)
	}
}

func TestSimpleRenderer_RenderHop_ShowsTimeoutAsAsterisk(t *testing.T) {
	r := NewSimpleRenderer(&bytes.Buffer{})

	result := r.RenderHop(1, nil)

	if !strings.Contains(result, "*") {
		t.Error("expected asterisk for timeout")
	}
}

func TestSimpleRenderer_RenderHop_ShowsMPLS(t *testing.T) {
	r := NewSimpleRenderer(&bytes.Buffer{})
	p := &pathmodel.Ping{
		Source:  net.ParseIP("10.0.0.1"),
		Latency: 5 * time.Millisecond,
		MPLS:    []pathmodel.MPLSLabel{{Label: 24015, Exp: 0, S: true, TTL: 1}},
	}

	result := r.RenderHop(1, p)

	if !strings.Contains(result, "MPLS") && !strings.Contains(result, "24015") {
		t.Error("expected MPLS label info in output")
	}
}

func TestSimpleRenderer_RenderIteration_OutputsAllHops(t *testing.T) {
	var buf bytes.Buffer
	r := NewSimpleRenderer(&buf)

	it := &pathmodel.Iteration{}
	it.Set(1, &pathmodel.Ping{Source: net.ParseIP("192.168.1.1"), Latency: time.Millisecond})
	it.Set(2, &pathmodel.Ping{Source: net.ParseIP("10.0.0.1"), Latency: 5 * time.Millisecond})

	r.RenderIteration(net.ParseIP("8.8.8.8"), it)
	result := buf.String()

	if !strings.Contains(result, "192.168.1.1") {
		t.Error("expected hop 1 IP in output")
	}
	if !strings.Contains(result, "10.0.0.1") {
		t.Error("expected hop 2 IP in output")
	}
}

func TestSimpleRenderer_RenderIteration_ShowsReached(t *testing.T) {
	var buf bytes.Buffer
	r := NewSimpleRenderer(&buf)

	it := &pathmodel.Iteration{TerminalHop: 1}
	it.Set(1, &pathmodel.Ping{Source: net.ParseIP("8.8.8.8"), Latency: time.Millisecond})

	r.RenderIteration(net.ParseIP("8.8.8.8"), it)
	result := buf.String()

	if !strings.Contains(result, "reached 8.8.8.8 in 1 hops") {
		t.Errorf("expected reached-target summary, got %q", result)
	}
}

func TestSimpleRenderer_FormatRTT_FormatsMilliseconds(t *testing.T) {
	r := NewSimpleRenderer(&bytes.Buffer{})

	result := r.FormatRTT(5 * time.Millisecond)
	if result != "5.00ms" {
		t.Errorf("expected '5.00ms', got %q", result)
	}

	result = r.FormatRTT(500 * time.Microsecond)
	if result != "0.50ms" {
		t.Errorf("expected '0.50ms', got %q", result)
	}
}

func TestSimpleObserver_Notify_PrintsOnlyFinishedRounds(t *testing.T) {
	state := pathmodel.NewSharedState()
	var buf bytes.Buffer
	obs := NewSimpleObserver(net.ParseIP("8.8.8.8"), state, &buf)

	it1 := &pathmodel.Iteration{}
	it1.Set(1, &pathmodel.Ping{Source: net.ParseIP("10.0.0.1"), Latency: time.Millisecond})
	state.Publish(state.Snapshot().WithAppended(it1))
	obs.Notify()
	if buf.Len() != 0 {
		t.Errorf("expected nothing printed while round 1 is still in flight, got %q", buf.String())
	}

	it2 := &pathmodel.Iteration{}
	state.Publish(state.Snapshot().WithAppended(it2))
	obs.Notify()
	if !strings.Contains(buf.String(), "round 1") || !strings.Contains(buf.String(), "10.0.0.1") {
		t.Errorf("expected round 1 to print once round 2 started, got %q", buf.String())
	}
}
