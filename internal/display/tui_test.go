package display

import (
	"net"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nraines/tracewatch/pkg/pathmodel"
)

func TestNewTUIModel_CreatesModel(t *testing.T) {
	state := pathmodel.NewSharedState()
	target := net.ParseIP("8.8.8.8")
	model := NewTUIModel(target, state, nil)

	if !model.target.Equal(target) {
		t.Errorf("expected target %v, got %v", target, model.target)
	}
}

func TestTUIModel_Update_Quit_CallsStop(t *testing.T) {
	state := pathmodel.NewSharedState()
	stopped := false
	model := NewTUIModel(net.ParseIP("8.8.8.8"), state, func() { stopped = true })

	m, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm := m.(*TUIModel)

	if !stopped {
		t.Error("expected stop to be called on quit")
	}
	if !tm.quitting {
		t.Error("expected model to be marked quitting")
	}
}

func TestTUIModel_FormatHopRow_FormatsBasicHop(t *testing.T) {
	model := NewTUIModel(net.ParseIP("8.8.8.8"), pathmodel.NewSharedState(), nil)
	p := &pathmodel.Ping{Source: net.ParseIP("192.168.1.1"), Latency: 5 * time.Millisecond}

	row := model.formatHopRow(1, p)

	if row == "" {
		t.Error("expected non-empty row")
	}
}

func TestTUIModel_FormatHopRow_ShowsTimeout(t *testing.T) {
	model := NewTUIModel(net.ParseIP("8.8.8.8"), pathmodel.NewSharedState(), nil)

	row := model.formatHopRow(1, nil)

	if row == "" {
		t.Error("expected non-empty row for timeout")
	}
}

func TestTUIModel_RenderSparkline_CreatesGraph(t *testing.T) {
	model := NewTUIModel(net.ParseIP("8.8.8.8"), pathmodel.NewSharedState(), nil)

	rtts := []time.Duration{
		1 * time.Millisecond,
		2 * time.Millisecond,
		3 * time.Millisecond,
		2 * time.Millisecond,
		1 * time.Millisecond,
	}

	sparkline := model.renderSparkline(rtts)

	if sparkline == "" {
		t.Error("expected non-empty sparkline")
	}
}

func TestTUIModel_GetStatusInfo_ReturnsInfo(t *testing.T) {
	state := pathmodel.NewSharedState()
	model := NewTUIModel(net.ParseIP("8.8.8.8"), state, nil)

	it := &pathmodel.Iteration{}
	it.Set(1, &pathmodel.Ping{
		Source:  net.ParseIP("192.168.1.1"),
		Latency: 5 * time.Millisecond,
		MPLS:    []pathmodel.MPLSLabel{{Label: 24015}},
	})

	info := model.getStatusInfo(1, it)

	if info.HopCount != 1 {
		t.Errorf("expected HopCount 1, got %d", info.HopCount)
	}
	if !info.HasMPLS {
		t.Error("expected HasMPLS to be true")
	}
}

func TestTUIModel_CurrentIteration_SkipsEmptyPlaceholder(t *testing.T) {
	state := pathmodel.NewSharedState()
	model := NewTUIModel(net.ParseIP("8.8.8.8"), state, nil)

	finished := &pathmodel.Iteration{}
	finished.Set(1, &pathmodel.Ping{Source: net.ParseIP("10.0.0.1"), Latency: time.Millisecond})
	state.Publish(state.Snapshot().WithAppended(finished))
	state.Publish(state.Snapshot().WithAppended(&pathmodel.Iteration{}))

	round, it := model.currentIteration()
	if round != 1 {
		t.Errorf("expected round 1, got %d", round)
	}
	if it.At(1) == nil {
		t.Error("expected the finished round's hop to be displayed, not the empty placeholder")
	}
}
