package display

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nraines/tracewatch/pkg/pathmodel"
)

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("240"))

	hopStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	ipStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39"))

	rttStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	timeoutStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	mplsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141"))

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)
)

// sparkChars are the sparkline block characters, low to high.
var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// StatusInfo summarizes the currently displayed round for the status bar.
type StatusInfo struct {
	HopCount int
	HasMPLS  bool
	AvgRTT   time.Duration
	Round    int
}

// StateMsg notifies the bubbletea program that SharedState has a new
// published snapshot. It carries no payload; the model re-reads the
// snapshot itself from its held SharedState reference.
type StateMsg struct{}

// TUIModel is the bubbletea model for the live trace TUI. Unlike the
// teacher's one-shot TraceResult viewer, it renders the most recent
// round of a continuously-updating TraceState and keeps rendering
// across rounds until the user quits.
type TUIModel struct {
	target  net.IP
	state   *pathmodel.SharedState
	stop    func()
	spinner spinner.Model
	width   int
	height  int

	startTime time.Time
	quitting  bool
}

// NewTUIModel creates a TUI model observing state for target. stop is
// invoked when the user quits (q / ctrl+c); it's typically
// (*handler.Handler).StopTrace.
func NewTUIModel(target net.IP, state *pathmodel.SharedState, stop func()) *TUIModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &TUIModel{
		target:    target,
		state:     state,
		stop:      stop,
		spinner:   s,
		startTime: time.Now(),
	}
}

// Notify returns the handler's change-notification callback bound to
// program p. It must not block or take any lock the handler's public
// surface holds; tea.Program.Send only enqueues onto the program's
// internal channel.
func (m *TUIModel) Notify(p *tea.Program) func() {
	return func() { p.Send(StateMsg{}) }
}

// Init implements tea.Model.
func (m *TUIModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.stop != nil {
				m.stop()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case StateMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// currentIteration returns the round currently worth displaying: the
// last finished round if the newest one is still an empty in-flight
// placeholder, otherwise the newest round itself.
func (m *TUIModel) currentIteration() (idx int, it *pathmodel.Iteration) {
	snap := m.state.Snapshot()
	n := len(snap.Iterations)
	if n == 0 {
		return 0, nil
	}
	last := snap.Iterations[n-1]
	if len(last.Hops) == 0 && n > 1 {
		return n - 1, snap.Iterations[n-2]
	}
	return n, last
}

// View implements tea.Model.
func (m *TUIModel) View() string {
	round, it := m.currentIteration()

	var b strings.Builder

	title := fmt.Sprintf("tracewatch → %s", m.target)
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	header := fmt.Sprintf("%-4s %-16s %-8s %-8s", "Hop", "IP Address", "RTT", "Graph")
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 60))
	b.WriteString("\n")

	if it != nil {
		for h := 1; h <= len(it.Hops); h++ {
			b.WriteString(m.formatHopRow(h, it.At(h)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 60))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar(round, it))

	b.WriteString("\n")
	if m.quitting {
		b.WriteString("bye")
	} else if it != nil && it.TerminalHop > 0 {
		b.WriteString(completeStyle.Render(fmt.Sprintf("✓ reached %s", m.target)))
		b.WriteString(" | next round soon | Press 'q' to quit")
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" Tracing... Press 'q' to cancel")
	}

	return b.String()
}

// formatHopRow formats a single hop row. hop is the 1-based hop
// number; p is nil if that hop has no response yet this round.
func (m *TUIModel) formatHopRow(hop int, p *pathmodel.Ping) string {
	var b strings.Builder

	b.WriteString(hopStyle.Render(fmt.Sprintf("%-4d", hop)))

	if p == nil {
		b.WriteString(timeoutStyle.Render(fmt.Sprintf("%-16s", "*")))
		b.WriteString(timeoutStyle.Render(fmt.Sprintf("%-8s", "-")))
		return b.String()
	}

	ipStr := p.Source.String()
	if len(ipStr) > 15 {
		ipStr = ipStr[:15]
	}
	b.WriteString(ipStyle.Render(fmt.Sprintf("%-16s", ipStr)))

	rttMs := float64(p.Latency) / float64(time.Millisecond)
	b.WriteString(rttStyle.Render(fmt.Sprintf("%-8.2f", rttMs)))

	b.WriteString(m.renderSparkline([]time.Duration{p.Latency}))

	if len(p.MPLS) > 0 {
		b.WriteString(" ")
		b.WriteString(mplsStyle.Render("[MPLS]"))
	}

	return b.String()
}

// renderSparkline renders a sparkline graph from RTT values.
func (m *TUIModel) renderSparkline(rtts []time.Duration) string {
	if len(rtts) == 0 {
		return ""
	}

	minRTT, maxRTT := rtts[0], rtts[0]
	for _, rtt := range rtts {
		if rtt < minRTT {
			minRTT = rtt
		}
		if rtt > maxRTT {
			maxRTT = rtt
		}
	}

	if minRTT == maxRTT {
		return rttStyle.Render(strings.Repeat(string(sparkChars[3]), len(rtts)))
	}

	var b strings.Builder
	rng := float64(maxRTT - minRTT)
	for _, rtt := range rtts {
		idx := int(float64(rtt-minRTT) / rng * float64(len(sparkChars)-1))
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteRune(sparkChars[idx])
	}

	return rttStyle.Render(b.String())
}

// renderStatusBar renders the status bar for the current round.
func (m *TUIModel) renderStatusBar(round int, it *pathmodel.Iteration) string {
	info := m.getStatusInfo(round, it)

	parts := []string{
		fmt.Sprintf("Round: %d", info.Round),
		fmt.Sprintf("Hops: %d", info.HopCount),
	}
	if info.HasMPLS {
		parts = append(parts, mplsStyle.Render("MPLS"))
	}

	elapsed := time.Since(m.startTime).Round(time.Millisecond)
	parts = append(parts, fmt.Sprintf("Time: %v", elapsed))

	return statusStyle.Render(strings.Join(parts, " │ "))
}

// getStatusInfo collects status information for the current round.
func (m *TUIModel) getStatusInfo(round int, it *pathmodel.Iteration) StatusInfo {
	info := StatusInfo{Round: round}
	if it == nil {
		return info
	}

	var totalRTT time.Duration
	var rttCount int
	for h := 1; h <= len(it.Hops); h++ {
		p := it.At(h)
		if p == nil {
			continue
		}
		info.HopCount++
		if len(p.MPLS) > 0 {
			info.HasMPLS = true
		}
		totalRTT += p.Latency
		rttCount++
	}
	if rttCount > 0 {
		info.AvgRTT = totalRTT / time.Duration(rttCount)
	}
	return info
}

// RunTUI constructs the bubbletea program for target/state, wired so
// the user's 'q'/ctrl+c quits and invokes stop (typically
// (*handler.Handler).StopTrace). Callers obtain the returned program's
// Notify-bound callback via model.Notify(p) and pass it as the
// handler's change-notification callback before starting the trace.
func RunTUI(target net.IP, state *pathmodel.SharedState, stop func()) (*tea.Program, *TUIModel) {
	model := NewTUIModel(target, state, stop)
	p := tea.NewProgram(model)
	return p, model
}
