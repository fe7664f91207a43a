package sim

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"codevolt/internal/alert"
	"codevolt/internal/sensor"
	"codevolt/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// liveMsg carries a state update and its readings.
type liveMsg struct {
	state    telemetry.StateRow
	readings []telemetry.ReadingRow
}

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

type setControlsMsg struct{ c Controls }

const maxLogLines = 1000

// TUIWriter renders the live channel table and event log using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(specs map[sensor.Kind]sensor.Spec) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(specs), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteLive implements LiveWriter.
func (w *TUIWriter) WriteLive(state telemetry.StateRow, readings []telemetry.ReadingRow) error {
	w.program.Send(liveMsg{state: state, readings: readings})
	return nil
}

// WriteEvent implements EventWriter.
func (w *TUIWriter) WriteEvent(e telemetry.EventRow) error {
	line := fmt.Sprintf("%s[%s]%s %s%s%s %s",
		colorGray, e.Timestamp.Format(time.RFC3339), colorReset,
		levelColor(e.Level), e.EventType, colorReset, e.Message)
	if len(e.Critical) > 0 {
		line += fmt.Sprintf(" %scritical=%v%s", colorRed, e.Critical, colorReset)
	}
	w.program.Send(logMsg{line: line})
	return nil
}

// WriteIncident implements IncidentWriter.
func (w *TUIWriter) WriteIncident(inc telemetry.IncidentRow) error {
	line := fmt.Sprintf("%s[%s]%s %sSOS DISPATCH%s %s notified, ETA %s, location %s",
		colorGray, inc.Timestamp.Format(time.RFC3339), colorReset,
		colorRed, colorReset, inc.Service, inc.ETA, inc.Location)
	w.program.Send(logMsg{line: line})
	return nil
}

// SetAdminStatus updates the admin UI indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// SetControls binds the key shortcuts to the session.
func (w *TUIWriter) SetControls(c Controls) {
	w.program.Send(setControlsMsg{c: c})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	table      table.Model
	vp         viewport.Model
	logs       []string
	state      telemetry.StateRow
	controls   Controls
	admin      bool
	wrap       bool
	autoscroll bool
	help       bool
	height     int
}

func newTUIModel(specs map[sensor.Kind]sensor.Spec) tuiModel {
	cols := []table.Column{
		{Title: "Channel", Width: 14},
		{Title: "Value", Width: 22},
		{Title: "Threshold", Width: 12},
		{Title: "Status", Width: 10},
		{Title: "Gauge", Width: 8},
	}
	rows := make([]table.Row, 0, len(sensor.Kinds))
	for _, k := range sensor.Kinds {
		s, ok := specs[k]
		if !ok {
			continue
		}
		rows = append(rows, channelRow(s.Channel()))
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	return tuiModel{
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
		state:      telemetry.StateRow{AlertLevel: alert.LevelNormal.String()},
	}
}

func channelRow(ch sensor.Channel) table.Row {
	if !ch.Kind.Numeric() {
		return table.Row{string(ch.Kind), ch.Display(), "-", string(ch.Status), "-"}
	}
	return table.Row{
		string(ch.Kind),
		ch.Display(),
		fmt.Sprintf("%.0f %s", ch.Threshold, ch.Unit),
		string(ch.Status),
		fmt.Sprintf("%.0f%%", alert.Percent(ch)),
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "h", "?":
			m.help = !m.help
			return m, nil
		case "d":
			if c := m.controls; c != nil {
				if m.state.DemoActive {
					go c.StopDemo()
				} else {
					go c.StartDemo()
				}
			}
			return m, nil
		case "r":
			if c := m.controls; c != nil {
				go c.ResetSensors()
			}
			return m, nil
		case "o":
			if c := m.controls; c != nil {
				go c.ActivateSOS()
			}
			return m, nil
		case "c":
			if c := m.controls; c != nil {
				go func() { _ = c.CancelSOS() }()
			}
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
		return m, nil
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case liveMsg:
		m.state = msg.state
		rows := make([]table.Row, 0, len(msg.readings))
		for _, r := range msg.readings {
			rows = append(rows, channelRow(sensor.Channel{
				Kind: r.Kind, Value: r.Value, Text: r.Text, Unit: r.Unit,
				Threshold: r.Threshold, Status: r.Status,
			}))
		}
		if len(rows) > 0 {
			m.table.SetRows(rows)
		}
	case adminMsg:
		m.admin = msg.active
	case setControlsMsg:
		m.controls = msg.c
	}
	return m, nil
}

func (m *tuiModel) updateViewportHeight() {
	h := m.height - lipgloss.Height(m.renderHeader()) - lipgloss.Height(m.table.View()) - lipgloss.Height(m.renderBottom()) - 4
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func levelStyle(level string) lipgloss.Style {
	c := lipgloss.Color("10")
	switch level {
	case alert.LevelEmergency.String():
		c = lipgloss.Color("9")
	case alert.LevelImminent.String():
		c = lipgloss.Color("13")
	case alert.LevelCaution.String():
		c = lipgloss.Color("11")
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderHeader() string {
	sosState := m.state.SOSState
	if sosState == "" {
		sosState = "idle"
	}
	msg := m.state.AlertMessage
	if msg == "" {
		msg = "Normal operation: All sensors within safe parameters"
	}
	return fmt.Sprintf("Alert %s  SOS %s  tick %d  critical %d\n%s",
		levelStyle(m.state.AlertLevel).Render(strings.ToUpper(m.state.AlertLevel)),
		sosState, m.state.Tick, m.state.CriticalCount, msg)
}

func (m tuiModel) renderBottom() string {
	return fmt.Sprintf("Demo %s | Admin UI %s | Wrap %s | Scroll %s | Help %s",
		indicator(m.state.DemoActive), indicator(m.admin), indicator(m.wrap),
		indicator(m.autoscroll), indicator(m.help))
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Keys:",
		" d  start or stop the demo",
		" r  reset sensors and SOS",
		" o  activate SOS",
		" c  cancel SOS countdown",
		" w  toggle wrap for the event log",
		" s  toggle autoscroll",
		" j/k, up/down, pgup/pgdown  scroll when autoscroll is off",
		" h/?  toggle this help",
		" q  quit",
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{
		m.renderHeader(),
		divider,
		m.table.View(),
		divider,
		"Events:",
		m.vp.View(),
		divider,
		m.renderBottom(),
	}
	return strings.Join(sections, "\n")
}
