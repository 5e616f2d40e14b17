package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/fingerlock/internal/events"
	"github.com/npratt/fingerlock/internal/viewmodel"
)

// eventLine represents a formatted event for display.
type eventLine struct {
	Time  time.Time
	Text  string
	Style lipgloss.Style
}

// model is the bubbletea model for the TUI.
type model struct {
	// Event source
	eventChan <-chan events.Event
	workflow  Workflow

	// Workflow state
	mode          string
	state         string
	signal        viewmodel.Signal
	wrongAttempts int
	threshold     int
	remaining     int // lockout seconds, 0 when not locked out
	focused       bool
	assumeFocused bool

	// Result
	done     bool
	accepted bool
	reason   string

	// Recent events, newest last
	eventLines []eventLine

	// UI state
	width      int
	height     int
	spinner    spinner.Model
	dismissing bool
}

// eventMsg wraps an event for the bubbletea message system.
type eventMsg struct{ event events.Event }

// newModel creates a new model with the given configuration.
func newModel(eventChan <-chan events.Event, wf Workflow, mode string, threshold int, assumeFocused bool) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	m := model{
		eventChan:     eventChan,
		workflow:      wf,
		mode:          mode,
		state:         "idle",
		threshold:     threshold,
		assumeFocused: assumeFocused,
		spinner:       sp,
	}
	if wf != nil {
		m.signal = wf.Signal()
	}
	return m
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForEvent(m.eventChan),
		m.spinner.Tick,
	}
	if m.assumeFocused {
		cmds = append(cmds, func() tea.Msg { return tea.FocusMsg{} })
	}
	return tea.Batch(cmds...)
}

// Update, handleKey, handleEvent are implemented in update.go
// View is implemented in view.go

// running reports whether a sensor call is in flight.
func (m model) running() bool {
	return m.state == "running"
}

// lockedOut reports whether the lockout countdown is active.
func (m model) lockedOut() bool {
	return m.state == "locked_out"
}
