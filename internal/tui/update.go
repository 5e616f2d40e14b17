package tui

import (
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/fingerlock/internal/events"
	"github.com/npratt/fingerlock/internal/viewmodel"
)

// maxEventLines is the number of recent events kept for display.
const maxEventLines = 6

// channelClosedMsg signals that the event channel was closed.
type channelClosedMsg struct{}

// waitForEvent creates a command that waits for the next event from the channel.
// Returns channelClosedMsg if the channel is closed.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

// Update implements tea.Model. It handles all message types and updates the model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.FocusMsg:
		m.focused = true
		if m.workflow != nil {
			m.workflow.FocusGained()
		}
		return m, nil

	case tea.BlurMsg:
		m.focused = false
		if m.workflow != nil {
			m.workflow.FocusLost()
		}
		return m, nil

	case eventMsg:
		m.handleEvent(msg.event)
		if m.done {
			return m, tea.Quit
		}
		return m, waitForEvent(m.eventChan)

	case channelClosedMsg:
		slog.Info("event channel closed, exiting TUI")
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey processes keyboard input and returns the updated model and command.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		// The workflow end event quits once the controller has settled.
		if m.dismissing && msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.dismissing = true
		if m.workflow != nil {
			m.workflow.Dismiss()
			return m, nil
		}
		return m, tea.Quit

	case "f":
		// Manual focus toggle for terminals without focus reporting.
		if m.focused {
			return m.Update(tea.BlurMsg{})
		}
		return m.Update(tea.FocusMsg{})
	}
	return m, nil
}

// handleEvent processes an event and updates model state.
func (m *model) handleEvent(event events.Event) {
	switch e := event.(type) {
	case *events.WorkflowStartEvent:
		m.wrongAttempts = e.WrongAttempts
		if e.Threshold > 0 {
			m.threshold = e.Threshold
		}

	case *events.StateChangedEvent:
		m.state = e.To
		if !m.lockedOut() {
			m.remaining = 0
		}

	case *events.SignalEvent:
		m.signal = viewmodel.Signal{
			Header:        e.Header,
			Footer:        e.Footer,
			ToggleChecked: e.ToggleChecked,
			ToggleEnabled: e.ToggleEnabled,
		}

	case *events.AttemptsChangedEvent:
		m.wrongAttempts = e.WrongAttempts

	case *events.LockoutTickEvent:
		m.remaining = e.SecondsRemaining

	case *events.LockoutEndEvent:
		m.remaining = 0

	case *events.WorkflowEndEvent:
		m.done = true
		m.accepted = e.Accepted
		m.reason = e.Reason
		if e.Terminal {
			m.state = "terminal"
		}
	}

	// Ticks are shown in the countdown, not the log.
	if _, ok := event.(*events.LockoutTickEvent); ok {
		return
	}
	text := events.Format(event)
	if text == "" {
		return
	}
	m.eventLines = append(m.eventLines, eventLine{
		Time:  event.Timestamp(),
		Text:  text,
		Style: StyleForEvent(event),
	})
	if len(m.eventLines) > maxEventLines {
		m.eventLines = m.eventLines[len(m.eventLines)-maxEventLines:]
	}
}
