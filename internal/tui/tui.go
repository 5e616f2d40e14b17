// Package tui hosts an authentication workflow in the terminal using
// bubbletea. Terminal focus reports drive the controller's focus
// notifications and the rendered view follows its UI signal.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/fingerlock/internal/events"
	"github.com/npratt/fingerlock/internal/viewmodel"
)

// Workflow is the part of the controller the TUI drives.
type Workflow interface {
	FocusGained()
	FocusLost()
	Dismiss()
	Signal() viewmodel.Signal
}

// TUI is the terminal host for one workflow.
type TUI struct {
	eventChan     <-chan events.Event
	workflow      Workflow
	mode          string
	threshold     int
	assumeFocused bool
	forceSimple   bool
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a TUI that renders events from eventChan and forwards focus
// and dismissal to wf.
func New(eventChan <-chan events.Event, wf Workflow, opts ...Option) *TUI {
	t := &TUI{
		eventChan: eventChan,
		workflow:  wf,
		mode:      "verify",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithMode sets the mode shown in the title.
func WithMode(mode string) Option {
	return func(t *TUI) {
		if mode != "" {
			t.mode = mode
		}
	}
}

// WithThreshold sets the lockout threshold shown next to the attempt count.
func WithThreshold(n int) Option {
	return func(t *TUI) {
		t.threshold = n
	}
}

// WithAssumeFocused reports focus gained at startup, for terminals that never
// send focus reports.
func WithAssumeFocused(assume bool) Option {
	return func(t *TUI) {
		t.assumeFocused = assume
	}
}

// WithSimple forces line-by-line output instead of the full-screen view.
func WithSimple(simple bool) Option {
	return func(t *TUI) {
		t.forceSimple = simple
	}
}

// Run starts the TUI and blocks until the workflow ends, the event channel
// closes or ctx is canceled. Without a usable terminal it falls back to
// line-by-line output.
func (t *TUI) Run(ctx context.Context) error {
	if t.forceSimple || !isTerminal() || terminalTooSmall() {
		return t.runSimple(ctx)
	}

	m := newModel(t.eventChan, t.workflow, t.mode, t.threshold, t.assumeFocused)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
