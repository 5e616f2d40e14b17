package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/npratt/fingerlock/internal/events"
)

// isTerminal returns true if both stdout and stdin are TTYs.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// terminalSize returns the current terminal width and height.
// Returns 0, 0 if the terminal size cannot be determined.
func terminalSize() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0, 0
	}
	return width, height
}

// terminalTooSmall returns true if the terminal is below the minimum size.
func terminalTooSmall() bool {
	width, height := terminalSize()
	return width < minWidth || height < minHeight
}

// runSimple provides line-by-line output for non-interactive environments.
// Focus is assumed for the whole run. The first interrupt dismisses the
// workflow; a second one exits without waiting.
func (t *TUI) runSimple(ctx context.Context) error {
	return t.runSimpleTo(ctx, os.Stdout)
}

func (t *TUI) runSimpleTo(ctx context.Context, out io.Writer) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if t.workflow != nil {
		t.workflow.FocusGained()
	}

	dismissed := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-sigChan:
			if dismissed || t.workflow == nil {
				return nil
			}
			dismissed = true
			t.workflow.Dismiss()

		case event, ok := <-t.eventChan:
			if !ok {
				return nil
			}

			text := events.FormatWithTimestamp(event)
			if text != "" {
				_, _ = fmt.Fprintln(out, text)
			}
			if _, ok := event.(*events.WorkflowEndEvent); ok {
				return nil
			}
		}
	}
}
