package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/fingerlock/internal/events"
)

// StyleForEvent returns the appropriate style for an event type.
func StyleForEvent(event events.Event) lipgloss.Style {
	if event == nil {
		return styles.Event
	}

	switch e := event.(type) {
	case *events.OutcomeEvent, *events.WorkerStartEvent:
		return styles.Outcome
	case *events.LockoutStartEvent, *events.LockoutEndEvent, *events.AttemptsChangedEvent:
		return styles.Lockout
	case *events.WorkflowEndEvent:
		if e.Accepted {
			return styles.HeaderAccepted
		}
		return styles.Lockout
	case *events.ErrorEvent:
		return styles.Error
	default:
		return styles.Event
	}
}

// statusLabel describes the workflow state in a few words.
func statusLabel(state string, focused bool) string {
	switch state {
	case "running":
		return "waiting for finger"
	case "locked_out":
		return "locked out"
	case "terminal":
		return "finished"
	case "idle":
		if focused {
			return "idle"
		}
		return "idle (focus to start)"
	default:
		return state
	}
}

// attemptsLabel renders "wrong attempts: n/threshold", or just n when the
// threshold is unknown.
func attemptsLabel(wrong, threshold int) string {
	if threshold > 0 {
		return fmt.Sprintf("wrong attempts: %d/%d", wrong, threshold)
	}
	return fmt.Sprintf("wrong attempts: %d", wrong)
}

// resultLabel renders the final line once the workflow has ended.
func resultLabel(accepted bool, reason string) string {
	switch {
	case accepted:
		return "accepted"
	case reason != "":
		return "rejected: " + events.SafeString(reason)
	default:
		return "rejected"
	}
}
