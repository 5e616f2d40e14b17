package events

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	maxTextLength     = 100
	truncateIndicator = "..."
)

// Format renders an event as a single human-readable line. It returns ""
// for nil or unknown events.
func Format(event Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *WorkflowStartEvent:
		return fmt.Sprintf("%s started (wrong attempts %d/%d)", SafeString(e.Mode), e.WrongAttempts, e.Threshold)
	case *WorkflowEndEvent:
		return formatWorkflowEnd(e)
	case *StateChangedEvent:
		return fmt.Sprintf("state: %s -> %s", SafeString(e.From), SafeString(e.To))
	case *SignalEvent:
		return formatSignal(e)
	case *WorkerStartEvent:
		return fmt.Sprintf("worker #%d started (%s)", e.Seq, SafeString(e.Mode))
	case *OutcomeEvent:
		return fmt.Sprintf("worker #%d: %s [%s] in %dms", e.Seq, SafeString(e.Outcome), SafeString(e.Class), e.DurationMs)
	case *LockoutStartEvent:
		return fmt.Sprintf("[!] locked out after %d bad swipes until %s", e.WrongAttempts, e.Deadline.Format("15:04:05"))
	case *LockoutTickEvent:
		return fmt.Sprintf("lockout: %ds remaining", e.SecondsRemaining)
	case *LockoutEndEvent:
		if e.Canceled {
			return "lockout canceled"
		}
		return "lockout expired"
	case *AttemptsChangedEvent:
		return fmt.Sprintf("wrong attempts: %d (%d remaining)", e.WrongAttempts, e.Remaining)
	case *ErrorEvent:
		return formatError(e)
	default:
		return ""
	}
}

// FormatWithTimestamp prefixes Format's output with the event time.
func FormatWithTimestamp(event Event) string {
	if event == nil {
		return ""
	}
	ts := event.Timestamp().Format("15:04:05")
	detail := Format(event)
	if detail == "" {
		return fmt.Sprintf("[%s] %s", ts, event.Type())
	}
	return fmt.Sprintf("[%s] %s", ts, detail)
}

func formatWorkflowEnd(e *WorkflowEndEvent) string {
	symbol, result := "+", "accepted"
	switch {
	case !e.Terminal && e.Reason != "":
		return fmt.Sprintf("[-] %s stopped: %s", SafeString(e.Mode), SafeString(e.Reason))
	case !e.Accepted:
		symbol, result = "x", "rejected"
	}
	line := fmt.Sprintf("[%s] %s %s", symbol, SafeString(e.Mode), result)
	if e.Outcome != "" {
		line += ": " + SafeString(e.Outcome)
	}
	if e.Message != "" {
		line += " - " + Truncate(e.Message, maxTextLength)
	}
	return line
}

func formatSignal(e *SignalEvent) string {
	header := SafeString(e.Header)
	footer := SafeString(e.Footer)
	if footer == "" {
		return fmt.Sprintf("ui: %s", Truncate(header, maxTextLength))
	}
	return fmt.Sprintf("ui: %s | %s", Truncate(header, maxTextLength), Truncate(footer, maxTextLength))
}

func formatError(e *ErrorEvent) string {
	severity := SafeString(e.Severity)
	if severity == "" {
		severity = SeverityError
	}
	return fmt.Sprintf("%s: %s", strings.ToUpper(severity), Truncate(e.Message, maxTextLength))
}

// Truncate shortens s to maxLen, marking the cut with an indicator.
func Truncate(s string, maxLen int) string {
	s = SafeString(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	return s[:maxLen-len(truncateIndicator)] + truncateIndicator
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// SafeString strips ANSI sequences and control characters and folds
// whitespace so caller-supplied text cannot corrupt a terminal line.
func SafeString(s string) string {
	s = ansiRegex.ReplaceAllString(s, "")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			sb.WriteRune(' ')
		case !unicode.IsControl(r):
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
