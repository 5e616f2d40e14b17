package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/fingerlock/internal/controller"
)

const (
	minWidth  = 40
	minHeight = 12

	maxContentWidth = 72
)

// View implements tea.Model. This renders the full TUI display.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}

	w := m.contentWidth()
	sections := []string{
		m.renderTitle(w),
		m.renderDivider(w),
		m.renderSignal(w),
		m.renderToggle(),
		m.renderDivider(w),
		m.renderStatus(),
		m.renderEvents(w),
		m.renderDivider(w),
		m.renderHelp(),
	}

	rendered := styles.Container.
		Width(w + 2).
		Render(strings.Join(sections, "\n"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, rendered)
}

// contentWidth is the inner width of the container.
func (m model) contentWidth() int {
	return safeWidth(min(m.width-4, maxContentWidth))
}

// renderTooSmall renders a minimal message for terminals that are too small.
func (m model) renderTooSmall() string {
	return fmt.Sprintf("Terminal too small (%dx%d). Need %dx%d minimum.",
		m.width, m.height, minWidth, minHeight)
}

func (m model) renderTitle(w int) string {
	title := styles.Title.Render("fingerlock · " + m.mode)
	attempts := styles.Help.Render(attemptsLabel(m.wrongAttempts, m.threshold))
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		title,
		strings.Repeat(" ", max(1, w-lipgloss.Width(title)-lipgloss.Width(attempts))),
		attempts,
	)
}

// renderDivider renders a horizontal divider line.
func (m model) renderDivider(w int) string {
	return styles.Divider.Render(strings.Repeat("─", w))
}

// renderSignal renders the controller's header and footer texts.
func (m model) renderSignal(w int) string {
	headerStyle := styles.Header
	switch {
	case m.done && m.accepted, m.signal.Header == controller.HeaderAccepted:
		headerStyle = styles.HeaderAccepted
	case m.lockedOut():
		headerStyle = styles.HeaderLocked
	}

	lines := []string{headerStyle.Width(w).Render(m.signal.Header)}
	if m.signal.Footer != "" {
		footerStyle := styles.Footer
		if m.lockedOut() {
			footerStyle = styles.Countdown
		}
		lines = append(lines, footerStyle.Width(w).Render(m.signal.Footer))
	} else {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderToggle renders the credential slot checkbox.
func (m model) renderToggle() string {
	box := "[ ]"
	style := styles.ToggleOff
	if m.signal.ToggleChecked {
		box = "[x]"
		style = styles.ToggleOn
	}
	if !m.signal.ToggleEnabled {
		style = styles.ToggleDisabled
	}
	return style.Render(box + " fingerprint unlock")
}

// renderStatus renders the state line, with a spinner while the sensor is
// listening and the result once the workflow is done.
func (m model) renderStatus() string {
	if m.done {
		style := styles.HeaderLocked
		if m.accepted {
			style = styles.HeaderAccepted
		}
		return style.Render(resultLabel(m.accepted, m.reason))
	}

	label := statusLabel(m.state, m.focused)
	if m.dismissing {
		label = "dismissing..."
	}
	if m.running() {
		return m.spinner.View() + " " + styles.Footer.Render(label)
	}
	if m.lockedOut() && m.remaining > 0 {
		return styles.Countdown.Render(fmt.Sprintf("%s (%ds)", label, m.remaining))
	}
	return styles.Footer.Render(label)
}

// renderEvents renders the most recent events.
func (m model) renderEvents(w int) string {
	lines := make([]string, 0, maxEventLines)
	for _, el := range m.eventLines {
		lines = append(lines, m.renderEventLine(el, w))
	}
	for len(lines) < maxEventLines {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderEventLine renders a single event with timestamp and styling.
func (m model) renderEventLine(el eventLine, maxWidth int) string {
	prefix := el.Time.Format("15:04:05") + " "

	textWidth := maxWidth - len(prefix)
	if textWidth < 10 {
		textWidth = 10
	}
	text := el.Text
	if len(text) > textWidth {
		text = text[:textWidth-3] + "..."
	}
	return styles.Help.Render(prefix) + el.Style.Render(text)
}

// renderHelp renders keyboard shortcuts help text.
func (m model) renderHelp() string {
	if m.done {
		return styles.Help.Render("exiting...")
	}
	return styles.Help.Render("q/esc: dismiss  f: toggle focus")
}

// safeWidth returns a width that is at least 1 to prevent negative values.
func safeWidth(w int) int {
	if w < 1 {
		return 1
	}
	return w
}
