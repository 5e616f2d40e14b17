package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	// Layout styles
	Container lipgloss.Style
	Title     lipgloss.Style
	Divider   lipgloss.Style

	// Signal styles
	Header         lipgloss.Style
	HeaderAccepted lipgloss.Style
	HeaderLocked   lipgloss.Style
	Footer         lipgloss.Style
	Countdown      lipgloss.Style
	Spinner        lipgloss.Style

	// Toggle styles
	ToggleOn       lipgloss.Style
	ToggleOff      lipgloss.Style
	ToggleDisabled lipgloss.Style

	// Event styles
	Event   lipgloss.Style
	Outcome lipgloss.Style
	Lockout lipgloss.Style
	Error   lipgloss.Style

	// Help line
	Help lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Header: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")),

	HeaderAccepted: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	HeaderLocked: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	Countdown: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Spinner: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")),

	ToggleOn: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")),

	ToggleOff: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	ToggleDisabled: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Event: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Outcome: lipgloss.NewStyle().
		Foreground(lipgloss.Color("177")),

	Lockout: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	Help: lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")),
}
