// Package cli renders analytics output for the terminal using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#2E86AB")
	// SuccessColor indicates goals met or successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4") // Teal
	// WarningColor indicates figures behind pace.
	WarningColor = lipgloss.Color("#FFE66D") // Yellow
	// ErrorColor indicates errors or figures far behind goal.
	ErrorColor = lipgloss.Color("#FF6B6B") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3") // Light teal
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	// SubtitleStyle is used for secondary headings.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	// HeaderStyle is used for table headers.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	ChartIcon   = "📊"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a report title with the chart icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(ChartIcon + " " + title)
}
