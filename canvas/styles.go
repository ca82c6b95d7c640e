package canvas

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/vantage/types"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles shared by the artifact renderers and the TUI.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(18)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// PanelStyle wraps the active artifact.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// TabStyle and ActiveTabStyle render the tab strip.
	TabStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	ActiveTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor).
			Underline(true).
			Padding(0, 1)

	// CardStyle and ActiveCardStyle render inline history cards.
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1).
			Width(36)

	ActiveCardStyle = CardStyle.
			BorderForeground(highlightColor)
)

// StatusStyle returns the style for an artifact status.
func StatusStyle(status types.ArtifactStatus) lipgloss.Style {
	switch status {
	case types.StatusComplete:
		return SuccessStyle
	case types.StatusStreaming:
		return WarningStyle
	case types.StatusError:
		return ErrorStyle
	default:
		return ValueStyle
	}
}
