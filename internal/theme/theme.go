package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Mode is the persisted light/dark preference.
type Mode string

const (
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// ParseMode returns the mode named by s, defaulting to dark.
func ParseMode(s string) Mode {
	if Mode(s) == ModeLight {
		return ModeLight
	}
	return ModeDark
}

// Toggle returns the opposite mode.
func (m Mode) Toggle() Mode {
	if m == ModeLight {
		return ModeDark
	}
	return ModeLight
}

// Apply selects which half of every adaptive color is rendered.
func Apply(m Mode) {
	lipgloss.SetHasDarkBackground(m != ModeLight)
}

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps side panels such as the notification drawer.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// BadgeStyle renders the unread counter next to the bell.
var BadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// SeverityColor returns the accent color of a notification severity.
func SeverityColor(s model.Severity) lipgloss.AdaptiveColor {
	switch s {
	case model.SeveritySuccess:
		return ColorGreen
	case model.SeverityError:
		return ColorRed
	case model.SeverityWarning:
		return ColorOrange
	default:
		return ColorBlue
	}
}

// SeverityIcon returns a one-cell marker for a notification severity.
func SeverityIcon(s model.Severity) string {
	switch s {
	case model.SeveritySuccess:
		return "✔"
	case model.SeverityError:
		return "✖"
	case model.SeverityWarning:
		return "⚠"
	default:
		return "ℹ"
	}
}

// ToastStyle returns the bordered box used for a toast of the given severity.
func ToastStyle(s model.Severity) lipgloss.Style {
	return lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(SeverityColor(s)).
		Foreground(ColorWhite)
}

// StatusStyle returns a color-coded style for a reminder status.
func StatusStyle(status model.ReminderStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch status {
	case model.ReminderScheduled:
		return base.Foreground(ColorBlue)
	case model.ReminderSent:
		return base.Foreground(ColorGreen)
	case model.ReminderCancelled:
		return base.Foreground(ColorGray)
	default:
		return base.Foreground(ColorGray)
	}
}

// PriorityStyle returns a color-coded style for a reminder priority.
func PriorityStyle(p model.Priority) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch p {
	case model.PriorityHigh:
		return base.Foreground(ColorRed)
	case model.PriorityMedium:
		return base.Foreground(ColorYellow)
	case model.PriorityLow:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// TypeLabelStyle returns a color-coded style for a reminder type label.
func TypeLabelStyle(t model.ReminderType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch t {
	case model.ReminderInterview:
		return base.Foreground(ColorMagenta)
	case model.ReminderTaskDeadline:
		return base.Foreground(ColorOrange)
	case model.ReminderEvaluation:
		return base.Foreground(ColorYellow)
	case model.ReminderTrainingSession:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorBlue)
	}
}
