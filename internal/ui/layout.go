package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// DrawerWidth returns the width of the notification drawer when open.
func (l Layout) DrawerWidth() int {
	w := l.Width / 3
	if w < 36 {
		w = 36
	}
	if w > l.Width {
		w = l.Width
	}
	return w
}

// Bell renders the bell with its unread badge. The badge is hidden when
// there is nothing unread.
func Bell(unread int) string {
	bell := theme.HeaderStyle.Render("🔔")
	if unread <= 0 {
		return bell
	}
	label := fmt.Sprint(unread)
	if unread > 99 {
		label = "99+"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, bell, theme.BadgeStyle.Render(label))
}

// RenderHeader renders the top header bar with a title, the poll status
// and the notification bell.
func (l Layout) RenderHeader(title, status string, unread int) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.Render(status)
	bellRendered := Bell(unread)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered) -
		lipgloss.Width(bellRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
		bellRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}

// RenderWithDrawer places the drawer to the right of the content.
func (l Layout) RenderWithDrawer(content, drawer string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, content, drawer)
}
