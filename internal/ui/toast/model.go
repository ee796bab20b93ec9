// Package toast renders the single-slot transient alert. A new toast
// replaces the visible one; the auto-hide timer of a replaced toast is
// ignored when it fires.
package toast

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/theme"
)

// HideMsg asks the presenter to hide the toast of the given generation.
type HideMsg struct {
	Generation int
}

// Model is the toast presenter.
type Model struct {
	current    model.Notification
	visible    bool
	generation int
	width      int
}

// New creates an empty presenter.
func New(width int) Model {
	return Model{width: width}
}

// Show replaces the visible toast and returns the auto-hide timer, or nil
// when the toast stays until dismissed.
func (m *Model) Show(ev notify.Event) tea.Cmd {
	m.generation++
	m.current = ev.Notification
	m.visible = true

	if ev.AutoHide <= 0 {
		return nil
	}
	gen := m.generation
	return tea.Tick(ev.AutoHide, func(time.Time) tea.Msg {
		return HideMsg{Generation: gen}
	})
}

// Dismiss hides the toast and invalidates any pending timer.
func (m *Model) Dismiss() {
	m.generation++
	m.visible = false
}

// Update handles auto-hide timers.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(HideMsg); ok && msg.Generation == m.generation {
		m.visible = false
	}
	return m, nil
}

// Visible reports whether a toast is on screen.
func (m Model) Visible() bool { return m.visible }

// Current returns the notification on screen.
func (m Model) Current() (model.Notification, bool) {
	return m.current, m.visible
}

// View renders the toast, or an empty string when hidden.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	n := m.current
	icon := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.SeverityColor(n.Severity)).
		Render(theme.SeverityIcon(n.Severity))

	body := icon + " " + n.Message
	if n.Persistent {
		body += "  " + theme.HelpStyle.Render("x to dismiss")
	}

	width := m.width / 2
	if width < 30 {
		width = 30
	}
	return theme.ToastStyle(n.Severity).MaxWidth(width).Render(body)
}

// SetSize updates the available width.
func (m *Model) SetSize(width int) {
	m.width = width
}
