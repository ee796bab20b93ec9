// Package drawer is the notification drawer: a scrollable, newest-first
// view over the notification center with per-row and bulk actions.
package drawer

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/keys"
	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/theme"
)

// Center is the part of the notification center the drawer drives.
type Center interface {
	List() []model.Notification
	UnreadCount() int
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
}

// LoadedMsg carries a fresh snapshot of the notification center.
type LoadedMsg struct {
	Notifications []model.Notification
	Unread        int
}

// ErrorMsg reports a failed drawer action.
type ErrorMsg struct {
	Err error
}

// Model is the drawer view.
type Model struct {
	list   list.Model
	center Center
	keys   *keys.KeyMap
	unread int
	width  int
	height int
}

// New creates a drawer over center.
func New(center Center, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width-4, height-4)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		center: center,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init loads the current notifications.
func (m Model) Init() tea.Cmd {
	return m.Reload()
}

// Reload returns a tea.Cmd that snapshots the notification center.
func (m Model) Reload() tea.Cmd {
	c := m.center
	return func() tea.Msg {
		return LoadedMsg{Notifications: c.List(), Unread: c.UnreadCount()}
	}
}

// Update handles messages for the drawer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		items := make([]list.Item, len(msg.Notifications))
		for i, n := range msg.Notifications {
			items[i] = Item{Notification: n}
		}
		m.unread = msg.Unread
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.Selected()
		if !ok || n.Read {
			return m, nil
		}
		return m, m.apply(func(ctx context.Context) error { return m.center.MarkAsRead(ctx, n.ID) })

	case key.Matches(msg, m.keys.Delete):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, m.apply(func(ctx context.Context) error { return m.center.Delete(ctx, n.ID) })

	case key.Matches(msg, m.keys.MarkAllRead):
		if m.unread == 0 {
			return m, nil
		}
		return m, m.apply(m.center.MarkAllAsRead)

	case key.Matches(msg, m.keys.ClearAll):
		if len(m.list.Items()) == 0 {
			return m, nil
		}
		return m, m.apply(m.center.ClearAll)
	}

	// Delegate to the list for navigation keys
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// apply runs a center mutation and reloads the snapshot. Failures are
// reported, but the reload still happens since the in-memory state
// changed.
func (m Model) apply(op func(ctx context.Context) error) tea.Cmd {
	c := m.center
	return func() tea.Msg {
		if err := op(context.Background()); err != nil {
			return tea.BatchMsg{
				func() tea.Msg { return ErrorMsg{Err: err} },
				func() tea.Msg { return LoadedMsg{Notifications: c.List(), Unread: c.UnreadCount()} },
			}
		}
		return LoadedMsg{Notifications: c.List(), Unread: c.UnreadCount()}
	}
}

// Selected returns the highlighted notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Unread returns the unread count of the last snapshot.
func (m Model) Unread() int { return m.unread }

// View renders the drawer.
func (m Model) View() string {
	var body string
	if len(m.list.Items()) == 0 {
		body = m.renderEmptyState()
	} else {
		body = m.list.View()
	}

	hints := theme.HelpStyle.Render("m read · M all read · d delete · D clear · esc close")
	if m.unread > 0 {
		hints = theme.HelpStyle.Render(fmt.Sprintf("%d unread · ", m.unread)) + hints
	}

	return theme.PanelStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, body, hints))
}

// renderEmptyState shows the placeholder for an empty drawer.
func (m Model) renderEmptyState() string {
	return lipgloss.NewStyle().
		Width(m.width - 4).
		Height(m.height - 5).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render("No notifications.\n\nYou're all caught up.")
}

// SetSize updates the drawer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width-4, height-5)
}
