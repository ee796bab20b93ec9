// Package reminders is the reminder list view.
package reminders

import (
	"context"
	"sort"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/keys"
	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/theme"
)

// Engine is the part of the reminder engine the list view drives.
type Engine interface {
	List() []*model.Reminder
	Cancel(ctx context.Context, id string) error
}

// LoadedMsg is sent when reminders have been read from the engine.
type LoadedMsg struct {
	Reminders []*model.Reminder
}

// SelectedMsg is sent when the user opens a reminder.
type SelectedMsg struct {
	Reminder *model.Reminder
}

// CancelledMsg reports the outcome of a cancel action.
type CancelledMsg struct {
	ID    string
	Title string
	Err   error
}

// filters defines the status filters cycled by Tab. Empty means all.
var filters = []model.ReminderStatus{
	"",
	model.ReminderScheduled,
	model.ReminderSent,
	model.ReminderCancelled,
}

// Model is the reminder list view component.
type Model struct {
	list        list.Model
	engine      Engine
	keys        *keys.KeyMap
	filterIndex int
	width       int
	height      int
}

// New creates a new reminder list.
func New(e Engine, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height-2)
	l.Title = "Reminders"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		engine: e,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init loads the initial set of reminders.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Load returns a command that reads reminders matching the current
// filter, ordered by target date.
func (m Model) Load() tea.Cmd {
	e := m.engine
	status := filters[m.filterIndex]
	return func() tea.Msg {
		all := e.List()
		out := make([]*model.Reminder, 0, len(all))
		for _, r := range all {
			if status == "" || r.Status == status {
				out = append(out, r)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].TargetDate.Before(out[j].TargetDate)
		})
		return LoadedMsg{Reminders: out}
	}
}

// Update handles messages for the reminder list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		items := make([]list.Item, len(msg.Reminders))
		for i, r := range msg.Reminders {
			items[i] = Item{Reminder: r}
		}
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
	case key.Matches(msg, m.keys.Select):
		r, ok := m.Selected()
		if ok {
			return m, func() tea.Msg { return SelectedMsg{Reminder: r} }
		}
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		r, ok := m.Selected()
		if !ok || r.Status != model.ReminderScheduled {
			return m, nil
		}
		e := m.engine
		return m, func() tea.Msg {
			err := e.Cancel(context.Background(), r.ID)
			return CancelledMsg{ID: r.ID, Title: r.Title, Err: err}
		}

	case key.Matches(msg, m.keys.CycleFilter):
		m.filterIndex = (m.filterIndex + 1) % len(filters)
		m.list.Title = "Reminders" + filterSuffix(filters[m.filterIndex])
		m.list.ResetSelected()
		return m, m.Load()
	}

	// Delegate to list for navigation keys
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func filterSuffix(s model.ReminderStatus) string {
	if s == "" {
		return ""
	}
	return " · " + string(s)
}

// Selected returns the highlighted reminder.
func (m Model) Selected() (*model.Reminder, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return nil, false
	}
	return it.Reminder, true
}

// Filter returns the active status filter; empty means all.
func (m Model) Filter() model.ReminderStatus {
	return filters[m.filterIndex]
}

// View renders the reminder list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	msg := "No reminders scheduled.\n\nPress n to create one."
	if s := filters[m.filterIndex]; s != "" {
		msg = "No " + string(s) + " reminders.\n\nPress tab to change the filter."
	}
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(msg)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
