package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/keys"
	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// CancelMsg asks the parent to cancel the displayed reminder.
type CancelMsg struct {
	ID string
}

// Model is the reminder detail view component.
type Model struct {
	reminder *model.Reminder
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Cancel):
			if m.reminder != nil && m.reminder.Status == model.ReminderScheduled {
				id := m.reminder.ID
				return m, func() tea.Msg { return CancelMsg{ID: id} }
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.reminder == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No reminder selected")
	}
	return m.viewport.View()
}

// renderContent builds the detail content string for the viewport.
func (m Model) renderContent() string {
	r := m.reminder
	if r == nil {
		return ""
	}

	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(r.Title))

	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.TypeLabelStyle(r.Type).Render(strings.ToUpper(string(r.Type))), "  ",
		theme.StatusStyle(r.Status).Render(string(r.Status)), "  ",
		theme.PriorityStyle(r.Priority).Render(string(r.Priority)),
	)
	sections = append(sections, badgeLine, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(12)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, metaStyle.Render(label+":")+valStyle.Render(value))
	}

	row("Target", r.TargetDate.Local().Format("2006-01-02 15:04 MST"))
	row("Recipients", strings.Join(r.Recipients, ", "))
	row("Channels", channelNames(r.Channels))
	if r.Recurring && r.RecurringPattern != nil {
		p := r.RecurringPattern
		rec := fmt.Sprintf("%s, every %d", p.Type, p.Interval)
		if p.EndDate != nil {
			rec += ", until " + p.EndDate.Local().Format("2006-01-02")
		}
		row("Repeats", rec)
	}
	row("Created", r.CreatedAt.Local().Format("2006-01-02 15:04"))
	row("Follows", r.PreviousID)
	row("ID", r.ID)

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	muted := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)

	sections = append(sections, "", separator, "", headerStyle.Render("Message"))
	if r.Message != "" {
		sections = append(sections, r.Message)
	} else {
		sections = append(sections, muted.Render("No message"))
	}

	sections = append(sections, "", separator, "", headerStyle.Render(
		fmt.Sprintf("Advance notices (%d)", len(r.AdvanceNotifications)),
	))
	if len(r.AdvanceNotifications) == 0 {
		sections = append(sections, muted.Render("None"))
	}
	for _, a := range r.AdvanceNotifications {
		state := lipgloss.NewStyle().Foreground(theme.ColorYellow).Render("pending")
		if a.Sent {
			state = lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("sent")
		}
		sections = append(sections, fmt.Sprintf("%5d min before  %s  %s",
			a.MinutesBefore, a.ScheduledTime.Local().Format("Jan 02 15:04"), state))
	}

	sections = append(sections, "", separator, "", headerStyle.Render(
		fmt.Sprintf("Delivery history (%d)", len(r.SentNotifications)),
	))
	if len(r.SentNotifications) == 0 {
		sections = append(sections, muted.Render("Nothing sent yet"))
	}
	timeStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	failStyle := lipgloss.NewStyle().Foreground(theme.ColorRed)
	for _, s := range r.SentNotifications {
		line := fmt.Sprintf("%s  %-7s %s",
			timeStyle.Render(s.SentAt.Local().Format("Jan 02 15:04")), s.Kind, channelNames(s.Channels))
		if len(s.Failed) > 0 {
			line += "  " + failStyle.Render("failed: "+channelNames(s.Failed))
		}
		sections = append(sections, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetReminder updates the reminder being displayed and re-renders the content.
func (m *Model) SetReminder(r *model.Reminder) {
	m.reminder = r
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Reminder returns the displayed reminder, if any.
func (m Model) Reminder() *model.Reminder { return m.reminder }

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}

func channelNames(chs []model.Channel) string {
	names := make([]string, len(chs))
	for i, c := range chs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
