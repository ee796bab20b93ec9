package reminders

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/theme"
)

// Item wraps a reminder so it can be used in a bubbles/list.
type Item struct {
	Reminder *model.Reminder
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Reminder.Title }

// Delegate implements list.ItemDelegate for reminder rows.
type Delegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a reminder row: type, title, status and priority on the
// first line; target time, channels and recurrence on the second.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	r := it.Reminder
	isSelected := index == m.Index()

	typeLabel := theme.TypeLabelStyle(r.Type).Render(typeName(r.Type))
	status := theme.StatusStyle(r.Status).Render(string(r.Status))
	priority := theme.PriorityStyle(r.Priority).Render(string(r.Priority))

	titleWidth := m.Width() - lipgloss.Width(typeLabel) - lipgloss.Width(status) - lipgloss.Width(priority) - 8
	if titleWidth < 10 {
		titleWidth = 10
	}
	title := lipgloss.NewStyle().Bold(true).MaxWidth(titleWidth).Render(r.Title)

	line1 := fmt.Sprintf("%s %s  %s %s", typeLabel, title, status, priority)

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	meta := []string{
		r.TargetDate.Local().Format("Mon Jan 02 15:04"),
		untilLabel(r.TargetDate, now()),
		channelList(r.Channels),
	}
	if r.Recurring && r.RecurringPattern != nil {
		meta = append(meta, "↻ "+recurrenceLabel(*r.RecurringPattern))
	}
	if pending := pendingAdvance(r); pending > 0 {
		meta = append(meta, fmt.Sprintf("%d advance pending", pending))
	}
	line2 := lipgloss.NewStyle().Foreground(theme.ColorGray).Render("  " + strings.Join(meta, " · "))

	content := line1 + "\n" + line2
	if isSelected {
		content = theme.SelectedItemStyle.Render(content)
	} else {
		content = theme.ListItemStyle.Render(content)
	}

	fmt.Fprint(w, content)
}

func typeName(t model.ReminderType) string {
	switch t {
	case model.ReminderInterview:
		return "INTERVIEW"
	case model.ReminderTaskDeadline:
		return "DEADLINE"
	case model.ReminderEvaluation:
		return "EVAL"
	case model.ReminderMeeting:
		return "MEETING"
	case model.ReminderDocumentSubmission:
		return "DOCS"
	case model.ReminderTrainingSession:
		return "TRAINING"
	case model.ReminderSystemMaintenance:
		return "MAINT"
	default:
		return strings.ToUpper(string(t))
	}
}

func channelList(chs []model.Channel) string {
	names := make([]string, len(chs))
	for i, c := range chs {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}

func recurrenceLabel(p model.RecurringPattern) string {
	unit := strings.TrimSuffix(string(p.Type), "ly")
	if p.Type == model.RecurDaily {
		unit = "day"
	}
	label := "every " + unit
	if p.Interval > 1 {
		label = fmt.Sprintf("every %d %ss", p.Interval, unit)
	}
	if p.EndDate != nil {
		label += " until " + p.EndDate.Local().Format("Jan 02")
	}
	return label
}

func pendingAdvance(r *model.Reminder) int {
	n := 0
	for _, a := range r.AdvanceNotifications {
		if !a.Sent {
			n++
		}
	}
	return n
}

// untilLabel returns a human-friendly distance to t.
func untilLabel(t, now time.Time) string {
	d := t.Sub(now)
	if d < 0 {
		d = -d
		switch {
		case d < time.Minute:
			return "just now"
		case d < time.Hour:
			return fmt.Sprintf("%dm ago", int(d.Minutes()))
		case d < 24*time.Hour:
			return fmt.Sprintf("%dh ago", int(d.Hours()))
		default:
			return fmt.Sprintf("%dd ago", int(d.Hours()/24))
		}
	}
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	default:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	}
}
