package drawer

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/theme"
)

// Item wraps a notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Message }

// Delegate implements list.ItemDelegate for notification rows.
type Delegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a notification as a message line and a meta line.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	isSelected := index == m.Index()

	icon := lipgloss.NewStyle().
		Foreground(theme.SeverityColor(n.Severity)).
		Render(theme.SeverityIcon(n.Severity))

	marker := " "
	msgStyle := lipgloss.NewStyle()
	if !n.Read {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
		msgStyle = msgStyle.Bold(true)
	} else {
		msgStyle = msgStyle.Foreground(theme.ColorGray)
	}

	width := m.Width() - 6
	if width < 10 {
		width = 10
	}
	message := msgStyle.MaxWidth(width).Render(n.Message)

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	meta := relativeTime(n.Timestamp, now())
	if n.Persistent {
		meta += " · pinned"
	}
	if isSelected && !n.Read {
		meta += " · m mark read"
	}
	metaLine := lipgloss.NewStyle().Foreground(theme.ColorGray).Render("   " + meta)

	line := fmt.Sprintf("%s %s %s\n%s", marker, icon, message, metaLine)
	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 02 15:04")
	}
}
