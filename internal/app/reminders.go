package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/reminder"
)

const scheduled = model.ReminderScheduled

// detailRefreshedMsg carries a fresh copy of the reminder in the detail view.
type detailRefreshedMsg struct {
	reminder *model.Reminder
}

// defaultTarget is the prefilled target of a new reminder: the next full
// hour at least 30 minutes away.
func defaultTarget() time.Time {
	return time.Now().Add(30 * time.Minute).Truncate(time.Hour).Add(time.Hour)
}

// scheduleReminder returns a command that schedules spec and reports the
// outcome through the notification center.
func (m Model) scheduleReminder(spec reminder.Spec) tea.Cmd {
	e := m.svc.Engine
	c := m.svc.Center
	return func() tea.Msg {
		ctx := context.Background()
		r, err := e.Schedule(ctx, spec)
		if err != nil {
			_, _ = c.Error(ctx, "Could not schedule reminder: "+err.Error(), notifyOpts())
			return refreshMsg{}
		}
		_, _ = c.Success(ctx, "Reminder scheduled: "+r.Title, notifyOpts())
		return refreshMsg{}
	}
}

// updateReminder returns a command that applies patch to reminder id.
func (m Model) updateReminder(id string, patch reminder.Patch) tea.Cmd {
	e := m.svc.Engine
	c := m.svc.Center
	return func() tea.Msg {
		ctx := context.Background()
		r, err := e.Update(ctx, id, patch)
		switch {
		case errors.Is(err, reminder.ErrNotScheduled):
			_, _ = c.Warning(ctx, "Reminder was already sent or cancelled", notifyOpts())
		case err != nil:
			_, _ = c.Error(ctx, "Could not update reminder: "+err.Error(), notifyOpts())
		default:
			_, _ = c.Success(ctx, "Reminder updated: "+r.Title, notifyOpts())
		}
		return refreshMsg{}
	}
}

// cancelReminder cancels id and refreshes the detail view if it shows it.
func (m Model) cancelReminder(id string) tea.Cmd {
	e := m.svc.Engine
	c := m.svc.Center
	return func() tea.Msg {
		ctx := context.Background()
		if err := e.Cancel(ctx, id); err != nil {
			_, _ = c.Error(ctx, "Could not cancel reminder: "+err.Error(), notifyOpts())
		} else {
			_, _ = c.Success(ctx, "Reminder cancelled", notifyOpts())
		}
		r, _ := e.Get(id)
		return detailRefreshedMsg{reminder: r}
	}
}

// refreshDetail re-reads the reminder shown in the detail view.
func (m Model) refreshDetail() tea.Cmd {
	cur := m.detail.Reminder()
	if cur == nil {
		return nil
	}
	e := m.svc.Engine
	id := cur.ID
	return func() tea.Msg {
		r, _ := e.Get(id)
		return detailRefreshedMsg{reminder: r}
	}
}
