package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/internal/theme"
	"github.com/nhle/ims-notify/internal/ui/command"
)

func notifyOpts() notify.Options { return notify.Options{} }

// executeCommand runs a parsed command palette entry.
func (m *Model) executeCommand(msg command.CommandMsg) tea.Cmd {
	c := m.svc.Center
	e := m.svc.Engine

	switch msg.Name {
	case command.CmdCheck:
		return m.svc.Poller.Trigger()

	case command.CmdReadAll:
		return func() tea.Msg {
			if err := c.MarkAllAsRead(context.Background()); err != nil {
				_, _ = c.Error(context.Background(), "Could not save notifications: "+err.Error(), notifyOpts())
			}
			return refreshMsg{}
		}

	case command.CmdClear:
		return func() tea.Msg {
			if err := c.ClearAll(context.Background()); err != nil {
				_, _ = c.Error(context.Background(), "Could not clear notifications: "+err.Error(), notifyOpts())
			}
			return refreshMsg{}
		}

	case command.CmdNotify:
		text := msg.Args[0]
		sev := msg.Severity
		return func() tea.Msg {
			_, _ = c.Show(context.Background(), text, sev, notifyOpts())
			return nil
		}

	case command.CmdCancel:
		id := msg.Args[0]
		return func() tea.Msg {
			ctx := context.Background()
			switch err := e.Cancel(ctx, id); {
			case errors.Is(err, reminder.ErrNotFound):
				_, _ = c.Warning(ctx, "No reminder with id "+id, notifyOpts())
			case err != nil:
				_, _ = c.Error(ctx, "Could not cancel reminder: "+err.Error(), notifyOpts())
			default:
				_, _ = c.Success(ctx, "Reminder cancelled", notifyOpts())
			}
			return refreshMsg{}
		}

	case command.CmdTheme:
		mode := m.mode.Toggle()
		if len(msg.Args) == 1 {
			mode = theme.ParseMode(msg.Args[0])
		}
		return m.setTheme(mode)

	case command.CmdQuit:
		return m.quit()
	}

	return nil
}
