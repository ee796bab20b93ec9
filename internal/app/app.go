package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/keys"
	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/internal/store"
	appsync "github.com/nhle/ims-notify/internal/sync"
	"github.com/nhle/ims-notify/internal/theme"
	"github.com/nhle/ims-notify/internal/ui"
	"github.com/nhle/ims-notify/internal/ui/command"
	"github.com/nhle/ims-notify/internal/ui/detail"
	"github.com/nhle/ims-notify/internal/ui/drawer"
	helpview "github.com/nhle/ims-notify/internal/ui/help"
	"github.com/nhle/ims-notify/internal/ui/reminderform"
	"github.com/nhle/ims-notify/internal/ui/reminders"
	"github.com/nhle/ims-notify/internal/ui/settings"
	"github.com/nhle/ims-notify/internal/ui/toast"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewReminders ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
	ViewReminderCreate
	ViewReminderEdit
	ViewSettings
)

// Services are the long-lived components the UI drives.
type Services struct {
	KV     store.KV
	Center *notify.Center
	Engine *reminder.Engine
	Poller *appsync.Poller

	// Credentials is nil when no keyring is available.
	Credentials settings.Credentials
	Verifiers   map[string]settings.Verifier
}

// notificationMsg carries a notification published by the center.
type notificationMsg struct {
	event notify.Event
}

// refreshMsg asks every projection of service state to reload.
type refreshMsg struct{}

// Model is the root Bubble Tea model that manages view routing,
// layout, the toast slot and the notification drawer.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	svc          Services
	keys         *keys.KeyMap

	reminders   reminders.Model
	detail      detail.Model
	helpView    helpview.Model
	commandView command.Model
	formView    reminderform.Model
	drawer      drawer.Model
	toast       toast.Model
	settings    settings.Model

	events      <-chan notify.Event
	unsubscribe func()

	drawerOpen bool
	mode       theme.Mode
	ready      bool
}

// New creates the root model and subscribes it to the notification center.
func New(svc Services) Model {
	k := keys.DefaultKeyMap()
	events, unsub := svc.Center.Subscribe()

	return Model{
		currentView: ViewReminders,
		svc:         svc,
		keys:        k,
		reminders:   reminders.New(svc.Engine, k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		formView:    reminderform.New(80, 24),
		drawer:      drawer.New(svc.Center, k, 36, 24),
		toast:       toast.New(80),
		settings:    settings.New(svc.Credentials, svc.Verifiers, k, 80, 24),
		events:      events,
		unsubscribe: unsub,
		mode:        theme.ModeDark,
	}
}

// Init loads the persisted theme and the reminder list, and starts
// listening for notifications and check results.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadTheme(),
		m.reminders.Init(),
		m.drawer.Init(),
		m.waitForNotification(),
		m.svc.Poller.Start(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case themeLoadedMsg:
		m.mode = msg.mode
		theme.Apply(m.mode)
		return m, nil

	case notificationMsg:
		if msg.event.Kind == notify.EventChanged {
			return m, tea.Batch(m.drawer.Reload(), m.waitForNotification())
		}
		cmd := m.toast.Show(msg.event)
		return m, tea.Batch(cmd, m.drawer.Reload(), m.waitForNotification())

	case toast.HideMsg:
		m.toast, _ = m.toast.Update(msg)
		return m, nil

	case drawer.LoadedMsg:
		var cmd tea.Cmd
		m.drawer, cmd = m.drawer.Update(msg)
		return m, cmd

	case drawer.ErrorMsg:
		return m, m.reportError("Notification update failed", msg.Err)

	case refreshMsg:
		return m, tea.Batch(m.reminders.Load(), m.drawer.Reload())

	case appsync.CheckResultMsg:
		cmds := []tea.Cmd{m.reminders.Load(), m.svc.Poller.WaitForNextResult()}
		if msg.Error != nil {
			cmds = append(cmds, m.reportError("Reminder check failed", msg.Error))
		}
		if m.currentView == ViewDetail {
			cmds = append(cmds, m.refreshDetail())
		}
		return m, tea.Batch(cmds...)

	case reminders.LoadedMsg:
		var cmd tea.Cmd
		m.reminders, cmd = m.reminders.Update(msg)
		return m, cmd

	case reminders.SelectedMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetReminder(msg.Reminder)
		return m, nil

	case reminders.CancelledMsg:
		if msg.Err != nil {
			return m, tea.Batch(m.reportError("Could not cancel reminder", msg.Err), m.reminders.Load())
		}
		return m, tea.Batch(m.report("Reminder cancelled: "+msg.Title), m.reminders.Load())

	case detail.BackMsg:
		m.currentView = ViewReminders
		return m, m.reminders.Load()

	case detail.CancelMsg:
		return m, m.cancelReminder(msg.ID)

	case detailRefreshedMsg:
		if msg.reminder != nil {
			m.detail.SetReminder(msg.reminder)
		}
		return m, nil

	case reminderform.SubmittedMsg:
		m.currentView = ViewReminders
		return m, m.scheduleReminder(msg.Spec)

	case reminderform.UpdatedMsg:
		m.currentView = ViewReminders
		return m, m.updateReminder(msg.ID, msg.Patch)

	case reminderform.CancelMsg:
		m.currentView = ViewReminders
		return m, nil

	case settings.DoneMsg:
		m.currentView = ViewReminders
		return m, nil

	case settings.SavedMsg:
		var cmd tea.Cmd
		m.settings, cmd = m.settings.Update(msg)
		if msg.Err != nil {
			return m, tea.Batch(cmd, m.reportError("Could not save "+msg.Label, msg.Err))
		}
		return m, tea.Batch(cmd, m.report(msg.Label+" saved to the keyring"))

	case settings.DeletedMsg:
		var cmd tea.Cmd
		m.settings, cmd = m.settings.Update(msg)
		if msg.Err != nil {
			return m, tea.Batch(cmd, m.reportError("Could not remove "+msg.Label, msg.Err))
		}
		return m, tea.Batch(cmd, m.report(msg.Label+" removed from the keyring"))

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(msg)
		return m, cmd

	case command.ErrorMsg:
		m.currentView = m.previousView
		return m, m.reportError("Command failed", msg.Err)

	case tea.KeyMsg:
		if model, cmd, handled := m.handleGlobalKeys(msg); handled {
			return model, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKeys processes keys that work regardless of the active view.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m, m.quit(), true
	}

	// Text-entry views own every other key. The settings view closes its
	// own forms.
	if m.isTyping() {
		if key.Matches(msg, m.keys.Back) && m.currentView != ViewSettings {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Bell):
		m.drawerOpen = !m.drawerOpen
		m.resize()
		if m.drawerOpen {
			return m, m.drawer.Reload(), true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Dismiss) && m.toast.Visible():
		m.toast.Dismiss()
		return m, nil, true

	case key.Matches(msg, m.keys.ToggleTheme):
		cmd := m.setTheme(m.mode.Toggle())
		return m, cmd, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true
	}

	if m.drawerOpen {
		if key.Matches(msg, m.keys.Back) {
			m.drawerOpen = false
			m.resize()
			return m, nil, true
		}
		var cmd tea.Cmd
		m.drawer, cmd = m.drawer.Update(msg)
		return m, cmd, true
	}

	switch m.currentView {
	case ViewHelp:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil, true
		}

	case ViewReminders:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, m.quit(), true

		case key.Matches(msg, m.keys.Refresh):
			return m, m.svc.Poller.Trigger(), true

		case key.Matches(msg, m.keys.NewReminder):
			m.previousView = m.currentView
			m.currentView = ViewReminderCreate
			cmd := m.formView.StartCreate(defaultTarget())
			return m, cmd, true

		case key.Matches(msg, m.keys.Settings):
			m.previousView = m.currentView
			m.currentView = ViewSettings
			return m, m.settings.Init(), true

		case key.Matches(msg, m.keys.Edit):
			r, ok := m.reminders.Selected()
			if ok && r.Status == scheduled {
				m.previousView = m.currentView
				m.currentView = ViewReminderEdit
				cmd := m.formView.StartEdit(r)
				return m, cmd, true
			}
			return m, nil, true
		}
	}

	return m, nil, false
}

// isTyping reports whether the active view is a text entry.
func (m Model) isTyping() bool {
	switch m.currentView {
	case ViewCommand, ViewReminderCreate, ViewReminderEdit:
		return true
	case ViewSettings:
		return m.settings.Typing()
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewReminders:
		m.reminders, cmd = m.reminders.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewReminderCreate, ViewReminderEdit:
		m.formView, cmd = m.formView.Update(msg)
	case ViewSettings:
		m.settings, cmd = m.settings.Update(msg)
	}

	return m, cmd
}

// resize recomputes every sub-view's dimensions from the layout.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	contentWidth := m.layout.Width
	contentHeight := m.layout.ContentHeight()
	if m.drawerOpen {
		contentWidth -= m.layout.DrawerWidth()
	}

	m.reminders.SetSize(contentWidth, contentHeight)
	m.detail.SetSize(contentWidth, contentHeight)
	m.helpView.SetSize(contentWidth, contentHeight)
	m.commandView.SetSize(contentWidth, contentHeight)
	m.formView.SetSize(contentWidth, contentHeight)
	m.settings.SetSize(contentWidth, contentHeight)
	m.drawer.SetSize(m.layout.DrawerWidth(), contentHeight)
	m.toast.SetSize(m.layout.Width)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Internship Reminders", m.pollStatus(), m.drawer.Unread())

	content := m.renderContent()
	if t := m.toast.View(); t != "" {
		content = lipgloss.JoinVertical(lipgloss.Right, t, content)
	}
	if m.drawerOpen {
		content = m.layout.RenderWithDrawer(content, m.drawer.View())
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewReminders:
		return m.reminders.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewReminderCreate, ViewReminderEdit:
		return m.formView.View()
	case ViewSettings:
		return m.settings.View()
	default:
		return ""
	}
}

// pollStatus returns a short string describing the due-check loop.
func (m Model) pollStatus() string {
	s := m.svc.Poller.Status()
	switch s.State {
	case appsync.PollRunning:
		return "checking..."
	case appsync.PollError:
		return "⚠ check failed"
	}
	if s.LastCheck.IsZero() {
		return "waiting"
	}
	return fmt.Sprintf("checked %s · %d sent", s.LastCheck.Local().Format("15:04"), s.Delivered)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.drawerOpen && !m.isTyping() {
		return "b close | m read | M all read | d delete | D clear all | j/k move"
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		return "esc back | c cancel | j/k scroll | b notifications"
	case ViewReminderCreate, ViewReminderEdit:
		return "enter next | shift+tab back | esc cancel"
	case ViewSettings:
		if m.settings.Typing() {
			return "enter confirm | esc cancel"
		}
		return "enter set | d remove | t test | esc back"
	default:
		hints := "q quit | ? help | n new | e edit | c cancel | tab filter | r check | b notifications | S credentials"
		if m.toast.Visible() {
			hints = "x dismiss | " + hints
		}
		return hints
	}
}

// waitForNotification returns a command that blocks until the center
// publishes the next event.
func (m Model) waitForNotification() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg{event: ev}
	}
}

func (m Model) quit() tea.Cmd {
	m.svc.Poller.Stop()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return tea.Quit
}

// report posts a success notification.
func (m Model) report(message string) tea.Cmd {
	c := m.svc.Center
	return func() tea.Msg {
		_, _ = c.Success(context.Background(), message, notify.Options{})
		return nil
	}
}

// reportError posts an error notification.
func (m Model) reportError(prefix string, err error) tea.Cmd {
	c := m.svc.Center
	return func() tea.Msg {
		_, _ = c.Error(context.Background(), fmt.Sprintf("%s: %v", prefix, err), notify.Options{})
		return nil
	}
}
