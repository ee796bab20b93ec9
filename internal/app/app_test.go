package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/internal/store"
	appsync "github.com/nhle/ims-notify/internal/sync"
	"github.com/nhle/ims-notify/internal/theme"
	"github.com/nhle/ims-notify/internal/ui/command"
	"github.com/nhle/ims-notify/internal/ui/settings"
	"github.com/nhle/ims-notify/tests/testutil"
)

func newTestModel(t *testing.T) (Model, Services) {
	t.Helper()
	kv := testutil.NewTestStore(t)
	center := notify.New(kv)
	engine := reminder.New(kv, reminder.DelivererFunc(func(context.Context, reminder.Notice) []model.Channel {
		return nil
	}))
	svc := Services{
		KV:     kv,
		Center: center,
		Engine: engine,
		Poller: appsync.New(engine, time.Hour),
	}

	m := New(svc)
	t.Cleanup(m.unsubscribe)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), svc
}

func press(m Model, s string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch s {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestApp_BellTogglesDrawer(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(m, "b")
	if !m.drawerOpen {
		t.Fatal("drawer closed after b")
	}
	m, _ = press(m, "b")
	if m.drawerOpen {
		t.Fatal("drawer open after second b")
	}

	m, _ = press(m, "b")
	m, _ = press(m, "esc")
	if m.drawerOpen {
		t.Error("esc did not close the drawer")
	}
}

func TestApp_BellWorksFromDetail(t *testing.T) {
	m, _ := newTestModel(t)
	m.currentView = ViewDetail

	m, _ = press(m, "b")
	if !m.drawerOpen {
		t.Error("drawer did not open from the detail view")
	}
}

func TestApp_NotificationShowsToast(t *testing.T) {
	m, svc := newTestModel(t)

	if _, err := svc.Center.Warning(context.Background(), "Server maintenance at 22:00", notify.Options{}); err != nil {
		t.Fatalf("Warning: %v", err)
	}

	msg := m.waitForNotification()()
	next, _ := m.Update(msg)
	m = next.(Model)

	cur, ok := m.toast.Current()
	if !ok || cur.Message != "Server maintenance at 22:00" {
		t.Fatalf("toast = %+v, visible %v", cur, ok)
	}

	m, _ = press(m, "x")
	if m.toast.Visible() {
		t.Error("x did not dismiss the toast")
	}
}

func TestApp_ThemeTogglePersists(t *testing.T) {
	m, svc := newTestModel(t)
	t.Cleanup(func() { theme.Apply(theme.ModeDark) })

	m, cmd := press(m, "T")
	if m.Mode() != theme.ModeLight {
		t.Fatalf("mode = %q, want light", m.Mode())
	}
	cmd()

	v, ok, err := svc.KV.Get(context.Background(), store.KeyThemeMode)
	if err != nil || !ok || v != "light" {
		t.Errorf("persisted theme = %q, %v, %v", v, ok, err)
	}

	// A fresh model picks the persisted value up.
	fresh := New(svc)
	t.Cleanup(fresh.unsubscribe)
	next, _ := fresh.Update(fresh.loadTheme()())
	if next.(Model).Mode() != theme.ModeLight {
		t.Error("persisted theme not restored")
	}
}

func TestApp_NotifyCommand(t *testing.T) {
	m, svc := newTestModel(t)
	m.previousView = ViewReminders
	m.currentView = ViewCommand

	next, cmd := m.Update(command.CommandMsg{Name: command.CmdNotify, Args: []string{"hello team"}, Severity: model.SeverityInfo})
	m = next.(Model)
	if m.currentView != ViewReminders {
		t.Errorf("view = %v, want reminders", m.currentView)
	}
	if cmd == nil {
		t.Fatal("notify produced no command")
	}
	cmd()

	list := svc.Center.List()
	if len(list) != 1 || list[0].Severity != model.SeverityInfo || list[0].Message != "hello team" {
		t.Errorf("center = %+v", list)
	}
}

func TestApp_CommandErrorBecomesNotification(t *testing.T) {
	m, svc := newTestModel(t)
	m.currentView = ViewCommand

	_, err := command.Parse("reboot")
	next, cmd := m.Update(command.ErrorMsg{Err: err})
	_ = next
	cmd()

	list := svc.Center.List()
	if len(list) != 1 || list[0].Severity != model.SeverityError {
		t.Errorf("center = %+v", list)
	}
}

func TestApp_ScheduleReportsSuccess(t *testing.T) {
	m, svc := newTestModel(t)

	cmd := m.scheduleReminder(reminder.Spec{
		Type:       model.ReminderMeeting,
		Title:      "Mentor sync",
		TargetDate: time.Now().Add(2 * time.Hour),
	})
	if _, ok := cmd().(refreshMsg); !ok {
		t.Fatal("schedule did not request a refresh")
	}

	if n := len(svc.Engine.List()); n != 1 {
		t.Fatalf("engine has %d reminders", n)
	}
	list := svc.Center.List()
	if len(list) != 1 || list[0].Severity != model.SeveritySuccess {
		t.Errorf("center = %+v", list)
	}

	// Invalid input surfaces as an error notification.
	cmd = m.scheduleReminder(reminder.Spec{Type: model.ReminderMeeting})
	cmd()
	if got := svc.Center.List()[0].Severity; got != model.SeverityError {
		t.Errorf("severity = %q, want error", got)
	}
}

func runBatch(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			runBatch(c)
		}
	}
}

func TestApp_SettingsView(t *testing.T) {
	m, svc := newTestModel(t)

	m, _ = press(m, "S")
	if m.currentView != ViewSettings {
		t.Fatalf("view = %v, want ViewSettings", m.currentView)
	}

	next, cmd := m.Update(settings.SavedMsg{Key: "api.jwt_secret", Label: "API signing secret"})
	m = next.(Model)
	runBatch(cmd)
	list := svc.Center.List()
	if len(list) != 1 || list[0].Severity != model.SeveritySuccess {
		t.Fatalf("notifications = %+v", list)
	}

	m, cmd = press(m, "esc")
	if cmd == nil {
		t.Fatal("esc in settings returned no command")
	}
	next, _ = m.Update(cmd())
	if next.(Model).currentView != ViewReminders {
		t.Errorf("view after esc = %v", next.(Model).currentView)
	}
}

func TestApp_ExternalMarkReadRefreshesBadge(t *testing.T) {
	m, svc := newTestModel(t)
	ctx := context.Background()

	if _, err := svc.Center.Info(ctx, "Interview in 1 hour", notify.Options{}); err != nil {
		t.Fatalf("Info: %v", err)
	}
	next, _ := m.Update(m.waitForNotification()())
	next, _ = next.(Model).Update(next.(Model).drawer.Reload()())
	m = next.(Model)
	if m.drawer.Unread() != 1 {
		t.Fatalf("unread = %d, want 1", m.drawer.Unread())
	}

	// Another client marks everything read.
	if err := svc.Center.MarkAllAsRead(ctx); err != nil {
		t.Fatalf("MarkAllAsRead: %v", err)
	}
	msg := m.waitForNotification()()
	if ev := msg.(notificationMsg).event; ev.Kind != notify.EventChanged {
		t.Fatalf("kind = %v, want EventChanged", ev.Kind)
	}
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		t.Fatal("change event produced no reload")
	}
	if cur, ok := m.toast.Current(); !ok || cur.Message != "Interview in 1 hour" {
		t.Errorf("toast replaced by change event: %+v, visible %v", cur, ok)
	}

	next, _ = m.Update(m.drawer.Reload()())
	if got := next.(Model).drawer.Unread(); got != 0 {
		t.Errorf("unread after external mark-all = %d, want 0", got)
	}
}
