package toast_test

import (
	"strings"
	"testing"
	"time"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/ui/toast"
)

func event(id, msg string, autoHide time.Duration) notify.Event {
	return notify.Event{
		Notification: model.Notification{ID: id, Message: msg, Severity: model.SeverityInfo, Persistent: autoHide == 0},
		AutoHide:     autoHide,
	}
}

func TestToast_LastWriteWins(t *testing.T) {
	m := toast.New(80)

	first := m.Show(event("a", "first", 10*time.Millisecond))
	m.Show(event("b", "second", time.Second))

	cur, ok := m.Current()
	if !ok || cur.ID != "b" {
		t.Fatalf("current = %+v, want second toast", cur)
	}
	if !strings.Contains(m.View(), "second") || strings.Contains(m.View(), "first") {
		t.Errorf("view = %q", m.View())
	}

	// The first toast's timer fires after it was replaced.
	m, _ = m.Update(first())
	if !m.Visible() {
		t.Error("stale timer hid the newer toast")
	}
}

func TestToast_AutoHide(t *testing.T) {
	m := toast.New(80)
	cmd := m.Show(event("a", "saved", time.Millisecond))
	if cmd == nil {
		t.Fatal("no timer armed for a non-persistent toast")
	}

	m, _ = m.Update(cmd())
	if m.Visible() {
		t.Error("toast still visible after its timer fired")
	}
	if m.View() != "" {
		t.Errorf("hidden toast rendered %q", m.View())
	}
}

func TestToast_PersistentArmsNoTimer(t *testing.T) {
	m := toast.New(80)
	if cmd := m.Show(event("a", "interview now", 0)); cmd != nil {
		t.Error("persistent toast armed a timer")
	}
	if !strings.Contains(m.View(), "x to dismiss") {
		t.Errorf("persistent toast view = %q", m.View())
	}

	m.Dismiss()
	if m.Visible() {
		t.Error("toast visible after Dismiss")
	}
}

func TestToast_DismissInvalidatesTimer(t *testing.T) {
	m := toast.New(80)
	old := m.Show(event("a", "one", time.Millisecond))
	m.Dismiss()
	m.Show(event("b", "two", 0))

	m, _ = m.Update(old())
	if !m.Visible() {
		t.Error("timer from a dismissed toast hid the next one")
	}
}
