package notify_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/store"
	"github.com/nhle/ims-notify/tests/testutil"
)

func newCenter(t *testing.T, opts ...notify.Option) (*notify.Center, *store.SQLiteStore) {
	t.Helper()
	kv := testutil.NewTestStore(t)
	c := notify.New(kv, opts...)
	if err := c.Load(t.Context()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c, kv
}

func countUnread(list []model.Notification) int {
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n
}

func TestCenter_CapacityEvictsOldest(t *testing.T) {
	c, _ := newCenter(t)
	ctx := t.Context()

	var ids []string
	for i := 0; i < 101; i++ {
		id, err := c.Info(ctx, fmt.Sprintf("message %d", i), notify.Options{})
		if err != nil {
			t.Fatalf("Info #%d: %v", i, err)
		}
		ids = append(ids, id)
	}

	list := c.List()
	if len(list) != 100 {
		t.Fatalf("len(List) = %d, want 100", len(list))
	}
	if list[0].ID != ids[100] {
		t.Errorf("newest = %s, want %s", list[0].ID, ids[100])
	}
	if _, ok := c.Get(ids[0]); ok {
		t.Error("oldest notification was not evicted")
	}
	if list[99].ID != ids[1] {
		t.Errorf("oldest retained = %s, want %s", list[99].ID, ids[1])
	}
	if c.UnreadCount() != 100 {
		t.Errorf("UnreadCount = %d, want 100", c.UnreadCount())
	}
}

func TestCenter_CustomCapacity(t *testing.T) {
	c, _ := newCenter(t, notify.WithCapacity(3))
	for i := 0; i < 5; i++ {
		c.Info(t.Context(), "x", notify.Options{})
	}
	if got := len(c.List()); got != 3 {
		t.Errorf("len(List) = %d, want 3", got)
	}
}

func TestCenter_UnreadCounterConsistency(t *testing.T) {
	c, _ := newCenter(t, notify.WithCapacity(5))
	ctx := t.Context()

	check := func(step string) {
		t.Helper()
		if got, want := c.UnreadCount(), countUnread(c.List()); got != want {
			t.Fatalf("%s: UnreadCount = %d, records unread = %d", step, got, want)
		}
	}

	var ids []string
	for i := 0; i < 4; i++ {
		id, _ := c.Show(ctx, "n", model.SeverityInfo, notify.Options{})
		ids = append(ids, id)
		check("show")
	}

	c.MarkAsRead(ctx, ids[0])
	check("mark read")
	c.MarkAsRead(ctx, ids[0])
	check("mark read twice")
	c.MarkAsRead(ctx, "unknown")
	check("mark unknown")
	c.Delete(ctx, ids[0])
	check("delete read")
	c.Delete(ctx, ids[1])
	check("delete unread")
	c.Delete(ctx, "unknown")
	check("delete unknown")

	for i := 0; i < 6; i++ {
		c.Show(ctx, "overflow", model.SeverityWarning, notify.Options{})
		check("overflow")
	}

	c.MarkAllAsRead(ctx)
	check("mark all")
	if c.UnreadCount() != 0 {
		t.Errorf("UnreadCount after MarkAllAsRead = %d", c.UnreadCount())
	}

	c.MarkAsRead(ctx, "still-unknown")
	if c.UnreadCount() != 0 {
		t.Errorf("counter went below zero: %d", c.UnreadCount())
	}
}

func TestCenter_MarkAllAsReadIdempotent(t *testing.T) {
	c, kv := newCenter(t)
	ctx := t.Context()
	c.Success(ctx, "a", notify.Options{})
	c.Error(ctx, "b", notify.Options{})

	c.MarkAllAsRead(ctx)
	once := c.List()
	snapOnce, _, _ := kv.Get(ctx, store.KeyNotifications)

	c.MarkAllAsRead(ctx)
	twice := c.List()
	snapTwice, _, _ := kv.Get(ctx, store.KeyNotifications)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("state changed on second MarkAllAsRead")
	}
	if snapOnce != snapTwice {
		t.Errorf("snapshot changed on second MarkAllAsRead")
	}
}

func TestCenter_RoundTripPersistence(t *testing.T) {
	kv := testutil.NewTestStore(t)
	ctx := t.Context()
	clock := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	c := notify.New(kv, notify.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.Success(ctx, "saved", notify.Options{})
	id, _ := c.Warning(ctx, "interview soon", notify.Options{Persistent: true, Action: "open:/hr/interviews"})
	c.Info(ctx, "fyi", notify.Options{})
	c.MarkAsRead(ctx, id)

	reloaded := notify.New(kv)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}

	want, got := c.List(), reloaded.List()
	if len(got) != len(want) {
		t.Fatalf("reloaded %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !want[i].Timestamp.Equal(got[i].Timestamp) {
			t.Errorf("record %d timestamp = %v, want %v", i, got[i].Timestamp, want[i].Timestamp)
		}
		got[i].Timestamp = want[i].Timestamp
		if !reflect.DeepEqual(want[i], got[i]) {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if reloaded.UnreadCount() != c.UnreadCount() {
		t.Errorf("reloaded UnreadCount = %d, want %d", reloaded.UnreadCount(), c.UnreadCount())
	}
}

func TestCenter_MalformedSnapshotStartsEmpty(t *testing.T) {
	kv := testutil.NewTestStore(t)
	testutil.MustSet(t, kv, store.KeyNotifications, `{not json`)

	c := notify.New(kv)
	if err := c.Load(t.Context()); err != nil {
		t.Fatalf("Load returned %v, want nil for malformed data", err)
	}
	if len(c.List()) != 0 || c.UnreadCount() != 0 {
		t.Fatalf("expected empty state, got %d records", len(c.List()))
	}

	c.Info(t.Context(), "fresh", notify.Options{})
	raw, _, _ := kv.Get(t.Context(), store.KeyNotifications)
	if raw == `{not json` {
		t.Error("malformed snapshot was not overwritten on mutation")
	}
}

func TestCenter_ClearAllRemovesKey(t *testing.T) {
	c, kv := newCenter(t)
	ctx := t.Context()
	c.Info(ctx, "a", notify.Options{})
	c.Info(ctx, "b", notify.Options{})

	if err := c.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if len(c.List()) != 0 || c.UnreadCount() != 0 {
		t.Error("center not empty after ClearAll")
	}
	if _, ok, _ := kv.Get(ctx, store.KeyNotifications); ok {
		t.Error("persisted key still present after ClearAll")
	}
}

func TestCenter_DefaultSeverityIsSuccess(t *testing.T) {
	c, _ := newCenter(t)
	id, _ := c.Show(t.Context(), "done", "", notify.Options{})
	n, ok := c.Get(id)
	if !ok || n.Severity != model.SeveritySuccess {
		t.Errorf("severity = %q, want success", n.Severity)
	}
}

func TestCenter_SubscribeAutoHide(t *testing.T) {
	c, _ := newCenter(t, notify.WithToastDuration(2*time.Second))
	events, cancel := c.Subscribe()
	defer cancel()
	ctx := t.Context()

	tests := []struct {
		name string
		opts notify.Options
		want time.Duration
	}{
		{name: "default duration", opts: notify.Options{}, want: 2 * time.Second},
		{name: "override", opts: notify.Options{Duration: 500 * time.Millisecond}, want: 500 * time.Millisecond},
		{name: "persistent never hides", opts: notify.Options{Persistent: true, Duration: time.Second}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, _ := c.Info(ctx, tc.name, tc.opts)
			select {
			case ev := <-events:
				if ev.Notification.ID != id {
					t.Errorf("event for %s, want %s", ev.Notification.ID, id)
				}
				if ev.AutoHide != tc.want {
					t.Errorf("AutoHide = %v, want %v", ev.AutoHide, tc.want)
				}
				if ev.Notification.Persistent != tc.opts.Persistent {
					t.Errorf("Persistent = %v, want %v", ev.Notification.Persistent, tc.opts.Persistent)
				}
			case <-time.After(time.Second):
				t.Fatal("no event published")
			}
		})
	}

	cancel()
	if _, open := <-events; open {
		t.Error("channel still open after cancel")
	}
}

func TestCenter_IDsUniqueWithinMillisecond(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newCenter(t, notify.WithClock(func() time.Time { return fixed }))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, _ := c.Info(t.Context(), "same instant", notify.Options{})
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

type failingKV struct{ store.KV }

func (failingKV) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestCenter_PersistFailureKeepsState(t *testing.T) {
	c := notify.New(failingKV{KV: testutil.NewTestStore(t)})

	id, err := c.Error(t.Context(), "could not save", notify.Options{})
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if _, ok := c.Get(id); !ok {
		t.Error("record missing from memory after persist failure")
	}
	if c.UnreadCount() != 1 {
		t.Errorf("UnreadCount = %d, want 1", c.UnreadCount())
	}
}

func TestCenter_BurstKeepsNewestEvent(t *testing.T) {
	c, _ := newCenter(t)
	events, cancel := c.Subscribe()
	defer cancel()

	var last string
	for i := 1; i <= 20; i++ {
		last, _ = c.Info(t.Context(), fmt.Sprintf("n%d", i), notify.Options{})
	}

	var got notify.Event
	drained := 0
	for len(events) > 0 {
		got = <-events
		drained++
	}
	if drained == 0 || drained >= 20 {
		t.Fatalf("drained %d events, want a full buffer below 20", drained)
	}
	if got.Notification.ID != last || got.Notification.Message != "n20" {
		t.Errorf("last event = %q, want n20", got.Notification.Message)
	}
}

func TestCenter_MutationsPublishChanges(t *testing.T) {
	c, _ := newCenter(t)
	ctx := t.Context()
	id, _ := c.Info(ctx, "first", notify.Options{})
	c.Info(ctx, "second", notify.Options{})

	events, cancel := c.Subscribe()
	defer cancel()

	steps := []struct {
		name string
		run  func() error
	}{
		{name: "mark read", run: func() error { return c.MarkAsRead(ctx, id) }},
		{name: "mark all read", run: func() error { return c.MarkAllAsRead(ctx) }},
		{name: "delete", run: func() error { return c.Delete(ctx, id) }},
		{name: "clear", run: func() error { return c.ClearAll(ctx) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		select {
		case ev := <-events:
			if ev.Kind != notify.EventChanged {
				t.Errorf("%s: kind = %v, want EventChanged", s.name, ev.Kind)
			}
		default:
			t.Errorf("%s: no change event published", s.name)
		}
	}
}

func TestCenter_ChangeNeverEvictsCreated(t *testing.T) {
	c, _ := newCenter(t)
	events, cancel := c.Subscribe()
	defer cancel()
	ctx := t.Context()

	for i := 0; i < 16; i++ {
		c.Info(ctx, fmt.Sprintf("n%d", i), notify.Options{})
	}
	if err := c.MarkAllAsRead(ctx); err != nil {
		t.Fatalf("MarkAllAsRead: %v", err)
	}

	for i := 0; i < 16; i++ {
		ev := <-events
		if ev.Kind != notify.EventCreated {
			t.Fatalf("event %d kind = %v, want EventCreated", i, ev.Kind)
		}
	}
}
