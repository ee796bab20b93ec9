// Package notify implements the notification center: a bounded,
// newest-first list of notifications with an unread counter, snapshotted to
// the key-value store on every mutation.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/store"
)

const (
	// DefaultCapacity is the maximum number of notifications retained.
	DefaultCapacity = 100

	// DefaultToastDuration is the auto-hide delay for non-persistent toasts.
	DefaultToastDuration = 6000 * time.Millisecond
)

// Options are the recognized per-notification settings.
type Options struct {
	// Persistent keeps the toast on screen until explicitly dismissed.
	Persistent bool

	// Duration overrides the default auto-hide delay. Ignored when
	// Persistent is set.
	Duration time.Duration

	// Action is an opaque UI affordance reference stored with the record.
	Action string
}

// EventKind distinguishes new notifications from other list mutations.
type EventKind int

const (
	// EventCreated carries a newly shown notification.
	EventCreated EventKind = iota

	// EventChanged reports that notifications were read, deleted or
	// cleared. Notification is empty.
	EventChanged
)

// Event is published to subscribers whenever the list changes.
type Event struct {
	Kind         EventKind
	Notification model.Notification

	// AutoHide is how long the toast stays visible; zero means until
	// dismissed.
	AutoHide time.Duration
}

// Center is the notification store. It is safe for concurrent use.
type Center struct {
	kv            store.KV
	capacity      int
	toastDuration time.Duration
	now           func() time.Time

	mu            gosync.Mutex
	notifications []model.Notification
	unread        int

	subMu       gosync.RWMutex
	subscribers map[int]chan Event
	nextSubID   int
}

// Option configures a Center.
type Option func(*Center)

// WithCapacity overrides the maximum number of retained notifications.
func WithCapacity(n int) Option {
	return func(c *Center) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithToastDuration overrides the default toast auto-hide delay.
func WithToastDuration(d time.Duration) Option {
	return func(c *Center) {
		if d > 0 {
			c.toastDuration = d
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// New creates an empty Center backed by kv. Call Load to rehydrate the
// persisted snapshot.
func New(kv store.KV, opts ...Option) *Center {
	c := &Center{
		kv:            kv,
		capacity:      DefaultCapacity,
		toastDuration: DefaultToastDuration,
		now:           time.Now,
		subscribers:   make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the persisted snapshot. Malformed data is discarded and the
// center starts empty; only storage failures are returned.
func (c *Center) Load(ctx context.Context) error {
	raw, ok, err := c.kv.Get(ctx, store.KeyNotifications)
	if err != nil {
		return fmt.Errorf("loading notifications: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifications = nil
	c.unread = 0
	if !ok {
		return nil
	}

	var list []model.Notification
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		log.Printf("notify: discarding malformed %s snapshot: %v", store.KeyNotifications, err)
		return nil
	}

	if len(list) > c.capacity {
		list = list[:c.capacity]
	}
	c.notifications = list
	c.unread = countUnread(list)
	return nil
}

// Show creates a notification, prepends it, and publishes it to
// subscribers for toast presentation. An empty severity means success.
// The returned id is valid even when persisting fails.
func (c *Center) Show(
	ctx context.Context,
	message string,
	severity model.Severity,
	opts Options,
) (string, error) {
	if severity == "" {
		severity = model.SeveritySuccess
	}

	n := model.Notification{
		ID:         newID(),
		Message:    message,
		Severity:   severity,
		Timestamp:  c.now().UTC(),
		Persistent: opts.Persistent,
		Action:     opts.Action,
	}

	c.mu.Lock()
	c.notifications = append([]model.Notification{n}, c.notifications...)
	if len(c.notifications) > c.capacity {
		c.notifications = c.notifications[:c.capacity]
	}
	c.unread = countUnread(c.notifications)
	err := c.persistLocked(ctx)
	c.mu.Unlock()

	autoHide := c.toastDuration
	if opts.Duration > 0 {
		autoHide = opts.Duration
	}
	if opts.Persistent {
		autoHide = 0
	}
	c.publish(Event{Kind: EventCreated, Notification: n, AutoHide: autoHide})

	return n.ID, err
}

// Success shows a success notification.
func (c *Center) Success(ctx context.Context, message string, opts Options) (string, error) {
	return c.Show(ctx, message, model.SeveritySuccess, opts)
}

// Error shows an error notification.
func (c *Center) Error(ctx context.Context, message string, opts Options) (string, error) {
	return c.Show(ctx, message, model.SeverityError, opts)
}

// Warning shows a warning notification.
func (c *Center) Warning(ctx context.Context, message string, opts Options) (string, error) {
	return c.Show(ctx, message, model.SeverityWarning, opts)
}

// Info shows an informational notification.
func (c *Center) Info(ctx context.Context, message string, opts Options) (string, error) {
	return c.Show(ctx, message, model.SeverityInfo, opts)
}

// MarkAsRead marks one notification read. Unknown ids are ignored.
func (c *Center) MarkAsRead(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.changed()
	defer c.mu.Unlock()

	for i := range c.notifications {
		if c.notifications[i].ID != id {
			continue
		}
		if !c.notifications[i].Read {
			c.notifications[i].Read = true
			c.decrementLocked()
		}
		break
	}
	return c.persistLocked(ctx)
}

// MarkAllAsRead marks every notification read.
func (c *Center) MarkAllAsRead(ctx context.Context) error {
	c.mu.Lock()
	defer c.changed()
	defer c.mu.Unlock()

	for i := range c.notifications {
		c.notifications[i].Read = true
	}
	c.unread = 0
	return c.persistLocked(ctx)
}

// Delete removes one notification. Unknown ids are ignored.
func (c *Center) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.changed()
	defer c.mu.Unlock()

	for i, n := range c.notifications {
		if n.ID != id {
			continue
		}
		c.notifications = append(c.notifications[:i:i], c.notifications[i+1:]...)
		if !n.Read {
			c.decrementLocked()
		}
		break
	}
	return c.persistLocked(ctx)
}

// ClearAll empties the center and removes the persisted snapshot.
func (c *Center) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.changed()
	defer c.mu.Unlock()

	c.notifications = nil
	c.unread = 0
	if err := c.kv.Remove(ctx, store.KeyNotifications); err != nil {
		log.Printf("notify: clearing snapshot: %v", err)
		return fmt.Errorf("clearing notifications: %w", err)
	}
	return nil
}

// List returns a copy of the notifications, newest first.
func (c *Center) List() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// Get returns the notification with the given id.
func (c *Center) Get(id string) (model.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.notifications {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// UnreadCount returns the number of unread notifications.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Subscribe registers a listener for list changes. Publishing never
// blocks: a subscriber that falls behind loses its oldest buffered events,
// so the most recent notification is always delivered. The returned cancel
// function unregisters and closes the channel.
func (c *Center) Subscribe() (<-chan Event, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Event, 16)
	c.subscribers[id] = ch

	var once gosync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subscribers, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Center) publish(ev Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, ch := range c.subscribers {
		offer(ch, ev)
	}
}

// changed publishes an EventChanged. Call it after releasing c.mu.
func (c *Center) changed() {
	c.publish(Event{Kind: EventChanged})
}

// offer sends ev on ch, evicting the oldest buffered event while ch is
// full. A change event is dropped instead when ch is full, since any event
// already queued makes the subscriber reload.
func offer(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		if ev.Kind == EventChanged {
			return
		}
		select {
		case old := <-ch:
			if old.Kind == EventCreated {
				log.Printf("notify: subscriber behind, dropping event %s", old.Notification.ID)
			}
		default:
		}
	}
}

// decrementLocked lowers the unread counter without going below zero.
func (c *Center) decrementLocked() {
	if c.unread > 0 {
		c.unread--
	}
}

// persistLocked writes the full list to the store. Failures are logged and
// returned; the in-memory state is kept either way.
func (c *Center) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(c.notifications)
	if err != nil {
		return fmt.Errorf("marshaling notifications: %w", err)
	}
	if err := c.kv.Set(ctx, store.KeyNotifications, string(data)); err != nil {
		log.Printf("notify: persisting snapshot: %v", err)
		return fmt.Errorf("persisting notifications: %w", err)
	}
	return nil
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

// newID returns a UUIDv7: a millisecond timestamp followed by random bits.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
