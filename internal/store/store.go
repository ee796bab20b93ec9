package store

import (
	"context"
	"time"
)

// Well-known keys. Each holds a JSON snapshot of the corresponding
// in-memory state.
const (
	KeyNotifications      = "notifications"
	KeyScheduledReminders = "scheduledReminders"
	KeyThemeMode          = "theme-mode"
)

// KV is the durable key-value "local storage" that services snapshot their
// state into. Values are opaque strings (JSON in practice).
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	Close() error
}

// DeliveryAttempt records one channel delivery attempt.
type DeliveryAttempt struct {
	ID          int64     `db:"id" json:"id"`
	ReminderID  string    `db:"reminder_id" json:"reminder_id"`
	Kind        string    `db:"kind" json:"kind"`
	Channel     string    `db:"channel" json:"channel"`
	OK          bool      `db:"ok" json:"ok"`
	Error       string    `db:"error" json:"error,omitempty"`
	AttemptedAt time.Time `db:"attempted_at" json:"attempted_at"`
}

// DeliveryLog persists delivery attempts for later inspection.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, a DeliveryAttempt) error
	ListDeliveries(ctx context.Context, reminderID string, limit int) ([]DeliveryAttempt, error)
}
