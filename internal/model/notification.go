package model

import "time"

// Severity classifies a notification for display.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeveritySuccess, SeverityError, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// Notification is a single entry of the notification center.
type Notification struct {
	// ID is a time-ordered unique identifier.
	ID string `json:"id"`

	// Message is the display text.
	Message string `json:"message"`

	// Severity controls toast and drawer styling.
	Severity Severity `json:"severity"`

	// Timestamp is when the notification was created.
	Timestamp time.Time `json:"timestamp"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// Persistent notifications do not auto-dismiss as a toast.
	Persistent bool `json:"persistent"`

	// Action is an opaque reference to a UI affordance attached to the
	// notification (e.g. "open:/hr/interviews").
	Action string `json:"action,omitempty"`
}
