package delivery

import (
	"context"
	"log"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/notify"
)

// Notifier is the part of the notification center used by the in-app
// channel.
type Notifier interface {
	Show(ctx context.Context, message string, severity model.Severity, opts notify.Options) (string, error)
}

// InApp delivers into the notification center.
type InApp struct {
	center Notifier
}

// NewInApp creates the in-app channel.
func NewInApp(center Notifier) *InApp {
	return &InApp{center: center}
}

// Name returns model.ChannelInApp.
func (c *InApp) Name() model.Channel { return model.ChannelInApp }

// Deliver shows msg as a notification. High priority messages become
// persistent warnings; everything else is informational. A notification
// that was shown but could not be persisted still counts as delivered.
func (c *InApp) Deliver(ctx context.Context, msg Message) error {
	severity := model.SeverityInfo
	opts := notify.Options{}
	if msg.Priority == model.PriorityHigh {
		severity = model.SeverityWarning
		opts.Persistent = true
	}
	if msg.ReminderID != "" {
		opts.Action = "reminder:" + msg.ReminderID
	}

	if _, err := c.center.Show(ctx, msg.Text(), severity, opts); err != nil {
		log.Printf("delivery: in-app notification for %s not persisted: %v", msg.ReminderID, err)
	}
	return nil
}
