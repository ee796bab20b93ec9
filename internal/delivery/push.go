package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/nhle/ims-notify/internal/model"
)

// PushSender sends a single FCM message. *messaging.Client implements it.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Push sends Firebase Cloud Messaging notifications to recipients that have
// registered a device token.
type Push struct {
	client PushSender
}

// NewPush initializes FCM from a service account file. Push is disabled,
// not failed, when no service account is configured or initialization
// fails.
func NewPush(ctx context.Context, serviceAccountPath string) *Push {
	if serviceAccountPath == "" {
		log.Println("push: no service account configured, push notifications disabled")
		return &Push{}
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.Printf("push: initializing Firebase app: %v", err)
		return &Push{}
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Printf("push: getting messaging client: %v", err)
		return &Push{}
	}

	log.Println("push: notifications enabled")
	return &Push{client: client}
}

// NewPushWithSender creates a push channel around an existing sender.
func NewPushWithSender(s PushSender) *Push {
	return &Push{client: s}
}

// Enabled reports whether push delivery is configured.
func (c *Push) Enabled() bool { return c.client != nil }

// Name returns model.ChannelPush.
func (c *Push) Name() model.Channel { return model.ChannelPush }

// Deliver pushes msg to every recipient with a device token. Without a
// configured client, or for recipients without a token, it does nothing.
func (c *Push) Deliver(ctx context.Context, msg Message) error {
	if c.client == nil {
		return nil
	}

	data := map[string]string{
		"reminder_id": msg.ReminderID,
		"kind":        string(msg.Kind),
		"type":        string(msg.Type),
	}

	var errs []error
	for _, rcpt := range msg.Recipients {
		if rcpt.PushToken == "" {
			continue
		}
		m := &messaging.Message{
			Token: rcpt.PushToken,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: data,
		}
		if msg.Priority == model.PriorityHigh {
			m.Android = &messaging.AndroidConfig{Priority: "high"}
		}
		if _, err := c.client.Send(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("pushing to %s: %w", rcpt.ID, err))
		}
	}
	return errors.Join(errs...)
}
