// Package delivery fans due reminders out to their delivery channels. Each
// channel is invoked independently; a failure or panic in one never stops
// the others.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/internal/store"
)

// ErrChannelUnavailable is reported for a channel with no registered
// implementation.
var ErrChannelUnavailable = errors.New("channel unavailable")

// ChannelError wraps a failure of a single channel.
type ChannelError struct {
	Channel model.Channel
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("delivering via %s: %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// IsChannelError reports whether err (or any error in its chain) is a
// ChannelError.
func IsChannelError(err error) bool {
	var chErr *ChannelError
	return errors.As(err, &chErr)
}

// AuthError indicates that a transport rejected its credentials.
type AuthError struct {
	Channel model.Channel
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Channel, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Message is the channel-independent content of one delivery.
type Message struct {
	ReminderID string
	Type       model.ReminderType
	Kind       model.DeliveryKind
	Title      string
	Body       string
	Priority   model.Priority
	TargetDate time.Time
	Recipients []model.Contact
}

// Text renders the message as a single line.
func (m Message) Text() string {
	switch {
	case m.Title == "":
		return m.Body
	case m.Body == "":
		return m.Title
	default:
		return m.Title + ": " + m.Body
	}
}

// Channel delivers messages through one medium.
type Channel interface {
	Name() model.Channel
	Deliver(ctx context.Context, msg Message) error
}

// Result is the outcome of one channel delivery.
type Result struct {
	Channel model.Channel
	Err     error
}

// Fanout routes messages to registered channels.
type Fanout struct {
	channels map[model.Channel]Channel
	contacts model.Directory
	log      store.DeliveryLog
	now      func() time.Time
}

// NewFanout creates a Fanout resolving recipients through contacts and
// recording attempts in dl. dl may be nil.
func NewFanout(contacts model.Directory, dl store.DeliveryLog, channels ...Channel) *Fanout {
	f := &Fanout{
		channels: make(map[model.Channel]Channel),
		contacts: contacts,
		log:      dl,
		now:      time.Now,
	}
	for _, ch := range channels {
		f.Register(ch)
	}
	return f
}

// Register adds or replaces the implementation of a channel.
func (f *Fanout) Register(ch Channel) {
	f.channels[ch.Name()] = ch
}

// Deliver sends msg through each channel in order and returns one result
// per channel.
func (f *Fanout) Deliver(ctx context.Context, msg Message, channels []model.Channel) []Result {
	results := make([]Result, 0, len(channels))
	for _, name := range channels {
		err := f.deliverOne(ctx, name, msg)
		if err != nil {
			log.Printf("delivery: %s for reminder %s failed: %v", name, msg.ReminderID, err)
		}
		f.record(ctx, msg, name, err)
		results = append(results, Result{Channel: name, Err: err})
	}
	return results
}

// Dispatch delivers a due reminder notice and returns the channels that
// failed.
func (f *Fanout) Dispatch(ctx context.Context, n reminder.Notice) []model.Channel {
	msg := Message{
		ReminderID: n.ReminderID,
		Type:       n.Type,
		Kind:       n.Kind,
		Title:      n.Title,
		Body:       n.Message,
		Priority:   n.Priority,
		TargetDate: n.TargetDate,
		Recipients: make([]model.Contact, 0, len(n.Recipients)),
	}
	for _, id := range n.Recipients {
		msg.Recipients = append(msg.Recipients, f.contacts.Resolve(id))
	}

	var failed []model.Channel
	for _, r := range f.Deliver(ctx, msg, n.Channels) {
		if r.Err != nil {
			failed = append(failed, r.Channel)
		}
	}
	return failed
}

func (f *Fanout) deliverOne(ctx context.Context, name model.Channel, msg Message) (err error) {
	ch, ok := f.channels[name]
	if !ok {
		return &ChannelError{Channel: name, Err: ErrChannelUnavailable}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ChannelError{Channel: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := ch.Deliver(ctx, msg); err != nil {
		return &ChannelError{Channel: name, Err: err}
	}
	return nil
}

func (f *Fanout) record(ctx context.Context, msg Message, name model.Channel, err error) {
	if f.log == nil || msg.ReminderID == "" {
		return
	}
	a := store.DeliveryAttempt{
		ReminderID:  msg.ReminderID,
		Kind:        string(msg.Kind),
		Channel:     string(name),
		OK:          err == nil,
		AttemptedAt: f.now().UTC(),
	}
	if err != nil {
		a.Error = err.Error()
	}
	if recErr := f.log.RecordDelivery(ctx, a); recErr != nil {
		log.Printf("delivery: recording attempt: %v", recErr)
	}
}
