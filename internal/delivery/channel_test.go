package delivery_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nhle/ims-notify/internal/delivery"
	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/tests/testutil"
)

type fakeChannel struct {
	name  model.Channel
	err   error
	panic bool

	mu   sync.Mutex
	msgs []delivery.Message
}

func (c *fakeChannel) Name() model.Channel { return c.name }

func (c *fakeChannel) Deliver(_ context.Context, msg delivery.Message) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	if c.panic {
		panic("transport exploded")
	}
	return c.err
}

func (c *fakeChannel) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestFanout_IsolatesFailures(t *testing.T) {
	boom := errors.New("permission denied")
	email := &fakeChannel{name: model.ChannelEmail, panic: true}
	push := &fakeChannel{name: model.ChannelPush, err: boom}
	inApp := &fakeChannel{name: model.ChannelInApp}

	f := delivery.NewFanout(nil, nil, email, push, inApp)
	results := f.Deliver(t.Context(), delivery.Message{Title: "t"}, []model.Channel{
		model.ChannelEmail, model.ChannelPush, model.ChannelSMS, model.ChannelInApp,
	})

	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	if inApp.calls() != 1 {
		t.Errorf("in_app delivered %d times, want 1", inApp.calls())
	}

	tests := []struct {
		name    string
		result  delivery.Result
		channel model.Channel
		check   func(error) bool
	}{
		{name: "panic recovered", result: results[0], channel: model.ChannelEmail, check: delivery.IsChannelError},
		{name: "error wrapped", result: results[1], channel: model.ChannelPush, check: func(err error) bool { return errors.Is(err, boom) }},
		{name: "unregistered", result: results[2], channel: model.ChannelSMS, check: func(err error) bool { return errors.Is(err, delivery.ErrChannelUnavailable) }},
		{name: "healthy", result: results[3], channel: model.ChannelInApp, check: func(err error) bool { return err == nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.result.Channel != tc.channel {
				t.Errorf("Channel = %s, want %s", tc.result.Channel, tc.channel)
			}
			if !tc.check(tc.result.Err) {
				t.Errorf("unexpected error %v", tc.result.Err)
			}
		})
	}

	var chErr *delivery.ChannelError
	if !errors.As(results[1].Err, &chErr) || chErr.Channel != model.ChannelPush {
		t.Errorf("push error = %#v, want *ChannelError for push", results[1].Err)
	}
}

func TestFanout_DispatchResolvesRecipientsAndRecords(t *testing.T) {
	s := testutil.NewTestStore(t)
	dir := model.NewDirectory([]model.Contact{
		{ID: "mentor-1", Name: "An", Email: "an@example.com", PushToken: "tok-1"},
	})
	email := &fakeChannel{name: model.ChannelEmail}
	sms := &fakeChannel{name: model.ChannelSMS, err: errors.New("gateway down")}
	f := delivery.NewFanout(dir, s, email, sms)

	failed := f.Dispatch(t.Context(), reminder.Notice{
		ReminderID: "rem-1",
		Type:       model.ReminderMeeting,
		Kind:       model.DeliveryAdvance,
		Title:      "Weekly sync",
		Message:    "in 1 hour",
		TargetDate: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		Recipients: []string{"mentor-1", "+84901234567"},
		Channels:   []model.Channel{model.ChannelEmail, model.ChannelSMS},
		Priority:   model.PriorityLow,
	})

	if !reflect.DeepEqual(failed, []model.Channel{model.ChannelSMS}) {
		t.Errorf("failed = %v, want [sms]", failed)
	}

	msg := email.msgs[0]
	if msg.Body != "in 1 hour" || msg.Kind != model.DeliveryAdvance {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.Recipients) != 2 || msg.Recipients[0].Email != "an@example.com" || msg.Recipients[1].Phone != "+84901234567" {
		t.Errorf("recipients = %+v", msg.Recipients)
	}

	attempts, err := s.ListDeliveries(t.Context(), "rem-1", 10)
	if err != nil {
		t.Fatalf("ListDeliveries: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("recorded %d attempts, want 2", len(attempts))
	}
	byChannel := map[string]bool{}
	for _, a := range attempts {
		byChannel[a.Channel] = a.OK
		if a.Kind != string(model.DeliveryAdvance) {
			t.Errorf("Kind = %q, want advance", a.Kind)
		}
	}
	if !byChannel["email"] || byChannel["sms"] {
		t.Errorf("attempt outcomes = %v, want email ok and sms failed", byChannel)
	}
}

func TestMessage_Text(t *testing.T) {
	tests := []struct {
		msg  delivery.Message
		want string
	}{
		{msg: delivery.Message{Title: "Deadline", Body: "API docs due"}, want: "Deadline: API docs due"},
		{msg: delivery.Message{Title: "Deadline"}, want: "Deadline"},
		{msg: delivery.Message{Body: "API docs due"}, want: "API docs due"},
	}
	for _, tc := range tests {
		if got := tc.msg.Text(); got != tc.want {
			t.Errorf("Text() = %q, want %q", got, tc.want)
		}
	}
}
