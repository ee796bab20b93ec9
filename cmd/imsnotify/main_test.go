package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/tests/testutil"
)

func TestBuildFanout_PushWithoutServiceAccount(t *testing.T) {
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Channels.Email.ConfirmDelayMS = 0
	cfg.Channels.SMS.ConfirmDelayMS = 0
	if cfg.Channels.Push.ServiceAccountPath != "" {
		t.Fatalf("default config has a service account: %q", cfg.Channels.Push.ServiceAccountPath)
	}

	kv := testutil.NewTestStore(t)
	center := notify.New(kv)
	fanout := buildFanout(t.Context(), cfg, nil, center, kv)

	spec := reminder.Interview{
		Candidate:  "Ana Pereira",
		Position:   "Backend intern",
		At:         time.Now().Add(time.Hour),
		Recipients: []string{"hr@example.com"},
	}.Spec()

	failed := fanout.Dispatch(t.Context(), reminder.Notice{
		ReminderID: "rem-1",
		Type:       spec.Type,
		Kind:       model.DeliveryMain,
		Title:      spec.Title,
		Message:    spec.Message,
		TargetDate: spec.TargetDate,
		Recipients: spec.Recipients,
		Channels:   spec.Channels,
		Priority:   spec.Priority,
	})
	if len(failed) != 0 {
		t.Fatalf("failed channels = %v, want none", failed)
	}

	attempts, err := kv.ListDeliveries(t.Context(), "rem-1", 10)
	if err != nil {
		t.Fatalf("ListDeliveries: %v", err)
	}
	if len(attempts) != len(spec.Channels) {
		t.Fatalf("attempts = %d, want %d", len(attempts), len(spec.Channels))
	}
	for _, a := range attempts {
		if !a.OK {
			t.Errorf("%s attempt recorded as failed: %s", a.Channel, a.Error)
		}
	}
	if len(center.List()) != 1 {
		t.Errorf("in-app notifications = %d, want 1", len(center.List()))
	}
}
