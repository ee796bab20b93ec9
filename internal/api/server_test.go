package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/ims-notify/internal/api"
	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/internal/store"
	"github.com/nhle/ims-notify/tests/testutil"
)

const secret = "test-secret"

type harness struct {
	handler http.Handler
	center  *notify.Center
	engine  *reminder.Engine
	token   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv := testutil.NewTestStore(t)
	center := notify.New(kv)
	engine := reminder.New(kv, reminder.DelivererFunc(func(ctx context.Context, n reminder.Notice) []model.Channel {
		_, _ = center.Info(ctx, n.Message, notify.Options{})
		return nil
	}))

	srv, err := api.NewServer(":0", secret, center, engine, kv)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	token, err := api.GenerateJWT(secret, "hr-1", "hr", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return &harness{handler: srv.Handler(), center: center, engine: engine, token: token}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNewServer_RequiresSecret(t *testing.T) {
	if _, err := api.NewServer(":0", "", nil, nil, nil); err == nil {
		t.Error("NewServer accepted an empty secret")
	}
}

func TestAuth(t *testing.T) {
	h := newHarness(t)
	other, _ := api.GenerateJWT("other-secret", "x", "intern", time.Hour)
	expired, _ := api.GenerateJWT(secret, "x", "intern", -time.Minute)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"valid", h.token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", other, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hh := *h
			hh.token = tc.token
			if rec := hh.do(t, http.MethodGet, "/api/v1/notifications", nil); rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}

	h.token = ""
	if rec := h.do(t, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestNotifications(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/notifications", map[string]any{
		"message": "Server maintenance at 22:00", "severity": "warning",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	created := decode[model.Notification](t, rec)
	if created.ID == "" || created.Severity != model.SeverityWarning || created.Read {
		t.Errorf("created = %+v", created)
	}

	if rec := h.do(t, http.MethodPost, "/api/v1/notifications", map[string]any{"message": "x", "severity": "fatal"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad severity status = %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPost, "/api/v1/notifications", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing message status = %d", rec.Code)
	}

	count := decode[map[string]int](t, h.do(t, http.MethodGet, "/api/v1/notifications/unread-count", nil))
	if count["unread"] != 1 {
		t.Errorf("unread = %d, want 1", count["unread"])
	}

	if rec := h.do(t, http.MethodPut, "/api/v1/notifications/"+created.ID+"/read", nil); rec.Code != http.StatusOK {
		t.Errorf("mark read status = %d", rec.Code)
	}
	if h.center.UnreadCount() != 0 {
		t.Errorf("center unread = %d", h.center.UnreadCount())
	}
	if rec := h.do(t, http.MethodPut, "/api/v1/notifications/nope/read", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d", rec.Code)
	}

	if rec := h.do(t, http.MethodDelete, "/api/v1/notifications/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if len(h.center.List()) != 0 {
		t.Error("notification not deleted")
	}
}

func TestReminders_Lifecycle(t *testing.T) {
	h := newHarness(t)
	target := time.Now().Add(3 * time.Hour).UTC().Truncate(time.Second)

	rec := h.do(t, http.MethodPost, "/api/v1/reminders", map[string]any{
		"type": "meeting", "title": "Mentor sync", "targetDate": target,
		"advanceNotifications": []map[string]any{{"minutesBefore": 60}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	r := decode[model.Reminder](t, rec)
	if r.Status != model.ReminderScheduled || len(r.AdvanceNotifications) != 1 {
		t.Errorf("created = %+v", r)
	}

	title := "Mentor sync (moved)"
	rec = h.do(t, http.MethodPatch, "/api/v1/reminders/"+r.ID, map[string]any{"title": title})
	if rec.Code != http.StatusOK || decode[model.Reminder](t, rec).Title != title {
		t.Errorf("patch status = %d: %s", rec.Code, rec.Body)
	}

	if rec := h.do(t, http.MethodPost, "/api/v1/reminders/"+r.ID+"/cancel", nil); rec.Code != http.StatusOK {
		t.Errorf("cancel status = %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPatch, "/api/v1/reminders/"+r.ID, map[string]any{"title": "again"}); rec.Code != http.StatusConflict {
		t.Errorf("patch after cancel status = %d, want 409", rec.Code)
	}
	if rec := h.do(t, http.MethodGet, "/api/v1/reminders/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d", rec.Code)
	}

	list := decode[[]model.Reminder](t, h.do(t, http.MethodGet, "/api/v1/reminders?status=cancelled", nil))
	if len(list) != 1 {
		t.Errorf("cancelled list = %d items", len(list))
	}
}

func TestReminders_Validation(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/v1/reminders", map[string]any{
		"type": "party", "title": "x", "targetDate": time.Now().Add(time.Hour),
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d: %s", rec.Code, rec.Body)
	}
}

func TestReminders_TypedAndCheck(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/reminders/kind/interview", map[string]any{
		"candidate": "Ana Pereira", "position": "Backend Intern",
		"at": time.Now().Add(-time.Minute), "recipients": []string{"hr@example.com"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("interview status = %d: %s", rec.Code, rec.Body)
	}
	r := decode[model.Reminder](t, rec)
	if r.Priority != model.PriorityHigh || r.Type != model.ReminderInterview {
		t.Errorf("interview = %+v", r)
	}

	if rec := h.do(t, http.MethodPost, "/api/v1/reminders/kind/party", map[string]any{}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d", rec.Code)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/reminders/check", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d", rec.Code)
	}
	res := decode[map[string]any](t, rec)
	if res["delivered"].(float64) < 1 {
		t.Errorf("check result = %v", res)
	}
	if got, _ := h.engine.Get(r.ID); got.Status != model.ReminderSent {
		t.Errorf("status after check = %q", got.Status)
	}

	if rec := h.do(t, http.MethodGet, "/api/v1/reminders/"+r.ID+"/deliveries", nil); rec.Code != http.StatusOK {
		t.Errorf("deliveries status = %d", rec.Code)
	}
}

type readOnlyKV struct{ store.KV }

func (readOnlyKV) Set(context.Context, string, string) error { return errors.New("read-only file system") }

func TestReminders_CreateSurvivesSnapshotFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	kv := testutil.NewTestStore(t)
	center := notify.New(kv)
	engine := reminder.New(readOnlyKV{KV: kv}, nil)

	srv, err := api.NewServer(":0", secret, center, engine, kv)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	token, _ := api.GenerateJWT(secret, "hr-1", "hr", time.Hour)
	h := &harness{handler: srv.Handler(), center: center, engine: engine, token: token}

	rec := h.do(t, http.MethodPost, "/api/v1/reminders", map[string]any{
		"type":       "meeting",
		"title":      "Onboarding",
		"targetDate": time.Now().Add(time.Hour).UTC(),
		"channels":   []string{"in_app"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	created := decode[model.Reminder](t, rec)
	if _, ok := engine.Get(created.ID); !ok {
		t.Error("created reminder missing from the engine")
	}
	if n := len(engine.List()); n != 1 {
		t.Errorf("reminders = %d, want 1", n)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/reminders/"+created.ID+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("cancel status = %d, want 200", rec.Code)
	}
}
