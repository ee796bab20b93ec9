package delivery_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nhle/ims-notify/internal/delivery"
	"github.com/nhle/ims-notify/internal/model"
)

func TestHTTPGateway_Send(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []delivery.GatewayRequest
		auth     []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req delivery.GatewayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		mu.Lock()
		requests = append(requests, req)
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(delivery.GatewayResponse{ID: "sms-1", Status: "queued"})
	}))
	defer srv.Close()

	ch := delivery.NewSMS(delivery.NewHTTPGateway(srv.URL, "secret-token"))
	err := ch.Deliver(t.Context(), delivery.Message{
		ReminderID: "rem-9",
		Title:      "Deadline",
		Body:       strings.Repeat("x", 400),
		Recipients: []model.Contact{
			{ID: "a", Phone: "+84900000001"},
			{ID: "b", Email: "b@example.com"},
		},
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(requests) != 1 {
		t.Fatalf("gateway got %d requests, want 1", len(requests))
	}
	req := requests[0]
	if req.To != "+84900000001" || req.Reference != "rem-9" {
		t.Errorf("request = %+v", req)
	}
	if n := len([]rune(req.Message)); n != 320 {
		t.Errorf("message length = %d, want truncated to 320", n)
	}
	if auth[0] != "Bearer secret-token" {
		t.Errorf("Authorization = %q", auth[0])
	}
}

func TestHTTPGateway_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantAuth bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantAuth: true},
		{name: "forbidden", status: http.StatusForbidden, wantAuth: true},
		{name: "server error", status: http.StatusBadGateway, wantAuth: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			err := delivery.NewHTTPGateway(srv.URL, "").Send(t.Context(), "+1", "hi", "")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := delivery.IsAuthError(err); got != tc.wantAuth {
				t.Errorf("IsAuthError = %v, want %v (err %v)", got, tc.wantAuth, err)
			}
		})
	}
}
