package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Notifications.Capacity != 100 {
		t.Errorf("capacity = %d, want 100", cfg.Notifications.Capacity)
	}
	if got := cfg.Notifications.ToastDuration(); got != 6*time.Second {
		t.Errorf("toast duration = %v, want 6s", got)
	}
	if cfg.Channels.Email.Transport != "mock" || cfg.Channels.SMS.Transport != "mock" {
		t.Errorf("transports = %q/%q, want mock", cfg.Channels.Email.Transport, cfg.Channels.SMS.Transport)
	}
	if cfg.API.Enabled {
		t.Error("API should be disabled by default")
	}
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
storage:
  driver: redis
  redis_url: redis://localhost:6379/2
notifications:
  capacity: 0
  toast_duration_ms: 2500
reminders:
  poll_interval_sec: 15
channels:
  sms:
    transport: http
    gateway_url: https://sms.example.com/send
api:
  enabled: true
contacts:
  - id: hr@example.com
    name: HR Team
    email: hr@example.com
    phone: "+15550100"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.Driver != "redis" || cfg.Storage.RedisURL != "redis://localhost:6379/2" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Notifications.Capacity != 100 {
		t.Errorf("non-positive capacity should fall back to 100, got %d", cfg.Notifications.Capacity)
	}
	if cfg.Notifications.ToastDurationMS != 2500 {
		t.Errorf("toast_duration_ms = %d", cfg.Notifications.ToastDurationMS)
	}
	if cfg.Reminders.PollIntervalSec != 15 {
		t.Errorf("poll interval = %d", cfg.Reminders.PollIntervalSec)
	}
	if cfg.Channels.SMS.Transport != "http" || cfg.Channels.Email.Transport != "mock" {
		t.Errorf("channels = %+v", cfg.Channels)
	}
	if !cfg.API.Enabled || cfg.API.Addr != ":8087" {
		t.Errorf("api = %+v", cfg.API)
	}
	if len(cfg.Contacts) != 1 || cfg.Contacts[0].Phone != "+15550100" {
		t.Errorf("contacts = %+v", cfg.Contacts)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("IMS_API_JWT_SECRET", "from-env")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.JWTSecret != "from-env" {
		t.Errorf("jwt secret = %q, want from-env", cfg.API.JWTSecret)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.Reminders.PollIntervalSec = 30
	cfg.Display.Theme = "light"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Reminders.PollIntervalSec != 30 || got.Display.Theme != "light" {
		t.Errorf("round trip = %+v", got)
	}
}
