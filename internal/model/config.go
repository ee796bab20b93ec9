package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageConfig selects and configures the key-value backend.
type StorageConfig struct {
	// Driver is "sqlite" (default) or "redis".
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Path     string `mapstructure:"path" yaml:"path"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
}

// NotificationsConfig holds notification center settings.
type NotificationsConfig struct {
	Capacity        int `mapstructure:"capacity" yaml:"capacity"`
	ToastDurationMS int `mapstructure:"toast_duration_ms" yaml:"toast_duration_ms"`
}

// ToastDuration returns the default auto-hide delay.
func (c NotificationsConfig) ToastDuration() time.Duration {
	return time.Duration(c.ToastDurationMS) * time.Millisecond
}

// RemindersConfig holds reminder engine settings.
type RemindersConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// EmailConfig configures the email channel.
type EmailConfig struct {
	// Transport is "mock" (log only) or "imap" (append to a mailbox).
	Transport      string `mapstructure:"transport" yaml:"transport"`
	From           string `mapstructure:"from" yaml:"from"`
	IMAPHost       string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort       string `mapstructure:"imap_port" yaml:"imap_port"`
	Username       string `mapstructure:"username" yaml:"username"`
	Mailbox        string `mapstructure:"mailbox" yaml:"mailbox"`
	TLS            bool   `mapstructure:"tls" yaml:"tls"`
	ConfirmDelayMS int    `mapstructure:"confirm_delay_ms" yaml:"confirm_delay_ms"`
}

// SMSConfig configures the SMS channel.
type SMSConfig struct {
	// Transport is "mock" (log only) or "http" (JSON gateway).
	Transport      string `mapstructure:"transport" yaml:"transport"`
	GatewayURL     string `mapstructure:"gateway_url" yaml:"gateway_url"`
	ConfirmDelayMS int    `mapstructure:"confirm_delay_ms" yaml:"confirm_delay_ms"`
}

// PushConfig configures the push channel. Push is disabled when no service
// account is configured.
type PushConfig struct {
	ServiceAccountPath string `mapstructure:"service_account_path" yaml:"service_account_path"`
}

// ChannelsConfig groups per-channel settings.
type ChannelsConfig struct {
	Email EmailConfig `mapstructure:"email" yaml:"email"`
	SMS   SMSConfig   `mapstructure:"sms" yaml:"sms"`
	Push  PushConfig  `mapstructure:"push" yaml:"push"`
}

// APIConfig configures the companion HTTP API.
type APIConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr      string `mapstructure:"addr" yaml:"addr"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Reminders     RemindersConfig     `mapstructure:"reminders" yaml:"reminders"`
	Channels      ChannelsConfig      `mapstructure:"channels" yaml:"channels"`
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
	Contacts      []Contact           `mapstructure:"contacts" yaml:"contacts"`
}

// ConfigDir returns ~/.config/imsnotify, falling back to the working
// directory when the home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "imsnotify")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/imsnotify/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(ConfigDir(), "imsnotify.db"),
		},
		Notifications: NotificationsConfig{
			Capacity:        100,
			ToastDurationMS: 6000,
		},
		Reminders: RemindersConfig{
			PollIntervalSec: 60,
		},
		Channels: ChannelsConfig{
			Email: EmailConfig{
				Transport:      "mock",
				From:           "noreply@ims.local",
				IMAPPort:       "993",
				Mailbox:        "Reminders",
				TLS:            true,
				ConfirmDelayMS: 1000,
			},
			SMS: SMSConfig{
				Transport:      "mock",
				ConfirmDelayMS: 1500,
			},
		},
		API: APIConfig{
			Addr: ":8087",
		},
		Display: DisplayConfig{
			Theme: "dark",
		},
		Contacts: []Contact{},
	}
}

// setDefaults mirrors defaultAppConfig so missing keys resolve through Viper.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("notifications.capacity", d.Notifications.Capacity)
	v.SetDefault("notifications.toast_duration_ms", d.Notifications.ToastDurationMS)
	v.SetDefault("reminders.poll_interval_sec", d.Reminders.PollIntervalSec)
	v.SetDefault("channels.email.transport", d.Channels.Email.Transport)
	v.SetDefault("channels.email.from", d.Channels.Email.From)
	v.SetDefault("channels.email.imap_port", d.Channels.Email.IMAPPort)
	v.SetDefault("channels.email.mailbox", d.Channels.Email.Mailbox)
	v.SetDefault("channels.email.tls", d.Channels.Email.TLS)
	v.SetDefault("channels.email.confirm_delay_ms", d.Channels.Email.ConfirmDelayMS)
	v.SetDefault("channels.sms.transport", d.Channels.SMS.Transport)
	v.SetDefault("channels.sms.confirm_delay_ms", d.Channels.SMS.ConfirmDelayMS)
	v.SetDefault("channels.sms.gateway_url", "")
	v.SetDefault("channels.push.service_account_path", "")
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", d.API.Addr)
	v.SetDefault("api.jwt_secret", "")
	v.SetDefault("display.theme", d.Display.Theme)
}

// NewViper returns a Viper instance with defaults and IMS_-prefixed
// environment overrides (IMS_API_JWT_SECRET -> api.jwt_secret).
func NewViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ims")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus environment overrides) apply.
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigFrom(NewViper(path))
}

// LoadConfigFrom unmarshals an already prepared Viper instance, e.g. one
// with command-line flags bound to it.
func LoadConfigFrom(v *viper.Viper) (*AppConfig, error) {
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", v.ConfigFileUsed(), err)
	}

	if cfg.Notifications.Capacity <= 0 {
		cfg.Notifications.Capacity = 100
	}
	if cfg.Reminders.PollIntervalSec <= 0 {
		cfg.Reminders.PollIntervalSec = 60
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("storage", cfg.Storage)
	v.Set("notifications", cfg.Notifications)
	v.Set("reminders", cfg.Reminders)
	v.Set("channels", cfg.Channels)
	v.Set("api", cfg.API)
	v.Set("display", cfg.Display)
	v.Set("contacts", cfg.Contacts)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
