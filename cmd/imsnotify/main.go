// Command imsnotify runs the internship dashboard's notification center and
// reminder engine, either as a terminal UI or headless next to the API.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/nhle/ims-notify/internal/api"
	"github.com/nhle/ims-notify/internal/app"
	"github.com/nhle/ims-notify/internal/credential"
	"github.com/nhle/ims-notify/internal/delivery"
	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/internal/seed"
	"github.com/nhle/ims-notify/internal/store"
	appsync "github.com/nhle/ims-notify/internal/sync"
	"github.com/nhle/ims-notify/internal/ui/settings"
)

type options struct {
	configPath string
	initConfig bool
	headless   bool
	seedPath   string
	setSecret  string
	tokenFor   string
	tokenRole  string
	tokenTTL   time.Duration
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "imsnotify: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flags := pflag.NewFlagSet("imsnotify", pflag.ContinueOnError)
	flags.StringVarP(&opts.configPath, "config", "c", model.DefaultConfigPath(), "path to the YAML config file")
	flags.BoolVar(&opts.initConfig, "init-config", false, "write the effective configuration to --config and exit")
	flags.BoolVar(&opts.headless, "headless", false, "run without the terminal UI")
	flags.StringVar(&opts.seedPath, "seed", "", "schedule reminders from a YAML fixture file")
	flags.Bool("api", false, "serve the HTTP API")
	flags.String("addr", "", "HTTP API listen address")
	flags.String("storage", "", "storage driver: sqlite or redis")
	flags.StringVar(&opts.setSecret, "set-credential", "", "store a secret in the keyring, read from stdin ("+strings.Join(credential.Known, ", ")+")")
	flags.StringVar(&opts.tokenFor, "token", "", "print an API token for this user id and exit")
	flags.StringVar(&opts.tokenRole, "role", "hr", "role embedded in a printed token")
	flags.DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of a printed token")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	v := model.NewViper(opts.configPath)
	for key, flag := range map[string]string{
		"api.enabled":    "api",
		"api.addr":       "addr",
		"storage.driver": "storage",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", flag, err)
			}
		}
	}
	cfg, err := model.LoadConfigFrom(v)
	if err != nil {
		return err
	}

	if opts.initConfig {
		if err := model.SaveConfig(opts.configPath, cfg); err != nil {
			return err
		}
		fmt.Println("wrote", opts.configPath)
		return nil
	}

	creds, err := credential.Open()
	if err != nil {
		log.Printf("credentials unavailable, using config values only: %v", err)
	}

	if opts.setSecret != "" {
		return storeCredential(creds, opts.setSecret)
	}

	secret := lookupSecret(creds, credential.KeyJWTSecret, cfg.API.JWTSecret)
	if opts.tokenFor != "" {
		token, err := api.GenerateJWT(secret, opts.tokenFor, opts.tokenRole, opts.tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	interactive := !opts.headless && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		logPath := filepath.Join(model.ConfigDir(), "debug.log")
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		f, err := tea.LogToFile(logPath, "imsnotify")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, deliveries, err := store.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer kv.Close()

	center := notify.New(kv,
		notify.WithCapacity(cfg.Notifications.Capacity),
		notify.WithToastDuration(cfg.Notifications.ToastDuration()),
	)
	if err := center.Load(ctx); err != nil {
		log.Printf("loading notifications: %v", err)
	}

	fanout := buildFanout(ctx, cfg, creds, center, deliveries)

	engine := reminder.New(kv, fanout)
	if err := engine.Load(ctx); err != nil {
		log.Printf("loading reminders: %v", err)
	}

	if opts.seedPath != "" {
		f, err := seed.Load(opts.seedPath)
		if err != nil {
			return err
		}
		res, err := f.Apply(ctx, engine, time.Now())
		if err != nil {
			return err
		}
		log.Printf("seed: %d scheduled, %d skipped", res.Scheduled, res.Skipped)
	}

	if cfg.API.Enabled {
		srv, err := api.NewServer(cfg.API.Addr, secret, center, engine, deliveries)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("api: %v", err)
			}
		}()
	}

	poller := appsync.New(engine, time.Duration(cfg.Reminders.PollIntervalSec)*time.Second)

	if !interactive {
		return runHeadless(ctx, poller)
	}

	svc := app.Services{
		KV:        kv,
		Center:    center,
		Engine:    engine,
		Poller:    poller,
		Verifiers: verifiers(cfg.Channels.Email),
	}
	if creds != nil {
		svc.Credentials = creds
	}

	p := tea.NewProgram(app.New(svc), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	poller.Stop()
	return nil
}

// runHeadless checks reminders on the poll interval until ctx is done.
func runHeadless(ctx context.Context, poller *appsync.Poller) error {
	log.Println("running headless, press Ctrl+C to stop")
	poller.Start()
	defer poller.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-poller.Results():
			if res.Error != nil {
				log.Printf("check: %v", res.Error)
				continue
			}
			if n := len(res.Result.Notices); n > 0 || res.Result.Failed > 0 {
				log.Printf("check: %d delivered, %d channel failures, %d successors",
					n, res.Result.Failed, len(res.Result.Successors))
			}
		}
	}
}

// buildFanout registers every channel. Push stays registered without a
// service account so reminders naming it deliver silently instead of failing.
func buildFanout(ctx context.Context, cfg *model.AppConfig, creds *credential.Store, center *notify.Center, deliveries store.DeliveryLog) *delivery.Fanout {
	return delivery.NewFanout(model.NewDirectory(cfg.Contacts), deliveries,
		delivery.NewInApp(center),
		delivery.NewEmail(cfg.Channels.Email.From, emailTransport(cfg.Channels.Email, creds)),
		delivery.NewSMS(smsTransport(cfg.Channels.SMS, creds)),
		delivery.NewPush(ctx, cfg.Channels.Push.ServiceAccountPath),
	)
}

func emailTransport(cfg model.EmailConfig, creds *credential.Store) delivery.MailTransport {
	delay := time.Duration(cfg.ConfirmDelayMS) * time.Millisecond
	if cfg.Transport != "imap" {
		return delivery.MockTransport{Delay: delay}
	}
	password := lookupSecret(creds, credential.KeyIMAPPassword, "")
	if password == "" {
		log.Println("email: no IMAP password in the keyring, falling back to the mock transport")
		return delivery.MockTransport{Delay: delay}
	}
	return delivery.NewIMAPTransport(cfg.IMAPHost, cfg.IMAPPort, cfg.Username, password, cfg.TLS, cfg.Mailbox)
}

func smsTransport(cfg model.SMSConfig, creds *credential.Store) delivery.SMSTransport {
	if cfg.Transport == "http" && cfg.GatewayURL != "" {
		return delivery.NewHTTPGateway(cfg.GatewayURL, lookupSecret(creds, credential.KeySMSToken, ""))
	}
	return delivery.MockSMSTransport{Delay: time.Duration(cfg.ConfirmDelayMS) * time.Millisecond}
}

// verifiers returns the connection tests offered by the credential view.
func verifiers(email model.EmailConfig) map[string]settings.Verifier {
	v := make(map[string]settings.Verifier)
	if email.Transport == "imap" {
		v[credential.KeyIMAPPassword] = func(ctx context.Context, secret string) (string, error) {
			t := delivery.NewIMAPTransport(email.IMAPHost, email.IMAPPort, email.Username, secret, email.TLS, email.Mailbox)
			return t.Verify(ctx)
		}
	}
	return v
}

// lookupSecret prefers the keyring and falls back to a config value.
func lookupSecret(creds *credential.Store, key, fallback string) string {
	if creds == nil {
		return fallback
	}
	v, err := creds.Lookup(key)
	if err != nil {
		log.Printf("reading credential %s: %v", key, err)
		return fallback
	}
	if v == "" {
		return fallback
	}
	return v
}

// storeCredential reads a secret from the terminal without echo, or from a
// pipe, and saves it under key.
func storeCredential(creds *credential.Store, key string) error {
	if creds == nil {
		return errors.New("no keyring available")
	}
	if !credential.IsKnown(key) {
		return fmt.Errorf("unknown credential %q, expected one of %s", key, strings.Join(credential.Known, ", "))
	}

	var value string
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprintf(os.Stderr, "%s: ", key)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading secret: %w", err)
		}
		value = string(b)
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading secret: %w", err)
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		return fmt.Errorf("empty secret for %s", key)
	}

	if err := creds.Set(key, value); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "stored %s\n", key)
	return nil
}
