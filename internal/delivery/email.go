package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/ims-notify/internal/model"
)

// MailTransport hands a composed RFC 5322 message to a mail system.
type MailTransport interface {
	Send(ctx context.Context, to string, raw []byte) error
}

// Email composes one message per recipient with an email address.
type Email struct {
	from      string
	transport MailTransport
	now       func() time.Time
}

// NewEmail creates the email channel.
func NewEmail(from string, transport MailTransport) *Email {
	return &Email{from: from, transport: transport, now: time.Now}
}

// Name returns model.ChannelEmail.
func (c *Email) Name() model.Channel { return model.ChannelEmail }

// Deliver sends msg to every recipient that has an email address.
// Recipients without one are skipped.
func (c *Email) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	sent := 0
	for _, rcpt := range msg.Recipients {
		if rcpt.Email == "" {
			continue
		}
		raw, err := Compose(c.from, rcpt, msg, c.now())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.transport.Send(ctx, rcpt.Email, raw); err != nil {
			errs = append(errs, fmt.Errorf("sending to %s: %w", rcpt.Email, err))
			continue
		}
		sent++
	}
	if sent == 0 && len(errs) == 0 {
		log.Printf("email: reminder %s has no recipients with an email address", msg.ReminderID)
	}
	return errors.Join(errs...)
}

// Compose renders msg as a plain-text email to rcpt.
func Compose(from string, rcpt model.Contact, msg Message, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Name: "Internship Management", Address: from}})
	h.SetAddressList("To", []*mail.Address{{Name: rcpt.Name, Address: rcpt.Email}})
	h.SetSubject(subjectFor(msg))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	if msg.ReminderID != "" {
		h.Set("X-Reminder-Id", msg.ReminderID)
		h.Set("X-Reminder-Kind", string(msg.Kind))
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, bodyFor(rcpt, msg)); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}

func subjectFor(msg Message) string {
	prefix := "[Reminder]"
	if msg.Priority == model.PriorityHigh {
		prefix = "[Reminder][Important]"
	}
	return prefix + " " + msg.Title
}

func bodyFor(rcpt model.Contact, msg Message) string {
	var b bytes.Buffer
	if rcpt.Name != "" {
		fmt.Fprintf(&b, "Hi %s,\r\n\r\n", rcpt.Name)
	}
	text := msg.Body
	if text == "" {
		text = msg.Title
	}
	fmt.Fprintf(&b, "%s\r\n", text)
	if !msg.TargetDate.IsZero() {
		fmt.Fprintf(&b, "\r\nWhen: %s\r\n", msg.TargetDate.Format(time.RFC1123))
	}
	b.WriteString("\r\n-- \r\nInternship Management System\r\n")
	return b.String()
}

// MockTransport logs messages instead of sending them and confirms each
// one after a fixed delay.
type MockTransport struct {
	Delay time.Duration
}

// Send logs the message and schedules the confirmation log line.
func (t MockTransport) Send(_ context.Context, to string, raw []byte) error {
	log.Printf("email: queued %d bytes for %s", len(raw), to)
	time.AfterFunc(t.Delay, func() {
		log.Printf("email: delivery to %s confirmed", to)
	})
	return nil
}

// IMAPTransport appends composed messages to a mailbox, where a mail client
// or a forwarding rule picks them up.
type IMAPTransport struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	mailbox  string
}

// NewIMAPTransport creates an IMAP transport configuration.
func NewIMAPTransport(
	host, port, username, password string, tls bool, mailbox string,
) *IMAPTransport {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPTransport{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		mailbox:  mailbox,
	}
}

// connect establishes a connection and authenticates. The caller is
// responsible for calling Logout on the returned client.
func (t *IMAPTransport) connect() (*imapclient.Client, error) {
	addr := t.host + ":" + t.port

	var client *imapclient.Client
	var err error
	if t.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(t.username, t.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Channel: model.ChannelEmail,
			Message: fmt.Sprintf("authentication failed for %s: %v", t.username, err),
		}
	}
	return client, nil
}

// Verify logs in and out again and returns the authenticated user name.
func (t *IMAPTransport) Verify(_ context.Context) (string, error) {
	client, err := t.connect()
	if err != nil {
		return "", err
	}
	if err := client.Logout().Wait(); err != nil {
		return "", fmt.Errorf("logging out of IMAP: %w", err)
	}
	return t.username, nil
}

// Send appends raw to the configured mailbox.
func (t *IMAPTransport) Send(_ context.Context, to string, raw []byte) error {
	client, err := t.connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	cmd := client.Append(t.mailbox, int64(len(raw)), &imap.AppendOptions{Time: time.Now()})
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("writing message for %s: %w", to, err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("closing append for %s: %w", to, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", t.mailbox, err)
	}
	log.Printf("email: appended message for %s to %s", to, t.mailbox)
	return nil
}
