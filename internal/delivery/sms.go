package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/nhle/ims-notify/internal/model"
)

// maxSMSLength is the longest text sent in a single SMS.
const maxSMSLength = 320

// SMSTransport sends a text message to a phone number.
type SMSTransport interface {
	Send(ctx context.Context, to, text, reference string) error
}

// SMS sends one text per recipient with a phone number.
type SMS struct {
	transport SMSTransport
}

// NewSMS creates the SMS channel.
func NewSMS(transport SMSTransport) *SMS {
	return &SMS{transport: transport}
}

// Name returns model.ChannelSMS.
func (c *SMS) Name() model.Channel { return model.ChannelSMS }

// Deliver texts every recipient that has a phone number.
func (c *SMS) Deliver(ctx context.Context, msg Message) error {
	text := truncate(msg.Text(), maxSMSLength)
	var errs []error
	for _, rcpt := range msg.Recipients {
		if rcpt.Phone == "" {
			continue
		}
		if err := c.transport.Send(ctx, rcpt.Phone, text, msg.ReminderID); err != nil {
			errs = append(errs, fmt.Errorf("texting %s: %w", rcpt.Phone, err))
		}
	}
	return errors.Join(errs...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// MockSMSTransport logs texts and confirms each one after a fixed delay.
type MockSMSTransport struct {
	Delay time.Duration
}

// Send logs the text and schedules the confirmation log line.
func (t MockSMSTransport) Send(_ context.Context, to, text, _ string) error {
	log.Printf("sms: queued %q for %s", text, to)
	time.AfterFunc(t.Delay, func() {
		log.Printf("sms: delivery to %s confirmed", to)
	})
	return nil
}

// GatewayRequest is the JSON body posted to the SMS gateway.
type GatewayRequest struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

// GatewayResponse is the JSON body returned by the SMS gateway.
type GatewayResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// HTTPGateway posts texts to an HTTP SMS gateway.
type HTTPGateway struct {
	httpClient *http.Client
	url        string
	token      string
}

// NewHTTPGateway creates a gateway client. token is sent as a bearer token
// when non-empty.
func NewHTTPGateway(url, token string) *HTTPGateway {
	return &HTTPGateway{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        url,
		token:      token,
	}
}

// Send posts one text to the gateway.
func (g *HTTPGateway) Send(ctx context.Context, to, text, reference string) error {
	body, err := json.Marshal(GatewayRequest{To: to, Message: text, Reference: reference})
	if err != nil {
		return fmt.Errorf("encoding gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{Channel: model.ChannelSMS, Message: fmt.Sprintf("gateway returned %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var out GatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding gateway response: %w", err)
	}
	log.Printf("sms: gateway accepted text for %s (id=%s status=%s)", to, out.ID, out.Status)
	return nil
}
