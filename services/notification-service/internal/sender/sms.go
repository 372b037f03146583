package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, to string, body string) error
}

// WebhookSMSSender forwards messages to an SMS gateway over a JSON
// webhook with optional bearer auth.
type WebhookSMSSender struct {
	url    string
	token  string
	client *http.Client
}

type smsPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func NewWebhookSMSSender(url, token string) *WebhookSMSSender {
	return &WebhookSMSSender{
		url:    strings.TrimSpace(url),
		token:  strings.TrimSpace(token),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookSMSSender) Send(ctx context.Context, to string, body string) error {
	if s.url == "" {
		return errors.New("sms webhook url not configured")
	}
	raw, err := json.Marshal(smsPayload{To: to, Body: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms webhook returned %s", resp.Status)
	}
	return nil
}

// NoopSMSSender accepts everything. Dev and test environments only.
type NoopSMSSender struct{}

func NewNoopSMSSender() *NoopSMSSender { return &NoopSMSSender{} }

func (*NoopSMSSender) Send(context.Context, string, string) error { return nil }
