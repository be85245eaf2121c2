package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier posts a JSON payload to a URL.
type WebhookNotifier struct {
	URL  string
	HTTP *http.Client
}

// WebhookPayload is the body posted to webhooks.
type WebhookPayload struct {
	Project string `json:"project"`
	Event   string `json:"event"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Send implements Notifier.
func (n WebhookNotifier) Send(ctx context.Context, msg Message) error {
	if n.URL == "" {
		return fmt.Errorf("webhook url not configured")
	}
	b, err := json.Marshal(WebhookPayload{
		Project: "event-radar",
		Event:   msg.Event,
		Subject: msg.Subject,
		Message: msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(n.HTTP).Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{Channel: "webhook", StatusCode: resp.StatusCode}
	}
	return nil
}

type httpError struct {
	Channel    string
	StatusCode int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("%s http status %d %s", e.Channel, e.StatusCode, http.StatusText(e.StatusCode))
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 5 * time.Second}
}
