package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Transport delivers one rendered message. Implementations must not
// retry internally; notification delivery is best-effort end to end.
type Transport interface {
	Send(ctx context.Context, from, recipient, subject, body string) error
}

// WebhookTransport posts the rendered message to a mail-relay
// webhook. Used both for the shared default relay and for
// merchant-supplied relays.
type WebhookTransport struct {
	url   string
	token string
	httpc *http.Client
}

func NewWebhookTransport(url, token string) *WebhookTransport {
	return &WebhookTransport{
		url:   url,
		token: token,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *WebhookTransport) Send(ctx context.Context, from, recipient, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"from":    from,
		"to":      recipient,
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("notify webhook: status %d: %s", resp.StatusCode, raw)
	}
	return nil
}

// LogTransport is the degraded mode when no relay is configured: the
// message lands in the service log instead of blocking the pipeline.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, from, recipient, subject, body string) error {
	zap.L().Info("notification (log only)",
		zap.String("from", from),
		zap.String("to", recipient),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
