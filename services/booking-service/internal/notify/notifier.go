package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Notifier delivers a direct chat message to a subject. The cascade workflow
// calls it synchronously so delivery failures surface in the admin's response
// instead of disappearing into a queue.
type Notifier interface {
	Send(ctx context.Context, subjectID string, body string) error
	ProviderID() string
}

// WebhookNotifier posts messages to the chat platform's send endpoint.
type WebhookNotifier struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookNotifier(url string, token string) *WebhookNotifier {
	return &WebhookNotifier{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (n *WebhookNotifier) ProviderID() string {
	return "chat-webhook"
}

func (n *WebhookNotifier) Send(ctx context.Context, subjectID string, body string) error {
	if n.url == "" {
		return errors.New("chat webhook url not configured")
	}
	payload := map[string]string{
		"chat_id": subjectID,
		"text":    body,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("chat webhook returned non-2xx")
	}
	return nil
}

// NoopNotifier swallows messages. Used when no chat endpoint is configured so
// cascades still complete locally.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

func (n *NoopNotifier) ProviderID() string {
	return "chat-noop"
}

func (n *NoopNotifier) Send(_ context.Context, _ string, _ string) error {
	return nil
}
