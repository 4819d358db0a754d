package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// webhook posts a JSON document to a chat service.
type webhook struct {
	name   string
	url    string
	client *http.Client
	body   func(Message) any
}

func (w *webhook) Name() string { return w.name }

func (w *webhook) Notify(ctx context.Context, msg Message) error {
	return postJSON(ctx, w.client, w.url, w.body(msg))
}

// NewSlackSink posts {"text": ...} to a Slack incoming webhook.
func NewSlackSink(url string, client *http.Client) Sink {
	return &webhook{name: "slack", url: url, client: client, body: func(m Message) any {
		return map[string]string{"text": m.Text()}
	}}
}

// NewDiscordSink posts {"content": ...} to a Discord webhook.
func NewDiscordSink(url string, client *http.Client) Sink {
	return &webhook{name: "discord", url: url, client: client, body: func(m Message) any {
		return map[string]string{"content": m.Text()}
	}}
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("webhook url is empty")
	}
	if client == nil {
		client = http.DefaultClient
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
