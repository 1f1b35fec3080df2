package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ChatConfig configures Slack and Discord incoming webhooks.
type ChatConfig struct {
	WebhookURLRef string `mapstructure:"webhook_url_ref"`
	Channel       string `mapstructure:"channel"`
	Username      string `mapstructure:"username"`
}

type chatNotifier struct {
	id      string
	service string
	cfg     ChatConfig
	url     string
	client  *http.Client
}

// NewChatNotifier builds a Slack or Discord notifier. The webhook URL is
// read from the secret named by WebhookURLRef.
func NewChatNotifier(id, service string, cfg ChatConfig, secrets map[string]string) (Notifier, error) {
	url, ok := secrets[cfg.WebhookURLRef]
	if !ok || url == "" {
		return nil, fmt.Errorf("missing secret %q", cfg.WebhookURLRef)
	}
	return &chatNotifier{
		id:      id,
		service: service,
		cfg:     cfg,
		url:     url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (c *chatNotifier) ID() string {
	return c.id
}

func (c *chatNotifier) Notify(ctx context.Context, event Event) error {
	bold := "*"
	textKey := "text"
	if c.service == "discord" {
		bold = "**"
		textKey = "content"
	}
	text := fmt.Sprintf("%sfcheck %s%s %s\nRun: %s | Duration: %s",
		bold, strings.ToUpper(event.Status), bold,
		event.Summary,
		event.RunID,
		event.Duration.Round(time.Millisecond))

	payload := map[string]interface{}{textKey: text}
	if c.cfg.Channel != "" && c.service == "slack" {
		payload["channel"] = c.cfg.Channel
	}
	if c.cfg.Username != "" {
		payload["username"] = c.cfg.Username
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s webhook: %s", c.service, resp.Status)
	}
	return nil
}
