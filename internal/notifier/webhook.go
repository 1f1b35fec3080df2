package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/osbits/fcheck/internal/render"
)

// WebhookConfig represents a generic webhook notifier.
type WebhookConfig struct {
	URL      string            `mapstructure:"url"`
	Method   string            `mapstructure:"method"`
	Headers  map[string]string `mapstructure:"headers"`
	Template string            `mapstructure:"template"`
}

type webhookNotifier struct {
	id       string
	cfg      WebhookConfig
	secrets  map[string]string
	renderer *render.Engine
	client   *http.Client
}

// NewWebhookNotifier creates a webhook notifier. Without a template the
// event is posted as JSON.
func NewWebhookNotifier(id string, cfg WebhookConfig, secrets map[string]string, engine *render.Engine) (Notifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if engine == nil {
		engine = render.New()
	}
	return &webhookNotifier{
		id:       id,
		cfg:      cfg,
		secrets:  secrets,
		renderer: engine,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (w *webhookNotifier) ID() string {
	return w.id
}

func (w *webhookNotifier) Notify(ctx context.Context, event Event) error {
	method := w.cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	data := event.templateData()
	ctxRender := render.TemplateContext{
		Secrets: w.secrets,
		Data:    data,
	}

	var payload string
	if w.cfg.Template == "" {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = string(b)
	} else {
		rendered, err := w.renderer.RenderString(w.cfg.Template, ctxRender)
		if err != nil {
			return fmt.Errorf("render template: %w", err)
		}
		payload = rendered
	}

	req, err := http.NewRequestWithContext(ctx, method, w.cfg.URL, bytes.NewBufferString(payload))
	if err != nil {
		return err
	}
	if len(w.cfg.Headers) > 0 {
		headers, err := w.renderer.RenderMap(w.cfg.Headers, ctxRender)
		if err != nil {
			return fmt.Errorf("render headers: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		if strings.HasPrefix(strings.TrimSpace(payload), "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "text/plain")
		}
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook response: %s", resp.Status)
	}
	return nil
}
