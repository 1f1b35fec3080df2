package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"

	"github.com/osbits/fcheck/internal/config"
)

// Registry stores notifiers by ID in declaration order.
type Registry struct {
	items map[string]Notifier
	order []string
}

// NewRegistry creates a registry.
func NewRegistry() *Registry {
	return &Registry{
		items: map[string]Notifier{},
	}
}

// Add stores a notifier.
func (r *Registry) Add(n Notifier) error {
	if _, exists := r.items[n.ID()]; exists {
		return fmt.Errorf("duplicate notifier %q", n.ID())
	}
	r.items[n.ID()] = n
	r.order = append(r.order, n.ID())
	return nil
}

// Get returns notifier by id.
func (r *Registry) Get(id string) (Notifier, bool) {
	n, ok := r.items[id]
	return n, ok
}

// Len returns the number of registered notifiers.
func (r *Registry) Len() int {
	return len(r.order)
}

// Build constructs notifiers from config. Errors wrap config.ErrInvalid.
func Build(factory Factory, configs []config.NotifierConfig) (*Registry, error) {
	reg := NewRegistry()
	for _, cfg := range configs {
		n, err := buildNotifier(factory, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: notifier %q: %v", config.ErrInvalid, cfg.ID, err)
		}
		if err := reg.Add(n); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
	}
	return reg, nil
}

func buildNotifier(factory Factory, cfg config.NotifierConfig) (Notifier, error) {
	switch cfg.Type {
	case "email":
		var nc EmailConfig
		if err := decode(cfg.Config, &nc); err != nil {
			return nil, err
		}
		return NewEmailNotifier(cfg.ID, nc, factory.Secrets)
	case "webhook":
		var nc WebhookConfig
		if err := decode(cfg.Config, &nc); err != nil {
			return nil, err
		}
		return NewWebhookNotifier(cfg.ID, nc, factory.Secrets, factory.Render)
	case "slack", "discord":
		var nc ChatConfig
		if err := decode(cfg.Config, &nc); err != nil {
			return nil, err
		}
		return NewChatNotifier(cfg.ID, cfg.Type, nc, factory.Secrets)
	default:
		return nil, fmt.Errorf("unsupported notifier type %q", cfg.Type)
	}
}

func decode(input map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// Delivery is the outcome of one notifier call.
type Delivery struct {
	NotifierID string
	Err        error
}

// Dispatch sends event to every registered notifier when policy allows it.
// Delivery errors are logged and returned, never fatal.
func (r *Registry) Dispatch(ctx context.Context, policy config.NotifyPolicy, event Event, logger *slog.Logger) []Delivery {
	if r == nil || !ShouldNotify(policy, event.Status) {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	deliveries := make([]Delivery, 0, len(r.order))
	for _, id := range r.order {
		err := r.items[id].Notify(ctx, event)
		if err != nil {
			logger.Error("notification failed", "notifier", id, "run_id", event.RunID, "error", err)
		} else {
			logger.Info("notification sent", "notifier", id, "run_id", event.RunID, "status", event.Status)
		}
		deliveries = append(deliveries, Delivery{NotifierID: id, Err: err})
	}
	return deliveries
}

// ShouldNotify applies the notify policy to a run status.
func ShouldNotify(policy config.NotifyPolicy, status string) bool {
	switch policy {
	case config.NotifyAlways:
		return true
	case config.NotifyFailure, "":
		return status != "success"
	default:
		return false
	}
}
