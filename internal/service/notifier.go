package service

import (
	"context"
	"encoding/json"
	"fmt"

	"chatpro/internal/model"
	"chatpro/internal/pubsub"
)

// EntitlementNotifier fans out entitlement-changed events to downstream consumers.
type EntitlementNotifier interface {
	Notify(ctx context.Context, ev model.EntitlementChanged) error
}

type pubsubNotifier struct {
	publisher pubsub.Publisher
	topic     string
}

// NewEntitlementNotifier returns a notifier publishing to topic. An empty topic disables publishing.
func NewEntitlementNotifier(publisher pubsub.Publisher, topic string) EntitlementNotifier {
	if topic == "" || publisher == nil {
		publisher = pubsub.NopPublisher{}
	}
	return &pubsubNotifier{publisher: publisher, topic: topic}
}

func (n *pubsubNotifier) Notify(ctx context.Context, ev model.EntitlementChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode entitlement event: %w", err)
	}
	attrs := map[string]string{"provider": ev.Provider, "event_type": ev.EventType}
	if _, err := n.publisher.Publish(ctx, n.topic, payload, attrs); err != nil {
		return fmt.Errorf("publish entitlement event for %s: %w", ev.UserID, err)
	}
	return nil
}
