package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-relay-service/internal/domain/model"
	"github.com/webitel/im-relay-service/internal/domain/session"
)

// MetadataRoutingKey carries the lifecycle kind for topic bindings.
const MetadataRoutingKey = "routing_key"

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the actor to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev *model.LifecycleEvent) error
	Publisher() message.Publisher
}

// Interface guards
var (
	_ EventDispatcher  = (*Dispatcher)(nil)
	_ session.Notifier = (*Dispatcher)(nil)
)

// Dispatcher publishes lifecycle events as JSON on a single topic.
type Dispatcher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

func NewEventDispatcher(pub message.Publisher, topic string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: pub,
		topic:     topic,
		logger:    logger,
	}
}

func (d *Dispatcher) Publish(ctx context.Context, ev *model.LifecycleEvent) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataRoutingKey, ev.RoutingKey())
	msg.SetContext(ctx)

	if err := d.publisher.Publish(d.topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", d.topic, err)
	}
	return nil
}

// Notify publishes ev and only logs failures: a dead bus must never fail
// a session handler.
func (d *Dispatcher) Notify(ctx context.Context, ev *model.LifecycleEvent) {
	if err := d.Publish(ctx, ev); err != nil {
		d.logger.Warn("[PUBSUB] lifecycle event dropped",
			slog.String("session_id", ev.SessionID),
			slog.String("routing_key", ev.RoutingKey()),
			slog.Any("err", err),
		)
		return
	}
	d.logger.Debug("[PUBSUB] lifecycle event published", slog.String("routing_key", ev.RoutingKey()))
}

func (d *Dispatcher) Publisher() message.Publisher {
	return d.publisher
}
