// Package consumers runs outbox subscribers: each Consumer decodes delivered
// envelopes through the event registry, deduplicates them per consumer and
// hands them to a Handler.
package consumers

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/registry"
)

// Handler processes the events it declares interest in.
type Handler interface {
	Handles(eventType enums.OutboxEventType) bool
	Handle(ctx context.Context, event *registry.ResolvedEvent) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type resolver interface {
	ResolveMessage(attrs map[string]string, data []byte) (*registry.ResolvedEvent, error)
}

type deduper interface {
	Run(ctx context.Context, consumer, eventID string, fn func(context.Context) error) (bool, error)
}

// Consumer binds a subscription to a handler.
type Consumer struct {
	name         string
	subscription receiver
	registry     resolver
	idempotency  deduper
	handler      Handler
	logg         *logger.Logger
}

// New builds a consumer. name scopes the idempotency markers.
func New(name string, subscription receiver, reg resolver, manager deduper, handler Handler, logg *logger.Logger) (*Consumer, error) {
	switch {
	case name == "":
		return nil, fmt.Errorf("consumer name required")
	case reg == nil:
		return nil, fmt.Errorf("event registry required")
	case manager == nil:
		return nil, fmt.Errorf("idempotency manager required")
	case handler == nil:
		return nil, fmt.Errorf("handler required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		name:         name,
		subscription: subscription,
		registry:     reg,
		idempotency:  manager,
		handler:      handler,
		logg:         logg,
	}, nil
}

// Name returns the consumer name.
func (c *Consumer) Name() string {
	return c.name
}

// Run receives messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("%s: subscription required", c.name)
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := c.Process(ctx, msg.ID, msg.Attributes, msg.Data); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Process handles one delivery. A nil error acks the message; malformed
// messages are logged and acked so they do not redeliver forever.
func (c *Consumer) Process(ctx context.Context, messageID string, attrs map[string]string, data []byte) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"consumer":   c.name,
		"message_id": messageID,
		"event_type": attrs[registry.AttrEventType],
	})

	eventType, err := enums.ParseOutboxEventType(attrs[registry.AttrEventType])
	if err != nil {
		c.logg.Warn(logCtx, "consumer.unknown_event_type")
		return nil
	}
	if !c.handler.Handles(eventType) {
		return nil
	}

	resolved, err := c.registry.ResolveMessage(attrs, data)
	if err != nil {
		var nonRetryable registry.NonRetryableError
		if errors.As(err, &nonRetryable) {
			c.logg.Error(logCtx, "consumer.undecodable_message", err)
			return nil
		}
		return err
	}
	if resolved.Envelope.EventID == "" {
		c.logg.Warn(logCtx, "consumer.missing_event_id")
		return nil
	}
	logCtx = c.logg.WithField(logCtx, "event_id", resolved.Envelope.EventID)

	duplicate, err := c.idempotency.Run(logCtx, c.name, resolved.Envelope.EventID, func(ctx context.Context) error {
		return c.handler.Handle(ctx, resolved)
	})
	if err != nil {
		c.logg.Error(logCtx, "consumer.handle_failed", err)
		return err
	}
	if duplicate {
		c.logg.Info(logCtx, "consumer.duplicate_event")
		return nil
	}
	c.logg.Info(logCtx, "consumer.event_handled")
	return nil
}

// Chain routes each event to the first handler that accepts it.
type Chain []Handler

// Handles reports whether any handler in the chain accepts eventType.
func (c Chain) Handles(eventType enums.OutboxEventType) bool {
	for _, h := range c {
		if h != nil && h.Handles(eventType) {
			return true
		}
	}
	return false
}

// Handle dispatches to the first interested handler.
func (c Chain) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	for _, h := range c {
		if h != nil && h.Handles(event.Descriptor.EventType) {
			return h.Handle(ctx, event)
		}
	}
	return nil
}
