package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/registry"
)

type memoryDeduper struct {
	seen map[string]bool
}

func (m *memoryDeduper) Run(ctx context.Context, consumer, eventID string, fn func(context.Context) error) (bool, error) {
	key := consumer + ":" + eventID
	if m.seen[key] {
		return true, nil
	}
	m.seen[key] = true
	if err := fn(ctx); err != nil {
		delete(m.seen, key)
		return false, err
	}
	return false, nil
}

type recordingHandler struct {
	types  map[enums.OutboxEventType]bool
	events []*registry.ResolvedEvent
	err    error
}

func (h *recordingHandler) Handles(eventType enums.OutboxEventType) bool {
	return h.types[eventType]
}

func (h *recordingHandler) Handle(_ context.Context, event *registry.ResolvedEvent) error {
	if h.err != nil {
		return h.err
	}
	h.events = append(h.events, event)
	return nil
}

func newTestConsumer(t *testing.T, handler Handler) (*Consumer, *memoryDeduper) {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders", NotificationTopic: "notifications"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	deduper := &memoryDeduper{seen: map[string]bool{}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	consumer, err := New("fulfillment", nil, reg, deduper, handler, logg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return consumer, deduper
}

func paidMessage(t *testing.T, eventID string) (map[string]string, []byte) {
	t.Helper()
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderPaidEvent{OrderID: orderID, Email: "buyer@example.com", TotalCents: 2599})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID, OccurredAt: time.Now().UTC(), Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	attrs := map[string]string{
		registry.AttrEventID:       eventID,
		registry.AttrEventType:     string(enums.EventOrderPaid),
		registry.AttrAggregateType: string(enums.AggregateOrder),
		registry.AttrAggregateID:   orderID.String(),
	}
	return attrs, body
}

func TestProcessHandlesEventOnce(t *testing.T) {
	handler := &recordingHandler{types: map[enums.OutboxEventType]bool{enums.EventOrderPaid: true}}
	consumer, _ := newTestConsumer(t, handler)
	attrs, body := paidMessage(t, uuid.NewString())

	for i := 0; i < 2; i++ {
		if err := consumer.Process(context.Background(), "msg", attrs, body); err != nil {
			t.Fatalf("Process() error: %v", err)
		}
	}
	if len(handler.events) != 1 {
		t.Fatalf("expected one handled event, got %d", len(handler.events))
	}
	payload, ok := handler.events[0].Payload.(*payloads.OrderPaidEvent)
	if !ok {
		t.Fatalf("unexpected payload %T", handler.events[0].Payload)
	}
	if payload.TotalCents != 2599 {
		t.Fatalf("unexpected total %d", payload.TotalCents)
	}
}

func TestProcessFailureAllowsRedelivery(t *testing.T) {
	handler := &recordingHandler{types: map[enums.OutboxEventType]bool{enums.EventOrderPaid: true}, err: errors.New("smtp down")}
	consumer, deduper := newTestConsumer(t, handler)
	attrs, body := paidMessage(t, uuid.NewString())

	if err := consumer.Process(context.Background(), "msg", attrs, body); err == nil {
		t.Fatal("expected handler error to nack")
	}
	if len(deduper.seen) != 0 {
		t.Fatalf("expected marker released, got %v", deduper.seen)
	}

	handler.err = nil
	if err := consumer.Process(context.Background(), "msg", attrs, body); err != nil {
		t.Fatalf("redelivery error: %v", err)
	}
	if len(handler.events) != 1 {
		t.Fatalf("expected redelivery to be handled")
	}
}

func TestProcessAcksUninterestingAndMalformed(t *testing.T) {
	handler := &recordingHandler{types: map[enums.OutboxEventType]bool{enums.EventOrderPaid: true}}
	consumer, _ := newTestConsumer(t, handler)

	attrs, body := paidMessage(t, uuid.NewString())
	attrs[registry.AttrEventType] = string(enums.EventOrderCreated)
	if err := consumer.Process(context.Background(), "msg", attrs, body); err != nil {
		t.Fatalf("filtered event should ack: %v", err)
	}

	attrs, _ = paidMessage(t, uuid.NewString())
	if err := consumer.Process(context.Background(), "msg", attrs, []byte("{not json")); err != nil {
		t.Fatalf("malformed event should ack: %v", err)
	}

	if err := consumer.Process(context.Background(), "msg", map[string]string{registry.AttrEventType: "mystery"}, nil); err != nil {
		t.Fatalf("unknown event should ack: %v", err)
	}
	if len(handler.events) != 0 {
		t.Fatalf("expected nothing handled, got %d", len(handler.events))
	}
}

func TestChainRoutesToFirstInterestedHandler(t *testing.T) {
	paid := &recordingHandler{types: map[enums.OutboxEventType]bool{enums.EventOrderPaid: true}}
	failed := &recordingHandler{types: map[enums.OutboxEventType]bool{enums.EventOrderPaymentFailed: true}}
	chain := Chain{paid, failed}

	if !chain.Handles(enums.EventOrderPaymentFailed) || chain.Handles(enums.EventOrderCreated) {
		t.Fatal("unexpected chain filter")
	}
	event := &registry.ResolvedEvent{Descriptor: registry.EventDescriptor{EventType: enums.EventOrderPaymentFailed}}
	if err := chain.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(failed.events) != 1 || len(paid.events) != 0 {
		t.Fatalf("expected only failure handler to run")
	}
}
