package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	bq "github.com/angelmondragon/smokeshop-backend/pkg/bigquery"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/registry"
)

type fakeInserter struct {
	rows []bq.OrderEventRow
	err  error
}

func (f *fakeInserter) InsertOrderEvents(_ context.Context, rows ...bq.OrderEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func resolved(eventType enums.OutboxEventType, payload any) *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{EventType: eventType, AggregateType: enums.AggregateOrder},
		Envelope:   outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now().UTC()},
		Payload:    payload,
	}
}

func TestHandlerWritesPaidOrderRow(t *testing.T) {
	inserter := &fakeInserter{}
	handler, err := NewHandler(inserter)
	if err != nil {
		t.Fatalf("NewHandler() error: %v", err)
	}

	orderID := uuid.New()
	event := resolved(enums.EventOrderPaid, &payloads.OrderPaidEvent{
		OrderID:       orderID,
		Email:         "buyer@example.com",
		SubtotalCents: 3000,
		ShippingCents: 599,
		TotalCents:    3599,
		Currency:      "USD",
		Source:        "checkout",
		Lines: []payloads.OrderLine{
			{ProductID: uuid.New(), Name: "Mango Ice", Quantity: 2, UnitPriceCents: 1000},
			{ProductID: uuid.New(), Name: "Cool Mint", Quantity: 1, UnitPriceCents: 1000},
		},
	})
	if err := handler.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(inserter.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(inserter.rows))
	}
	row := inserter.rows[0]
	if row.EventID != event.Envelope.EventID {
		t.Fatalf("event id mismatch: %s", row.EventID)
	}
	if row.OrderID != orderID.String() || row.Status != "paid" {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.ItemCount != 3 {
		t.Fatalf("expected 3 items, got %d", row.ItemCount)
	}
	if row.TotalCents != 3599 || row.ShippingCents != 599 {
		t.Fatalf("unexpected amounts %+v", row)
	}
}

func TestHandlerWritesReconciledRow(t *testing.T) {
	inserter := &fakeInserter{}
	handler, _ := NewHandler(inserter)

	event := resolved(enums.EventOrderReconciled, &payloads.OrderReconciledEvent{
		OrderID:        uuid.New(),
		Email:          "buyer@example.com",
		PreviousStatus: enums.OrderStatusPendingPayment,
		Reason:         "no_payment_recorded",
	})
	if err := handler.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if inserter.rows[0].Status != "reconciled" || inserter.rows[0].Reason != "no_payment_recorded" {
		t.Fatalf("unexpected row %+v", inserter.rows[0])
	}
}

func TestHandlerFiltersEvents(t *testing.T) {
	handler, _ := NewHandler(&fakeInserter{})
	if handler.Handles(enums.EventOrderCreated) {
		t.Fatal("order_created should not be recorded")
	}
	if handler.Handles(enums.EventShipmentStatusChanged) {
		t.Fatal("shipment events should not be recorded")
	}
	for _, eventType := range []enums.OutboxEventType{enums.EventOrderPaid, enums.EventOrderPaymentFailed, enums.EventOrderReconciled} {
		if !handler.Handles(eventType) {
			t.Fatalf("expected %s to be handled", eventType)
		}
	}
}

func TestHandlerPropagatesInsertErrors(t *testing.T) {
	handler, _ := NewHandler(&fakeInserter{err: errors.New("bigquery down")})
	event := resolved(enums.EventOrderPaymentFailed, &payloads.OrderPaymentFailedEvent{OrderID: uuid.New(), Reason: "card declined"})
	if err := handler.Handle(context.Background(), event); err == nil {
		t.Fatal("expected insert error")
	}
}

func TestNewHandlerRequiresClient(t *testing.T) {
	if _, err := NewHandler(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
