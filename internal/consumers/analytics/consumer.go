package analytics

import (
	"context"
	"fmt"

	bq "github.com/angelmondragon/smokeshop-backend/pkg/bigquery"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/registry"
)

// ConsumerName scopes the analytics idempotency markers.
const ConsumerName = "analytics"

type orderEventInserter interface {
	InsertOrderEvents(ctx context.Context, rows ...bq.OrderEventRow) error
}

// Handler streams order lifecycle events into BigQuery.
type Handler struct {
	client orderEventInserter
}

// NewHandler builds the analytics handler.
func NewHandler(client orderEventInserter) (*Handler, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	return &Handler{client: client}, nil
}

// Handles reports whether the event is recorded in the warehouse.
func (h *Handler) Handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderPaid, enums.EventOrderPaymentFailed, enums.EventOrderReconciled:
		return true
	default:
		return false
	}
}

// Handle inserts one row for the event.
func (h *Handler) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	row, err := buildRow(event)
	if err != nil {
		return err
	}
	return h.client.InsertOrderEvents(ctx, *row)
}

func buildRow(event *registry.ResolvedEvent) (*bq.OrderEventRow, error) {
	row := &bq.OrderEventRow{
		EventID:    event.Envelope.EventID,
		EventType:  string(event.Descriptor.EventType),
		OccurredAt: event.Envelope.OccurredAt,
	}
	switch payload := event.Payload.(type) {
	case *payloads.OrderPaidEvent:
		row.OrderID = payload.OrderID.String()
		row.Email = payload.Email
		row.Status = string(enums.OrderStatusPaid)
		row.TotalCents = payload.TotalCents
		row.SubtotalCents = payload.SubtotalCents
		row.ShippingCents = payload.ShippingCents
		row.Currency = payload.Currency
		row.Reason = payload.Source
		for _, line := range payload.Lines {
			row.ItemCount += line.Quantity
		}
	case *payloads.OrderPaymentFailedEvent:
		row.OrderID = payload.OrderID.String()
		row.Email = payload.Email
		row.Status = string(enums.OrderStatusPaymentFailed)
		row.TotalCents = payload.TotalCents
		row.Reason = payload.Reason
	case *payloads.OrderReconciledEvent:
		row.OrderID = payload.OrderID.String()
		row.Email = payload.Email
		row.Status = string(enums.OrderStatusReconciled)
		row.Reason = payload.Reason
	default:
		return nil, fmt.Errorf("unsupported analytics payload %T", event.Payload)
	}
	return row, nil
}
