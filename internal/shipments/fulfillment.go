package shipments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/registry"
)

// FulfillmentConsumerName scopes the fulfillment idempotency markers.
const FulfillmentConsumerName = "fulfillment"

type labelPurchaser interface {
	PurchaseLabel(ctx context.Context, orderID uuid.UUID) (*models.Shipment, bool, error)
}

type confirmationSender interface {
	SendOrderConfirmation(ctx context.Context, orderID uuid.UUID) error
}

// FulfillmentHandler buys the label for each paid order and then sends the
// order confirmation.
type FulfillmentHandler struct {
	labels  labelPurchaser
	confirm confirmationSender
	logg    *logger.Logger
}

// NewFulfillmentHandler wires the order_paid handler.
func NewFulfillmentHandler(labels labelPurchaser, confirm confirmationSender, logg *logger.Logger) (*FulfillmentHandler, error) {
	if labels == nil {
		return nil, fmt.Errorf("label purchaser required")
	}
	if confirm == nil {
		return nil, fmt.Errorf("confirmation sender required")
	}
	return &FulfillmentHandler{labels: labels, confirm: confirm, logg: logg}, nil
}

// Handles reports whether the event is an order_paid.
func (h *FulfillmentHandler) Handles(eventType enums.OutboxEventType) bool {
	return eventType == enums.EventOrderPaid
}

// Handle purchases the label and emails the confirmation. Transient label
// failures are returned so the message redelivers; permanent ones are logged
// and the confirmation goes out without tracking.
func (h *FulfillmentHandler) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	payload, ok := event.Payload.(*payloads.OrderPaidEvent)
	if !ok {
		return fmt.Errorf("unexpected fulfillment payload %T", event.Payload)
	}
	if h.logg != nil {
		ctx = h.logg.WithOrderID(ctx, payload.OrderID.String())
	}

	if _, _, err := h.labels.PurchaseLabel(ctx, payload.OrderID); err != nil {
		if isTransient(err) {
			return err
		}
		if h.logg != nil {
			h.logg.Error(ctx, "fulfillment.label_failed", err)
		}
	}
	return h.confirm.SendOrderConfirmation(ctx, payload.OrderID)
}

func isTransient(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	switch typed.Code() {
	case pkgerrors.CodeDependency, pkgerrors.CodeRateLimit, pkgerrors.CodeInternal, pkgerrors.CodeConflict:
		return true
	default:
		return false
	}
}
