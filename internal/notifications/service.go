package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/email"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/metrics"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/registry"
)

// ConsumerName scopes the email idempotency markers.
const ConsumerName = "notifications"

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Service renders and sends customer emails for order events.
type Service struct {
	sender    email.Sender
	orders    orderLoader
	storeName string
	publicURL string
	logg      *logger.Logger
}

// NewService wires the email sender.
func NewService(sender email.Sender, orders orderLoader, app config.AppConfig, logg *logger.Logger) (*Service, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	return &Service{
		sender:    sender,
		orders:    orders,
		storeName: app.StoreName,
		publicURL: app.BaseURL(),
		logg:      logg,
	}, nil
}

// SendOrderConfirmation emails the receipt for a paid order, including
// tracking when the label was already purchased.
func (s *Service) SendOrderConfirmation(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if !order.IsPaid {
		return nil
	}

	data := email.OrderConfirmation{
		StoreName:     s.storeName,
		Email:         order.Email,
		Name:          order.Name,
		OrderID:       order.ID.String(),
		SubtotalCents: order.SubtotalCents,
		ShippingCents: order.ShippingCents,
		TotalCents:    order.TotalCents,
	}
	for _, item := range order.Items {
		data.Lines = append(data.Lines, email.OrderLine{
			Name:           item.Snapshot.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	if order.Shipment != nil {
		data.TrackingNumber = deref(order.Shipment.TrackingNumber)
		data.TrackingURL = deref(order.Shipment.TrackingURL)
	}

	msg, err := email.RenderOrderConfirmation(data)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// SendPaymentFailed tells the buyer the card was declined.
func (s *Service) SendPaymentFailed(ctx context.Context, event payloads.OrderPaymentFailedEvent) error {
	if strings.TrimSpace(event.Email) == "" {
		return nil
	}
	msg, err := email.RenderPaymentFailed(email.PaymentFailed{
		StoreName:   s.storeName,
		Email:       event.Email,
		OrderID:     event.OrderID.String(),
		TotalCents:  event.TotalCents,
		Reason:      event.Reason,
		CheckoutURL: s.publicURL + "/checkout",
	})
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// SendShipmentStatus emails a customer-visible tracking change.
func (s *Service) SendShipmentStatus(ctx context.Context, event payloads.ShipmentStatusChangedEvent) error {
	if !event.Status.NotifiesCustomer() || strings.TrimSpace(event.Email) == "" {
		return nil
	}
	msg, err := email.RenderShipmentStatus(email.ShipmentStatus{
		StoreName:      s.storeName,
		Email:          event.Email,
		Name:           event.Name,
		OrderID:        event.OrderID.String(),
		Status:         event.Status.String(),
		Carrier:        event.Carrier,
		TrackingNumber: event.TrackingNumber,
		TrackingURL:    event.TrackingURL,
		StatusDetails:  event.StatusDetails,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *Service) send(ctx context.Context, msg email.Message) error {
	if err := s.sender.Send(ctx, msg); err != nil {
		metrics.ObserveEmail(msg.Template, metrics.OutcomeError)
		return err
	}
	metrics.ObserveEmail(msg.Template, metrics.OutcomeSuccess)
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"template": msg.Template,
			"to":       logger.MaskEmail(msg.To),
		}), "notifications.email_sent")
	}
	return nil
}

// Handler adapts the service to outbox consumers.
type Handler struct {
	svc *Service
}

// NewHandler wraps svc for the notification subscriptions.
func NewHandler(svc *Service) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	return &Handler{svc: svc}, nil
}

// Handles reports whether the event produces an email on its own.
func (h *Handler) Handles(eventType enums.OutboxEventType) bool {
	return eventType == enums.EventOrderPaymentFailed || eventType == enums.EventShipmentStatusChanged
}

// Handle sends the email for the event.
func (h *Handler) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	switch payload := event.Payload.(type) {
	case *payloads.OrderPaymentFailedEvent:
		return h.svc.SendPaymentFailed(ctx, *payload)
	case *payloads.ShipmentStatusChangedEvent:
		return h.svc.SendShipmentStatus(ctx, *payload)
	default:
		return fmt.Errorf("unsupported notification payload %T", event.Payload)
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
