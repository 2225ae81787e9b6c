package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Payment sources recorded on order_paid events.
const (
	SourceCheckout  = "checkout"
	SourceReconcile = "reconciliation"
	SourceWebhook   = "square_webhook"
)

// PaymentOutcome is the processor's view of one payment.
type PaymentOutcome struct {
	PaymentID string
	Status    enums.GatewayPaymentStatus
	Source    string
}

// Settler applies payment outcomes to orders. Every settlement reloads the
// order inside its transaction and is a no-op when the order already reached
// the target state, so checkout, reconciliation and webhooks can race safely.
type Settler struct {
	tx     txRunner
	orders *orders.Repository
	carts  *cart.Repository
	outbox outboxPublisher
}

// NewSettler builds the shared settlement helper.
func NewSettler(tx txRunner, ordersRepo *orders.Repository, carts *cart.Repository, publisher outboxPublisher) (*Settler, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Settler{tx: tx, orders: ordersRepo, carts: carts, outbox: publisher}, nil
}

// MarkPaid moves the order to paid, emits order_paid and empties the buyer's
// cart. The bool reports whether this call changed the order.
func (s *Settler) MarkPaid(ctx context.Context, orderID uuid.UUID, outcome PaymentOutcome) (*models.Order, bool, error) {
	var (
		result  *models.Order
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		result = order
		if order.Status == enums.OrderStatusPaid {
			return nil
		}

		paidAt := time.Now().UTC()
		fields := map[string]any{
			"paid_at":        paidAt,
			"payment_status": outcome.Status.String(),
		}
		if outcome.PaymentID != "" {
			fields["payment_id"] = outcome.PaymentID
		}
		if err := repo.Transition(ctx, order, enums.OrderStatusPaid, fields); err != nil {
			return err
		}
		order.PaidAt = &paidAt
		if outcome.PaymentID != "" {
			order.PaymentID = &outcome.PaymentID
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         orderActor(order, outcome.Source),
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				Email:         order.Email,
				Name:          order.Name,
				PaymentID:     outcome.PaymentID,
				SubtotalCents: order.SubtotalCents,
				ShippingCents: order.ShippingCents,
				TotalCents:    order.TotalCents,
				Currency:      order.Currency,
				Lines:         orders.Lines(order),
				PaidAt:        paidAt,
				Source:        outcome.Source,
			},
		}); err != nil {
			return err
		}
		if err := s.carts.WithTx(tx).Clear(ctx, order.Email); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return result, changed, err
}

// MarkFailed records a declined or failed payment on a pending order and emits
// order_payment_failed. Orders in any other state are left untouched.
func (s *Settler) MarkFailed(ctx context.Context, orderID uuid.UUID, outcome PaymentOutcome, reason string) (*models.Order, bool, error) {
	var (
		result  *models.Order
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		result = order
		if order.Status != enums.OrderStatusPendingPayment {
			return nil
		}

		fields := map[string]any{"last_payment_error": reason}
		if outcome.Status != "" {
			fields["payment_status"] = outcome.Status.String()
		}
		if outcome.PaymentID != "" {
			fields["payment_id"] = outcome.PaymentID
		}
		if err := repo.Transition(ctx, order, enums.OrderStatusPaymentFailed, fields); err != nil {
			return err
		}
		order.LastPaymentError = &reason

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         orderActor(order, outcome.Source),
			Data: payloads.OrderPaymentFailedEvent{
				OrderID:    order.ID,
				Email:      order.Email,
				TotalCents: order.TotalCents,
				Reason:     reason,
				Attempts:   order.PaymentAttempts,
			},
		}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return result, changed, err
}

// MarkReconciled closes an unsettled order and emits order_reconciled.
func (s *Settler) MarkReconciled(ctx context.Context, orderID uuid.UUID, reason string, outcome PaymentOutcome) (*models.Order, bool, error) {
	var (
		result  *models.Order
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		result = order
		if order.Status.IsSettled() {
			return nil
		}

		previous := order.Status
		now := time.Now().UTC()
		fields := map[string]any{"reconciled_at": now}
		if outcome.Status != "" {
			fields["payment_status"] = outcome.Status.String()
		}
		if err := repo.Transition(ctx, order, enums.OrderStatusReconciled, fields); err != nil {
			return err
		}
		order.ReconciledAt = &now

		paymentID := outcome.PaymentID
		if paymentID == "" && order.PaymentID != nil {
			paymentID = *order.PaymentID
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderReconciled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.SystemActor(outcome.Source),
			Data: payloads.OrderReconciledEvent{
				OrderID:        order.ID,
				Email:          order.Email,
				PreviousStatus: previous,
				PaymentID:      paymentID,
				Reason:         reason,
				ReconciledAt:   now,
			},
		}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return result, changed, err
}

func orderActor(order *models.Order, source string) *outbox.ActorRef {
	if source != SourceCheckout {
		return outbox.SystemActor(source)
	}
	userID := order.UserID
	return &outbox.ActorRef{UserID: &userID, Email: order.Email}
}
