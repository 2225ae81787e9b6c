package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/metrics"
)

const defaultReconcileBatch = 100

// Reconciliation reasons recorded on order_reconciled events.
const (
	ReasonPaymentFailed  = "payment_failed_at_processor"
	ReasonPaymentExpired = "payment_pending_too_long"
	ReasonNoPayment      = "no_payment_recorded"
)

type paymentLookup interface {
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// ReconcileSummary counts what one reconciliation pass did.
type ReconcileSummary struct {
	Scanned    int `json:"scanned"`
	Paid       int `json:"paid"`
	Reconciled int `json:"reconciled"`
	Pending    int `json:"pending"`
	Failed     int `json:"failed"`
}

// Reconciler settles orders stuck in pending_payment or payment_failed by
// asking the processor what happened to their payment.
type Reconciler struct {
	orders   *orders.Repository
	payments paymentLookup
	settler  *Settler
	cfg      config.CheckoutConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewReconciler builds the reconciliation pass.
func NewReconciler(ordersRepo *orders.Repository, payments paymentLookup, settler *Settler, cfg config.CheckoutConfig, logg *logger.Logger) (*Reconciler, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment lookup required")
	}
	if settler == nil {
		return nil, fmt.Errorf("settler required")
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = defaultReconcileBatch
	}
	return &Reconciler{
		orders:   ordersRepo,
		payments: payments,
		settler:  settler,
		cfg:      cfg,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// RunOnce processes one batch of stale orders. A failing order does not stop
// the batch; errors are combined and returned with the summary.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileSummary, error) {
	var summary ReconcileSummary
	now := r.now()
	stale, err := r.orders.ListStale(ctx,
		[]enums.OrderStatus{enums.OrderStatusPendingPayment, enums.OrderStatusPaymentFailed},
		now.Add(-r.cfg.PendingTimeout),
		r.cfg.ReconcileBatch,
	)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale orders")
	}

	var errs error
	for i := range stale {
		order := &stale[i]
		summary.Scanned++
		status, err := r.reconcileOrder(ctx, order, now)
		if err != nil {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			metrics.ObserveReconciliation(metrics.OutcomeError)
			continue
		}
		switch status {
		case enums.OrderStatusPaid:
			summary.Paid++
		case enums.OrderStatusReconciled:
			summary.Reconciled++
		default:
			summary.Pending++
		}
		metrics.ObserveReconciliation(status.String())
	}

	if r.logg != nil {
		ctx = r.logg.WithFields(ctx, map[string]any{
			"scanned":    summary.Scanned,
			"paid":       summary.Paid,
			"reconciled": summary.Reconciled,
			"pending":    summary.Pending,
			"failed":     summary.Failed,
		})
		r.logg.Info(ctx, "checkout.reconcile_pass")
	}
	return summary, errs
}

func (r *Reconciler) reconcileOrder(ctx context.Context, order *models.Order, now time.Time) (enums.OrderStatus, error) {
	if order.PaymentID == nil || *order.PaymentID == "" {
		settled, _, err := r.settler.MarkReconciled(ctx, order.ID, ReasonNoPayment, PaymentOutcome{Source: SourceReconcile})
		if err != nil {
			return "", err
		}
		return settled.Status, nil
	}

	payment, err := r.payments.GetPayment(ctx, *order.PaymentID)
	if err != nil {
		return "", err
	}
	outcome := outcomeFromPayment(payment, SourceReconcile)
	if outcome.PaymentID == "" {
		outcome.PaymentID = *order.PaymentID
	}

	switch {
	case outcome.Status.IsCaptured():
		settled, _, err := r.settler.MarkPaid(ctx, order.ID, outcome)
		if err != nil {
			return "", err
		}
		return settled.Status, nil
	case outcome.Status.IsTerminalFailure():
		settled, _, err := r.settler.MarkReconciled(ctx, order.ID, ReasonPaymentFailed, outcome)
		if err != nil {
			return "", err
		}
		return settled.Status, nil
	case now.Sub(order.CreatedAt) > r.cfg.MaxReconcileAge:
		settled, _, err := r.settler.MarkReconciled(ctx, order.ID, ReasonPaymentExpired, outcome)
		if err != nil {
			return "", err
		}
		return settled.Status, nil
	default:
		return order.Status, nil
	}
}

// ApplyGatewayPayment settles the order a processor payment notification
// refers to. The order is located by the payment's reference id, falling back
// to the recorded payment id. Unknown payments are ignored.
func (r *Reconciler) ApplyGatewayPayment(ctx context.Context, payment *sq.Payment) (*models.Order, bool, error) {
	if payment == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "payment is required")
	}
	outcome := outcomeFromPayment(payment, SourceWebhook)
	order, err := r.findPaymentOrder(ctx, payment, outcome.PaymentID)
	if err != nil || order == nil {
		return nil, false, err
	}

	switch {
	case outcome.Status.IsCaptured():
		return r.settler.MarkPaid(ctx, order.ID, outcome)
	case outcome.Status.IsTerminalFailure():
		if order.PaymentID != nil && outcome.PaymentID != "" && *order.PaymentID != outcome.PaymentID {
			return order, false, nil
		}
		return r.settler.MarkFailed(ctx, order.ID, outcome, "payment "+lowerStatus(outcome.Status))
	default:
		return order, false, nil
	}
}

func (r *Reconciler) findPaymentOrder(ctx context.Context, payment *sq.Payment, paymentID string) (*models.Order, error) {
	if ref := derefString(payment.GetReferenceID()); ref != "" {
		if id, err := uuid.Parse(ref); err == nil {
			order, err := r.orders.FindByID(ctx, id)
			switch {
			case err == nil:
				return order, nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by reference")
			}
		}
	}
	if paymentID == "" {
		return nil, nil
	}
	order, err := r.orders.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by payment id")
	}
	return order, nil
}

func outcomeFromPayment(payment *sq.Payment, source string) PaymentOutcome {
	return PaymentOutcome{
		PaymentID: derefString(payment.GetID()),
		Status:    enums.ParseGatewayPaymentStatus(derefString(payment.GetStatus())),
		Source:    source,
	}
}

func lowerStatus(status enums.GatewayPaymentStatus) string {
	if status == "" {
		return "failed"
	}
	return strings.ToLower(status.String())
}
