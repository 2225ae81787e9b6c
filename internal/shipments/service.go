package shipments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/smokeshop-backend/pkg/shippo"
)

const trackingActor = "shippo_webhook"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type labelBuyer interface {
	PurchaseLabel(ctx context.Context, rateID string) (*shippo.Transaction, error)
}

// Service buys labels and applies carrier tracking to shipments.
type Service struct {
	tx     txRunner
	repo   *Repository
	orders *orders.Repository
	labels labelBuyer
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the shipment service. labels may be nil when Shippo is
// not configured; label purchases then fail with a dependency error.
func NewService(tx txRunner, repo *Repository, ordersRepo *orders.Repository, labels labelBuyer, publisher outboxPublisher, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Service{
		tx:     tx,
		repo:   repo,
		orders: ordersRepo,
		labels: labels,
		outbox: publisher,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// PurchaseLabel buys the label for a paid order's selected rate. Shipments
// that already moved past awaiting_label are returned unchanged.
func (s *Service) PurchaseLabel(ctx context.Context, orderID uuid.UUID) (*models.Shipment, bool, error) {
	shipment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
	}
	if shipment.Status != enums.ShipmentStatusAwaitingLabel {
		return shipment, false, nil
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !order.IsPaid {
		return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid").
			WithDetails(map[string]any{"status": order.Status})
	}
	if s.labels == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeDependency, "label purchasing unavailable")
	}

	txn, err := s.labels.PurchaseLabel(ctx, shipment.RateObjectID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			if detailErr := s.repo.SetStatusDetails(ctx, shipment.ID, truncate(err.Error(), 500)); detailErr != nil && s.logg != nil {
				s.logg.Error(ctx, "shipments.status_details_failed", detailErr)
			}
		}
		return nil, false, err
	}

	at := s.now()
	label := Label{
		TransactionID:  txn.ObjectID,
		TrackingNumber: strings.TrimSpace(txn.TrackingNumber),
		TrackingURL:    strings.TrimSpace(txn.TrackingURLProvider),
		LabelURL:       strings.TrimSpace(txn.LabelURL),
	}
	updated, err := s.repo.MarkLabelPurchased(ctx, shipment.ID, label, at)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store label")
	}
	reloaded, err := s.repo.FindByID(ctx, shipment.ID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload shipment")
	}
	if updated && s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "shipments.label_purchased")
	}
	return reloaded, updated, nil
}

// ApplyTracking applies a track_updated event. Unknown tracking numbers and
// scans older than the stored status are ignored. Customer-visible status
// changes emit shipment_status_changed.
func (s *Service) ApplyTracking(ctx context.Context, event shippo.WebhookEvent) (*models.Shipment, bool, error) {
	if event.Event != shippo.EventTrackUpdated {
		return nil, false, nil
	}
	number := strings.TrimSpace(event.Data.TrackingNumber)
	if number == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}

	next := enums.ParseCarrierTrackingStatus(event.Data.TrackingStatus.Status)
	details := strings.TrimSpace(event.Data.TrackingStatus.StatusDetails)
	at := s.now()
	if event.Data.TrackingStatus.StatusDate != nil {
		at = event.Data.TrackingStatus.StatusDate.UTC()
	}

	var (
		result  *models.Shipment
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		shipment, err := repo.FindByTrackingNumber(ctx, number)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
		}
		result = shipment
		if shipment.Status == next {
			return nil
		}
		if shipment.StatusUpdatedAt != nil && at.Before(*shipment.StatusUpdatedAt) {
			return nil
		}

		previous := shipment.Status
		ok, err := repo.UpdateTracking(ctx, shipment, next, details, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shipment status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "shipment status changed concurrently")
		}
		changed = true
		if !next.NotifiesCustomer() {
			return nil
		}

		order, err := s.orders.WithTx(tx).FindByID(ctx, shipment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShipmentStatusChanged,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipment.ID,
			Actor:         outbox.SystemActor(trackingActor),
			Data: payloads.ShipmentStatusChangedEvent{
				ShipmentID:     shipment.ID,
				OrderID:        order.ID,
				Email:          order.Email,
				Name:           order.Name,
				PreviousStatus: previous,
				Status:         next,
				Carrier:        shipment.Carrier,
				TrackingNumber: number,
				TrackingURL:    deref(shipment.TrackingURL),
				StatusDetails:  details,
				ChangedAt:      at,
			},
		})
	})
	if err != nil {
		return nil, false, err
	}
	if changed && s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"shipment_id": result.ID.String(),
			"status":      next.String(),
		}), "shipments.tracking_updated")
	}
	return result, changed, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// truncate caps value at max bytes without splitting a multi-byte rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
