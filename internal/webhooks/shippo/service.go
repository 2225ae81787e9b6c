package shippowebhook

import (
	"context"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/metrics"
	"github.com/angelmondragon/smokeshop-backend/pkg/shippo"
)

const provider = "shippo"

type trackingApplier interface {
	ApplyTracking(ctx context.Context, event shippo.WebhookEvent) (*models.Shipment, bool, error)
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Service applies Shippo tracking webhooks.
type Service struct {
	token    string
	tracking trackingApplier
	guard    deliveryGuard
	logg     *logger.Logger
}

// NewService builds the webhook service. An empty token rejects every call.
func NewService(token string, tracking trackingApplier, guard deliveryGuard, logg *logger.Logger) (*Service, error) {
	if tracking == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tracking applier required")
	}
	if guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{token: token, tracking: tracking, guard: guard, logg: logg}, nil
}

// Handle authenticates the query token and applies a track_updated event.
// Replays of the same scan and unknown tracking numbers succeed silently.
func (s *Service) Handle(ctx context.Context, token string, body []byte) error {
	if !shippo.VerifyWebhookToken(s.token, token) {
		metrics.ObserveWebhook(provider, metrics.OutcomeRejected)
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid shippo webhook token")
	}
	event, err := shippo.ParseWebhookEvent(body)
	if err != nil {
		metrics.ObserveWebhook(provider, metrics.OutcomeRejected)
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shippo webhook body")
	}
	if event.Event != shippo.EventTrackUpdated || event.Data.TrackingNumber == "" {
		metrics.ObserveWebhook(provider, metrics.OutcomeSuccess)
		return nil
	}

	key := event.DedupeKey()
	seen, err := s.guard.CheckAndMark(ctx, key)
	if err != nil {
		metrics.ObserveWebhook(provider, metrics.OutcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if seen {
		metrics.ObserveWebhook(provider, metrics.OutcomeDuplicate)
		return nil
	}

	shipment, changed, err := s.tracking.ApplyTracking(ctx, event)
	if err != nil {
		_ = s.guard.Delete(ctx, key)
		metrics.ObserveWebhook(provider, metrics.OutcomeError)
		return err
	}
	metrics.ObserveWebhook(provider, metrics.OutcomeSuccess)
	if s.logg != nil {
		fields := map[string]any{"tracking_number": event.Data.TrackingNumber, "changed": changed}
		if shipment != nil {
			fields["shipment_id"] = shipment.ID.String()
			fields["status"] = shipment.Status.String()
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "shippo webhook applied")
	}
	return nil
}
