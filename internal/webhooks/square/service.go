package squarewebhook

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/metrics"
	"github.com/angelmondragon/smokeshop-backend/pkg/square"
)

const provider = "square"

type eventParser interface {
	ParseWebhookEvent(body []byte, signature string) (square.WebhookEvent, error)
}

type paymentApplier interface {
	ApplyGatewayPayment(ctx context.Context, payment *sq.Payment) (*models.Order, bool, error)
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// ServiceParams wires the Square webhook.
type ServiceParams struct {
	Parser   eventParser
	Payments paymentApplier
	Guard    deliveryGuard
	Logger   *logger.Logger
}

// Service applies Square payment notifications to orders.
type Service struct {
	parser   eventParser
	payments paymentApplier
	guard    deliveryGuard
	logg     *logger.Logger
}

// NewService requires a parser, a payment applier and a delivery guard.
func NewService(params ServiceParams) (*Service, error) {
	if params.Parser == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "square client required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment applier required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{
		parser:   params.Parser,
		payments: params.Payments,
		guard:    params.Guard,
		logg:     params.Logger,
	}, nil
}

// Handle verifies and applies one delivery. Events other than payment
// created/updated are acknowledged without effect.
func (s *Service) Handle(ctx context.Context, body []byte, signature string) error {
	event, err := s.parser.ParseWebhookEvent(body, signature)
	if err != nil {
		metrics.ObserveWebhook(provider, metrics.OutcomeRejected)
		return err
	}

	switch strings.ToLower(strings.TrimSpace(event.Type)) {
	case "payment.created", "payment.updated":
	default:
		metrics.ObserveWebhook(provider, metrics.OutcomeSuccess)
		return nil
	}

	eventID := strings.TrimSpace(event.EventID)
	if eventID == "" {
		eventID = event.Data.ID
	}
	if eventID == "" {
		metrics.ObserveWebhook(provider, metrics.OutcomeRejected)
		return pkgerrors.New(pkgerrors.CodeValidation, "square event id missing")
	}

	seen, err := s.guard.CheckAndMark(ctx, eventID)
	if err != nil {
		metrics.ObserveWebhook(provider, metrics.OutcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if seen {
		metrics.ObserveWebhook(provider, metrics.OutcomeDuplicate)
		return nil
	}

	if err := s.apply(ctx, event); err != nil {
		_ = s.guard.Delete(ctx, eventID)
		metrics.ObserveWebhook(provider, metrics.OutcomeError)
		return err
	}
	metrics.ObserveWebhook(provider, metrics.OutcomeSuccess)
	return nil
}

func (s *Service) apply(ctx context.Context, event square.WebhookEvent) error {
	payment, err := event.Payment()
	if err != nil {
		return err
	}
	order, changed, err := s.payments.ApplyGatewayPayment(ctx, payment)
	if err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{
			"event_id": event.EventID,
			"type":     event.Type,
			"changed":  changed,
		}
		if order != nil {
			fields["order_id"] = order.ID.String()
			fields["status"] = order.Status.String()
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), fmt.Sprintf("square webhook %s applied", event.Type))
	}
	return nil
}
