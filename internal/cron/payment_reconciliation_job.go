package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

type reconciler interface {
	RunOnce(ctx context.Context) (checkout.ReconcileSummary, error)
}

// NewPaymentReconciliationJob settles stale pending and failed checkouts.
func NewPaymentReconciliationJob(logg *logger.Logger, rec reconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rec == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &paymentReconciliationJob{logg: logg, reconciler: rec}, nil
}

type paymentReconciliationJob struct {
	logg       *logger.Logger
	reconciler reconciler
}

func (j *paymentReconciliationJob) Name() string { return "payment-reconciliation" }

func (j *paymentReconciliationJob) Run(ctx context.Context) error {
	summary, err := j.reconciler.RunOnce(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":    summary.Scanned,
		"paid":       summary.Paid,
		"reconciled": summary.Reconciled,
		"pending":    summary.Pending,
		"failed":     summary.Failed,
	})
	if err != nil {
		return fmt.Errorf("payment reconciliation: %w", err)
	}
	j.logg.Info(logCtx, "payment reconciliation pass complete")
	return nil
}
