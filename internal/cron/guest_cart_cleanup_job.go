package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

const defaultGuestCartRetention = 30 * 24 * time.Hour

type guestCartStore interface {
	DeleteAbandonedGuestCarts(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewGuestCartCleanupJob removes guest carts untouched for the retention window.
func NewGuestCartCleanupJob(logg *logger.Logger, carts guestCartStore, retention time.Duration) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if retention <= 0 {
		retention = defaultGuestCartRetention
	}
	return &guestCartCleanupJob{logg: logg, carts: carts, retention: retention, now: time.Now}, nil
}

type guestCartCleanupJob struct {
	logg      *logger.Logger
	carts     guestCartStore
	retention time.Duration
	now       func() time.Time
}

func (j *guestCartCleanupJob) Name() string { return "guest-cart-cleanup" }

func (j *guestCartCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.carts.DeleteAbandonedGuestCarts(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("guest cart cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "guest cart cleanup complete")
	return nil
}
