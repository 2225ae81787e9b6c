package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/pagination"
)

// Repository persists orders, their items and their shipment row.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the order header together with its items and shipment.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *Repository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Shipment")
}

// FindByID loads an order with items and shipment.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIdempotencyKey loads the order created by a checkout attempt.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).Where("idempotency_key = ?", key).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByPaymentID loads the order that recorded the processor payment id.
func (r *Repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).Where("payment_id = ?", paymentID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListFilters narrows order listings.
type ListFilters struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}

// List returns orders newest first using keyset pagination on
// (created_at, id) and the cursor of the following page.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.withDetails(ctx).Model(&models.Order{})
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		last := rows[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	return rows, next, nil
}

// ListStale returns unsettled orders untouched since before, oldest first.
func (r *Repository) ListStale(ctx context.Context, statuses []enums.OrderStatus, before time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status IN ?", statuses).
		Where("updated_at < ?", before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Transition moves the order from its loaded status to next when the state
// machine allows it. The update is conditional on the loaded status so
// concurrent settlements cannot both win.
func (r *Repository) Transition(ctx context.Context, order *models.Order, next enums.OrderStatus, fields map[string]any) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	from := order.Status
	if !from.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal order status transition").
			WithDetails(map[string]any{"from": from, "to": next})
	}

	now := time.Now().UTC()
	updates := map[string]any{}
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = next
	updates["is_paid"] = next == enums.OrderStatusPaid
	updates["updated_at"] = now

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently").
			WithDetails(map[string]any{"order_id": order.ID})
	}

	order.Status = next
	order.IsPaid = next == enums.OrderStatusPaid
	order.UpdatedAt = now
	return nil
}

// PaymentAttempt records the outcome of one processor call.
type PaymentAttempt struct {
	PaymentID     *string
	PaymentStatus *string
	Error         *string
}

// RecordPaymentAttempt increments the attempt counter and stores the latest
// processor identifiers without touching the status.
func (r *Repository) RecordPaymentAttempt(ctx context.Context, orderID uuid.UUID, attempt PaymentAttempt) error {
	updates := map[string]any{
		"payment_attempts": gorm.Expr("payment_attempts + 1"),
		"updated_at":       time.Now().UTC(),
	}
	if attempt.PaymentID != nil {
		updates["payment_id"] = *attempt.PaymentID
	}
	if attempt.PaymentStatus != nil {
		updates["payment_status"] = *attempt.PaymentStatus
	}
	if attempt.Error != nil {
		updates["last_payment_error"] = *attempt.Error
	}
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error
}
