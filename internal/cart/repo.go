package cart

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

// Repository persists carts keyed by email.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
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

// FindByEmail loads the cart for email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("email = ?", users.NormalizeEmail(email)).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts a cart at version 1.
func (r *Repository) Create(ctx context.Context, email string, items models.CartItems) (*models.Cart, error) {
	cart := &models.Cart{Email: users.NormalizeEmail(email), Items: items, Version: 1}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// ReplaceItems overwrites the item array and bumps the version. When
// expectedVersion is non-nil the update only applies at that version; the
// returned bool reports whether a row changed.
func (r *Repository) ReplaceItems(ctx context.Context, email string, items models.CartItems, expectedVersion *int) (bool, error) {
	if items == nil {
		items = models.CartItems{}
	}
	q := r.db.WithContext(ctx).Model(&models.Cart{}).Where("email = ?", users.NormalizeEmail(email))
	if expectedVersion != nil {
		q = q.Where("version = ?", *expectedVersion)
	}
	res := q.Updates(map[string]any{
		"items":      items,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Clear empties the cart for email if one exists.
func (r *Repository) Clear(ctx context.Context, email string) error {
	_, err := r.ReplaceItems(ctx, email, models.CartItems{}, nil)
	return err
}

// DeleteAbandonedGuestCarts removes carts untouched since cutoff whose email
// has no registered account.
func (r *Repository) DeleteAbandonedGuestCarts(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Where("email NOT IN (SELECT email FROM users WHERE is_guest = ?)", false).
		Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
