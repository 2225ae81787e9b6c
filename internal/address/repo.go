package address

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

// Repository persists saved shipping addresses.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an address repository bound to db.
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

// Create inserts addr. A default address clears the flag on the owner's
// other rows first.
func (r *Repository) Create(ctx context.Context, addr *models.Address) error {
	if addr.IsDefault {
		if err := r.clearDefault(ctx, addr.UserEmail, nil); err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).Create(addr).Error
}

// ListByEmail returns the owner's addresses, default first.
func (r *Repository) ListByEmail(ctx context.Context, email string) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("user_email = ?", email).
		Order("is_default DESC, created_at DESC").
		Find(&rows).Error
	return rows, err
}

// FindForOwner loads an address only when it belongs to email.
func (r *Repository) FindForOwner(ctx context.Context, id uuid.UUID, email string) (*models.Address, error) {
	var addr models.Address
	if err := r.db.WithContext(ctx).Where("id = ? AND user_email = ?", id, email).First(&addr).Error; err != nil {
		return nil, err
	}
	return &addr, nil
}

// Exists reports whether the owner already saved the same street address.
func (r *Repository) Exists(ctx context.Context, email, line1, postalCode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("user_email = ? AND LOWER(line1) = LOWER(?) AND postal_code = ?", email, line1, postalCode).
		Count(&count).Error
	return count > 0, err
}

// Update applies column updates to an owned address.
func (r *Repository) Update(ctx context.Context, addr *models.Address, updates map[string]any) error {
	if isDefault, ok := updates["is_default"].(bool); ok && isDefault {
		if err := r.clearDefault(ctx, addr.UserEmail, &addr.ID); err != nil {
			return err
		}
	}
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.Address{}).Where("id = ?", addr.ID).Updates(updates).Error
}

// Delete removes an owned address and reports whether a row matched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, email string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_email = ?", id, email).Delete(&models.Address{})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) clearDefault(ctx context.Context, email string, except *uuid.UUID) error {
	query := r.db.WithContext(ctx).Model(&models.Address{}).Where("user_email = ? AND is_default = ?", email, true)
	if except != nil {
		query = query.Where("id <> ?", *except)
	}
	return query.Update("is_default", false).Error
}
