package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
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

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByGoogleSubject loads the user linked to a Google account.
func (r *Repository) FindByGoogleSubject(ctx context.Context, subject string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("google_subject = ?", subject).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByResetTokenHash loads the user holding an unexpired reset token.
func (r *Repository) FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("reset_password_token_hash = ? AND reset_password_expires_at > ?", hash, now).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IsRegistered reports whether email belongs to a non-guest account.
func (r *Repository) IsRegistered(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ? AND is_guest = ?", NormalizeEmail(email), false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindOrCreateGuest returns the user for email, inserting a guest row when
// none exists.
func (r *Repository) FindOrCreateGuest(ctx context.Context, email string, name *string) (*models.User, error) {
	user, err := r.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return r.Create(ctx, CreateUserDTO{Email: email, Name: name, IsGuest: true})
}

// Update applies column updates to a user row.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// SetResetToken stores the digest of a password reset token with its expiry.
func (r *Repository) SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_password_token_hash": hash,
			"reset_password_expires_at": expiresAt,
		}).Error
}

// CompletePasswordReset sets the new hash and clears the reset token, but only
// while the stored token still matches so a token is consumed once.
func (r *Repository) CompletePasswordReset(ctx context.Context, id uuid.UUID, tokenHash, passwordHash string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND reset_password_token_hash = ?", id, tokenHash).
		Updates(map[string]any{
			"password_hash":             passwordHash,
			"is_guest":                  false,
			"reset_password_token_hash": nil,
			"reset_password_expires_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
