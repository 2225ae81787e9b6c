package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
)

// User represents the canonical identity entity. Guest rows are created at
// checkout and later claimed by signup or Google sign-in.
type User struct {
	ID                     uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email                  string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash           *string        `gorm:"column:password_hash"`
	Name                   *string        `gorm:"column:name"`
	Image                  *string        `gorm:"column:image"`
	Role                   enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`
	IsGuest                bool           `gorm:"column:is_guest;not null;default:false"`
	GoogleSubject          *string        `gorm:"column:google_subject;uniqueIndex"`
	SquareCustomerID       *string        `gorm:"column:square_customer_id"`
	ResetPasswordTokenHash *string        `gorm:"column:reset_password_token_hash;index"`
	ResetPasswordExpiresAt *time.Time     `gorm:"column:reset_password_expires_at"`
	LastLoginAt            *time.Time     `gorm:"column:last_login_at"`
	CreatedAt              time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
