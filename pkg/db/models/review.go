package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a customer rating of a product, keyed by submitter email.
type Review struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:reviews_product_email_key,priority:1"`
	UserEmail string    `gorm:"column:user_email;type:text;not null;uniqueIndex:reviews_product_email_key,priority:2"`
	Name      string    `gorm:"column:name;not null"`
	Rating    int       `gorm:"column:rating;not null"`
	Title     *string   `gorm:"column:title"`
	Body      string    `gorm:"column:body;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
