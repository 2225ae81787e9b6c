package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
)

// Shipment tracks the single parcel of an order.
type Shipment struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Carrier         string               `gorm:"column:carrier;not null"`
	ServiceLevel    string               `gorm:"column:service_level;not null"`
	RateObjectID    string               `gorm:"column:rate_object_id;not null"`
	RateCents       int64                `gorm:"column:rate_cents;not null"`
	TransactionID   *string              `gorm:"column:transaction_id"`
	TrackingNumber  *string              `gorm:"column:tracking_number;index"`
	TrackingURL     *string              `gorm:"column:tracking_url"`
	LabelURL        *string              `gorm:"column:label_url"`
	Status          enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'awaiting_label'"`
	StatusDetails   *string              `gorm:"column:status_details"`
	StatusUpdatedAt *time.Time           `gorm:"column:status_updated_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shipment) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
