package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

// Order is the checkout header. IsPaid mirrors Status == paid.
type Order struct {
	ID                   uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Email                string            `gorm:"column:email;type:text;not null;index"`
	Name                 string            `gorm:"column:name;not null"`
	Phone                string            `gorm:"column:phone;not null"`
	Status               enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending_payment'"`
	IsPaid               bool              `gorm:"column:is_paid;not null;default:false"`
	PaidAt               *time.Time        `gorm:"column:paid_at"`
	ShippingAddress      types.Address     `gorm:"column:shipping_address;type:jsonb;not null"`
	SubtotalCents        int64             `gorm:"column:subtotal_cents;not null"`
	ShippingCents        int64             `gorm:"column:shipping_cents;not null"`
	TotalCents           int64             `gorm:"column:total_cents;not null"`
	Currency             string            `gorm:"column:currency;not null;default:'USD'"`
	IdempotencyKey       string            `gorm:"column:idempotency_key;not null;uniqueIndex"`
	ShippingRateID       string            `gorm:"column:shipping_rate_id;not null"`
	ShippingCarrier      string            `gorm:"column:shipping_carrier;not null"`
	ShippingServiceLevel string            `gorm:"column:shipping_service_level;not null"`
	ShippingEstDays      *int              `gorm:"column:shipping_est_days"`
	PaymentID            *string           `gorm:"column:payment_id;index"`
	PaymentStatus        *string           `gorm:"column:payment_status"`
	PaymentAttempts      int               `gorm:"column:payment_attempts;not null;default:0"`
	LastPaymentError     *string           `gorm:"column:last_payment_error"`
	ReconciledAt         *time.Time        `gorm:"column:reconciled_at"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items    []OrderItem `gorm:"foreignKey:OrderID"`
	Shipment *Shipment   `gorm:"foreignKey:OrderID"`
}

// OrderItem is a purchased line with its frozen product snapshot.
type OrderItem struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	Quantity       int                   `gorm:"column:quantity;not null"`
	UnitPriceCents int64                 `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int64                 `gorm:"column:line_total_cents;not null"`
	Snapshot       types.ProductSnapshot `gorm:"column:product_snapshot;type:jsonb;not null"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
