package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
)

// OrderLine is the compact line representation carried by order events.
type OrderLine struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// OrderCreatedEvent is emitted when checkout persists a pending order.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	Email      string            `json:"email"`
	Guest      bool              `json:"guest"`
	Status     enums.OrderStatus `json:"status"`
	TotalCents int64             `json:"total_cents"`
	Currency   string            `json:"currency"`
	Lines      []OrderLine       `json:"lines"`
}

// OrderPaidEvent is emitted once the processor captured the charge.
type OrderPaidEvent struct {
	OrderID       uuid.UUID   `json:"order_id"`
	UserID        uuid.UUID   `json:"user_id"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
	PaymentID     string      `json:"payment_id"`
	SubtotalCents int64       `json:"subtotal_cents"`
	ShippingCents int64       `json:"shipping_cents"`
	TotalCents    int64       `json:"total_cents"`
	Currency      string      `json:"currency"`
	Lines         []OrderLine `json:"lines"`
	PaidAt        time.Time   `json:"paid_at"`
	Source        string      `json:"source"`
}

// OrderPaymentFailedEvent is emitted when the processor declined the card.
type OrderPaymentFailedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	Email      string    `json:"email"`
	TotalCents int64     `json:"total_cents"`
	Reason     string    `json:"reason"`
	Attempts   int       `json:"attempts"`
}

// OrderReconciledEvent is emitted when an abandoned order is closed out.
type OrderReconciledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	Email          string            `json:"email"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	PaymentID      string            `json:"payment_id,omitempty"`
	Reason         string            `json:"reason"`
	ReconciledAt   time.Time         `json:"reconciled_at"`
}

// ShipmentStatusChangedEvent is emitted when tracking moves a parcel to a
// customer-visible status.
type ShipmentStatusChangedEvent struct {
	ShipmentID     uuid.UUID            `json:"shipment_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	Email          string               `json:"email"`
	Name           string               `json:"name"`
	PreviousStatus enums.ShipmentStatus `json:"previous_status"`
	Status         enums.ShipmentStatus `json:"status"`
	Carrier        string               `json:"carrier"`
	TrackingNumber string               `json:"tracking_number,omitempty"`
	TrackingURL    string               `json:"tracking_url,omitempty"`
	StatusDetails  string               `json:"status_details,omitempty"`
	ChangedAt      time.Time            `json:"changed_at"`
}
