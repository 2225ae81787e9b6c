package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

// ItemDTO is one purchased line with its frozen snapshot.
type ItemDTO struct {
	ID             uuid.UUID             `json:"id"`
	ProductID      uuid.UUID             `json:"product_id"`
	Quantity       int                   `json:"quantity"`
	UnitPriceCents int64                 `json:"unit_price_cents"`
	LineTotalCents int64                 `json:"line_total_cents"`
	Product        types.ProductSnapshot `json:"product"`
}

// ShippingDTO is the rate selected at checkout.
type ShippingDTO struct {
	RateID        string `json:"rate_id"`
	Carrier       string `json:"carrier"`
	ServiceLevel  string `json:"service_level"`
	EstimatedDays *int   `json:"estimated_days,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
}

// ShipmentDTO exposes label and tracking state.
type ShipmentDTO struct {
	ID              uuid.UUID            `json:"id"`
	Carrier         string               `json:"carrier"`
	ServiceLevel    string               `json:"service_level"`
	Status          enums.ShipmentStatus `json:"status"`
	StatusDetails   *string              `json:"status_details,omitempty"`
	TrackingNumber  *string              `json:"tracking_number,omitempty"`
	TrackingURL     *string              `json:"tracking_url,omitempty"`
	LabelURL        *string              `json:"label_url,omitempty"`
	StatusUpdatedAt *time.Time           `json:"status_updated_at,omitempty"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID               uuid.UUID         `json:"id"`
	Email            string            `json:"email"`
	Name             string            `json:"name"`
	Phone            string            `json:"phone"`
	Status           enums.OrderStatus `json:"status"`
	IsPaid           bool              `json:"is_paid"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	ShippingAddress  types.Address     `json:"shipping_address"`
	Shipping         ShippingDTO       `json:"shipping"`
	SubtotalCents    int64             `json:"subtotal_cents"`
	ShippingCents    int64             `json:"shipping_cents"`
	TotalCents       int64             `json:"total_cents"`
	Currency         string            `json:"currency"`
	PaymentID        *string           `json:"payment_id,omitempty"`
	PaymentStatus    *string           `json:"payment_status,omitempty"`
	PaymentAttempts  int               `json:"payment_attempts"`
	LastPaymentError *string           `json:"last_payment_error,omitempty"`
	ReconciledAt     *time.Time        `json:"reconciled_at,omitempty"`
	Items            []ItemDTO         `json:"items"`
	Shipment         *ShipmentDTO      `json:"shipment,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// NewOrderDTO maps a loaded order.
func NewOrderDTO(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		Email:           o.Email,
		Name:            o.Name,
		Phone:           o.Phone,
		Status:          o.Status,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		ShippingAddress: o.ShippingAddress,
		Shipping: ShippingDTO{
			RateID:        o.ShippingRateID,
			Carrier:       o.ShippingCarrier,
			ServiceLevel:  o.ShippingServiceLevel,
			EstimatedDays: o.ShippingEstDays,
			AmountCents:   o.ShippingCents,
		},
		SubtotalCents:    o.SubtotalCents,
		ShippingCents:    o.ShippingCents,
		TotalCents:       o.TotalCents,
		Currency:         o.Currency,
		PaymentID:        o.PaymentID,
		PaymentStatus:    o.PaymentStatus,
		PaymentAttempts:  o.PaymentAttempts,
		LastPaymentError: o.LastPaymentError,
		ReconciledAt:     o.ReconciledAt,
		Items:            make([]ItemDTO, 0, len(o.Items)),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
			Product:        item.Snapshot,
		})
	}
	if o.Shipment != nil {
		dto.Shipment = NewShipmentDTO(o.Shipment)
	}
	return dto
}

// NewShipmentDTO maps a shipment row.
func NewShipmentDTO(s *models.Shipment) *ShipmentDTO {
	return &ShipmentDTO{
		ID:              s.ID,
		Carrier:         s.Carrier,
		ServiceLevel:    s.ServiceLevel,
		Status:          s.Status,
		StatusDetails:   s.StatusDetails,
		TrackingNumber:  s.TrackingNumber,
		TrackingURL:     s.TrackingURL,
		LabelURL:        s.LabelURL,
		StatusUpdatedAt: s.StatusUpdatedAt,
	}
}

// Lines converts order items into the compact event form.
func Lines(o *models.Order) []payloads.OrderLine {
	lines := make([]payloads.OrderLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, payloads.OrderLine{
			ProductID:      item.ProductID,
			Name:           item.Snapshot.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return lines
}
