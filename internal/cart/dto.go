package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

// ItemInput is one requested cart line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=99"`
}

// ReplaceRequest is the POST /api/cart/{email} payload.
type ReplaceRequest struct {
	Items []ItemInput `json:"items" validate:"required,max=50,dive"`
}

// PatchRequest is the PATCH /api/cart/{email} payload. A supplied version
// must match the stored one.
type PatchRequest struct {
	Items   []ItemInput `json:"items" validate:"required,max=50,dive"`
	Version *int        `json:"version,omitempty" validate:"omitempty,min=0"`
}

// LineDTO is a priced cart line computed from the live catalog.
type LineDTO struct {
	ProductID           uuid.UUID `json:"product_id"`
	Name                string    `json:"name"`
	Slug                string    `json:"slug"`
	ImageURL            *string   `json:"image_url,omitempty"`
	Quantity            int       `json:"quantity"`
	UnitPriceCents      int64     `json:"unit_price_cents"`
	CompareAtPriceCents *int64    `json:"compare_at_price_cents,omitempty"`
	LineTotalCents      int64     `json:"line_total_cents"`
	Available           bool      `json:"available"`
}

// CartDTO is the cart payload: the raw item array plus the priced view.
type CartDTO struct {
	Email         string            `json:"email"`
	Items         []models.CartItem `json:"items"`
	Version       int               `json:"version"`
	Lines         []LineDTO         `json:"lines"`
	SubtotalCents int64             `json:"subtotal_cents"`
	ItemCount     int               `json:"item_count"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}
