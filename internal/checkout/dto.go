package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

// Request is the checkout payload. Items default to the email's cart.
type Request struct {
	Email             string           `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Name              string           `json:"name" validate:"required,max=200"`
	Phone             string           `json:"phone" validate:"required,max=40"`
	Items             []cart.ItemInput `json:"items,omitempty" validate:"omitempty,max=50,dive"`
	ShippingAddress   types.Address    `json:"shipping_address"`
	ShippingRateID    string           `json:"shipping_rate_id" validate:"required,max=128"`
	PaymentToken      string           `json:"payment_token" validate:"required,max=512"`
	VerificationToken string           `json:"verification_token,omitempty" validate:"omitempty,max=512"`
	SaveAddress       bool             `json:"save_address,omitempty"`
}

// Caller identifies the buyer. Authenticated callers always check out under
// their token's email.
type Caller struct {
	Authenticated bool
	UserID        uuid.UUID
	Email         string
}

// Result is a settled checkout. Captured reports whether this request
// captured the payment, as opposed to replaying an already paid order.
type Result struct {
	Order    orders.OrderDTO
	Captured bool
}
