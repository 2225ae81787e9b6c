package address

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

// CreateRequest is the payload of a new saved address.
type CreateRequest struct {
	Name       string  `json:"name" validate:"required,max=200"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      string  `json:"state" validate:"required,max=100"`
	PostalCode string  `json:"postal_code" validate:"required,max=20"`
	Country    string  `json:"country" validate:"required,len=2"`
	Phone      string  `json:"phone" validate:"required,max=40"`
	IsDefault  bool    `json:"is_default"`
}

// UpdateRequest changes any subset of an address.
type UpdateRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Line1      *string `json:"line1,omitempty" validate:"omitempty,min=1,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       *string `json:"city,omitempty" validate:"omitempty,min=1,max=100"`
	State      *string `json:"state,omitempty" validate:"omitempty,min=1,max=100"`
	PostalCode *string `json:"postal_code,omitempty" validate:"omitempty,min=1,max=20"`
	Country    *string `json:"country,omitempty" validate:"omitempty,len=2"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,min=1,max=40"`
	IsDefault  *bool   `json:"is_default,omitempty"`
}

// SuggestRequest is a free-text Places autocomplete query.
type SuggestRequest struct {
	Input    string `json:"input" validate:"required,max=200"`
	Country  string `json:"country,omitempty" validate:"omitempty,len=2"`
	Language string `json:"language,omitempty" validate:"omitempty,max=10"`
}

// Suggestion is one Places autocomplete candidate.
type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// AddressDTO is the API shape of a saved address.
type AddressDTO struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	Phone      string    `json:"phone"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FromModel maps a persisted address.
func FromModel(m *models.Address) AddressDTO {
	return AddressDTO{
		ID:         m.ID,
		Name:       m.Name,
		Line1:      m.Line1,
		Line2:      m.Line2,
		City:       m.City,
		State:      m.State,
		PostalCode: m.PostalCode,
		Country:    m.Country,
		Phone:      m.Phone,
		IsDefault:  m.IsDefault,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromSnapshot builds an address row from an order shipping snapshot.
func FromSnapshot(email string, a types.Address) *models.Address {
	a = a.Normalize()
	return &models.Address{
		UserEmail:  email,
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}
