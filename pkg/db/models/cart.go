package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is a single line of the cart's JSON item array.
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// CartItems is the ordered jsonb item array of a cart.
type CartItems []CartItem

// Value marshals the items, storing an empty array for nil.
func (c CartItems) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]CartItem(c))
	if err != nil {
		return nil, fmt.Errorf("cart items: marshal %w", err)
	}
	return string(raw), nil
}

// Scan decodes the jsonb payload.
func (c *CartItems) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*c = CartItems{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cart items: unsupported scan type %T", value)
	}
	items := CartItems{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("cart items: decode %w", err)
	}
	*c = items
	return nil
}

// Cart holds one ordered item list per email address.
type Cart struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email     string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	Items     CartItems `gorm:"column:items;type:jsonb;not null"`
	Version   int       `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	if c.Items == nil {
		c.Items = CartItems{}
	}
	return nil
}
