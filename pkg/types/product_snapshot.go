package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ProductSnapshot freezes the catalog fields of a product at purchase time so
// historical orders do not change when the catalog is edited.
type ProductSnapshot struct {
	Name                string   `json:"name"`
	Slug                string   `json:"slug"`
	SKU                 *string  `json:"sku,omitempty"`
	UnitPriceCents      int64    `json:"unit_price_cents"`
	CompareAtPriceCents *int64   `json:"compare_at_price_cents,omitempty"`
	Brand               string   `json:"brand,omitempty"`
	Flavor              string   `json:"flavor,omitempty"`
	SupplementalFlavors []string `json:"supplemental_flavors,omitempty"`
	NicotineLevel       string   `json:"nicotine_level,omitempty"`
	PuffCount           string   `json:"puff_count,omitempty"`
	PuffDescription     string   `json:"puff_description,omitempty"`
	ImageURL            *string  `json:"image_url,omitempty"`
}

// Value marshals the snapshot into a jsonb payload.
func (s ProductSnapshot) Value() (driver.Value, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("product snapshot: marshal %w", err)
	}
	return string(raw), nil
}

// Scan decodes the jsonb payload.
func (s *ProductSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = ProductSnapshot{}
		return nil
	}
	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("product snapshot: unsupported scan type %T", value)
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return fmt.Errorf("product snapshot: decode %w", err)
	}
	return nil
}
