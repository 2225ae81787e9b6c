package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is the postal address snapshot stored on orders as jsonb.
type Address struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      string  `json:"phone,omitempty"`
}

// Normalize trims every field and defaults the country to US.
func (a Address) Normalize() Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Line1 = strings.TrimSpace(a.Line1)
	if a.Line2 != nil {
		trimmed := strings.TrimSpace(*a.Line2)
		if trimmed == "" {
			a.Line2 = nil
		} else {
			a.Line2 = &trimmed
		}
	}
	a.City = strings.TrimSpace(a.City)
	a.State = strings.ToUpper(strings.TrimSpace(a.State))
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if a.Country == "" {
		a.Country = "US"
	}
	a.Phone = strings.TrimSpace(a.Phone)
	return a
}

// Value marshals Address into a jsonb payload.
func (a Address) Value() (driver.Value, error) {
	if strings.TrimSpace(a.Line1) == "" {
		return nil, fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return nil, fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return nil, fmt.Errorf("address: missing postal_code")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("address: marshal %w", err)
	}
	return string(raw), nil
}

// Scan decodes the jsonb payload.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return fmt.Errorf("address: decode %w", err)
	}
	return nil
}

func toBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	case fmt.Stringer:
		return []byte(v.String()), true
	default:
		return nil, false
	}
}
