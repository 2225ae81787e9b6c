package validators

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

// ParseDollarAmount reads an optional dollar amount query parameter and
// returns it in cents. A blank value yields nil.
func ParseDollarAmount(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	amount, err := decimal.NewFromString(strings.TrimPrefix(raw, "$"))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a dollar amount").WithDetails(map[string]any{"field": key})
	}
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must not be negative").WithDetails(map[string]any{"field": key})
	}
	cents := amount.Shift(2).Round(0).IntPart()
	return &cents, nil
}
