package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

// ParseQueryInt reads an optional whole-number query parameter bounded by
// [min, max]. A blank value yields defaultVal.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be a whole number", key)).
			WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be between %d and %d", key, min, max)).
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryBool treats "1", "true" and "yes" as true.
func ParseQueryBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// ParseQueryList reads catalog facet filters. Values may be comma separated
// or repeated (?brand=a&brand=b); they come back lower-cased, trimmed and
// de-duplicated, capped at maxFacetValues.
func ParseQueryList(r *http.Request, key string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			v := strings.ToLower(strings.TrimSpace(part))
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
			if len(out) == maxFacetValues {
				return out
			}
		}
	}
	return out
}

const maxFacetValues = 50
