package products

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/smokeshop-backend/pkg/pagination"
)

// SortOrder names a catalog ordering.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortRating    SortOrder = "rating"
	SortName      SortOrder = "name"
)

// ParseSortOrder defaults blank input to newest.
func ParseSortOrder(value string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(value))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortPriceAsc:
		return SortPriceAsc, nil
	case SortPriceDesc:
		return SortPriceDesc, nil
	case SortRating:
		return SortRating, nil
	case SortName:
		return SortName, nil
	default:
		return "", fmt.Errorf("unsupported sort %q", value)
	}
}

func (s SortOrder) clause() string {
	switch s {
	case SortPriceAsc:
		return "price_cents ASC, id ASC"
	case SortPriceDesc:
		return "price_cents DESC, id ASC"
	case SortRating:
		return "rating_average DESC, review_count DESC, id ASC"
	case SortName:
		return "name ASC, id ASC"
	default:
		return "created_at DESC, id DESC"
	}
}

// ListFilters describe the supported filter knobs for the browse endpoint.
// Slug lists match any of their values; distinct lists are combined with AND.
type ListFilters struct {
	Brands          []string
	Flavors         []string
	Puffs           []string
	Nicotine        []string
	MinPriceCents   *int64
	MaxPriceCents   *int64
	Query           string
	Featured        *bool
	Sort            SortOrder
	IncludeArchived bool
}

// ListInput pairs filters with the requested page.
type ListInput struct {
	Filters ListFilters
	Page    pagination.Page
}
