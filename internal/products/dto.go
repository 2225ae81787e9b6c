package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

// LookupDTO is the shared shape of brand and flavor facets.
type LookupDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// NicotineLevelDTO exposes a strength facet.
type NicotineLevelDTO struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label"`
	Slug       string    `json:"slug"`
	Milligrams int       `json:"milligrams"`
}

// PuffCountDTO exposes a device capacity facet.
type PuffCountDTO struct {
	ID          uuid.UUID `json:"id"`
	Label       string    `json:"label"`
	Slug        string    `json:"slug"`
	Puffs       int       `json:"puffs"`
	Description *string   `json:"description,omitempty"`
}

// ImageDTO is an ordered gallery image.
type ImageDTO struct {
	URL      string  `json:"url"`
	AltText  *string `json:"alt_text,omitempty"`
	Position int     `json:"position"`
}

// ProductDTO represents the catalog product payload returned to clients.
type ProductDTO struct {
	ID                  uuid.UUID         `json:"id"`
	Name                string            `json:"name"`
	Slug                string            `json:"slug"`
	Description         string            `json:"description"`
	SKU                 *string           `json:"sku,omitempty"`
	PriceCents          int64             `json:"price_cents"`
	CompareAtPriceCents *int64            `json:"compare_at_price_cents,omitempty"`
	Brand               *LookupDTO        `json:"brand,omitempty"`
	Flavor              *LookupDTO        `json:"flavor,omitempty"`
	Flavors             []LookupDTO       `json:"flavors"`
	NicotineLevel       *NicotineLevelDTO `json:"nicotine_level,omitempty"`
	PuffCount           *PuffCountDTO     `json:"puff_count,omitempty"`
	Images              []ImageDTO        `json:"images"`
	IsArchived          bool              `json:"is_archived"`
	IsFeatured          bool              `json:"is_featured"`
	RatingAverage       float64           `json:"rating_average"`
	ReviewCount         int               `json:"review_count"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// ProductListResult is a numbered page of products.
type ProductListResult struct {
	Items      []ProductDTO `json:"items"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	Total      int64        `json:"total"`
	TotalPages int          `json:"total_pages"`
}

// NewProductDTO builds a DTO from a product loaded with its relations.
func NewProductDTO(p *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:                  p.ID,
		Name:                p.Name,
		Slug:                p.Slug,
		Description:         p.Description,
		SKU:                 p.SKU,
		PriceCents:          p.PriceCents,
		CompareAtPriceCents: p.CompareAtPriceCents,
		Flavors:             make([]LookupDTO, 0, len(p.Flavors)),
		Images:              make([]ImageDTO, 0, len(p.Images)),
		IsArchived:          p.IsArchived,
		IsFeatured:          p.IsFeatured,
		RatingAverage:       p.RatingAverage,
		ReviewCount:         p.ReviewCount,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if p.Brand != nil {
		dto.Brand = &LookupDTO{ID: p.Brand.ID, Name: p.Brand.Name, Slug: p.Brand.Slug}
	}
	if p.Flavor != nil {
		dto.Flavor = &LookupDTO{ID: p.Flavor.ID, Name: p.Flavor.Name, Slug: p.Flavor.Slug}
	}
	for _, f := range p.Flavors {
		dto.Flavors = append(dto.Flavors, LookupDTO{ID: f.ID, Name: f.Name, Slug: f.Slug})
	}
	if p.NicotineLevel != nil {
		n := NewNicotineLevelDTO(*p.NicotineLevel)
		dto.NicotineLevel = &n
	}
	if p.PuffCount != nil {
		c := NewPuffCountDTO(*p.PuffCount)
		dto.PuffCount = &c
	}
	for _, img := range p.Images {
		dto.Images = append(dto.Images, ImageDTO{URL: img.URL, AltText: img.AltText, Position: img.Position})
	}
	return dto
}

func NewNicotineLevelDTO(n models.NicotineLevel) NicotineLevelDTO {
	return NicotineLevelDTO{ID: n.ID, Label: n.Label, Slug: n.Slug, Milligrams: n.Milligrams}
}

func NewPuffCountDTO(c models.PuffCount) PuffCountDTO {
	return PuffCountDTO{ID: c.ID, Label: c.Label, Slug: c.Slug, Puffs: c.Puffs, Description: c.Description}
}

// Snapshot freezes the purchasable fields of p for an order line.
func Snapshot(p *models.Product) types.ProductSnapshot {
	snap := types.ProductSnapshot{
		Name:                p.Name,
		Slug:                p.Slug,
		SKU:                 p.SKU,
		UnitPriceCents:      p.PriceCents,
		CompareAtPriceCents: p.CompareAtPriceCents,
	}
	if p.Brand != nil {
		snap.Brand = p.Brand.Name
	}
	if p.Flavor != nil {
		snap.Flavor = p.Flavor.Name
	}
	for _, f := range p.Flavors {
		snap.SupplementalFlavors = append(snap.SupplementalFlavors, f.Name)
	}
	if p.NicotineLevel != nil {
		snap.NicotineLevel = p.NicotineLevel.Label
	}
	if p.PuffCount != nil {
		snap.PuffCount = p.PuffCount.Label
		if p.PuffCount.Description != nil {
			snap.PuffDescription = *p.PuffCount.Description
		}
	}
	if len(p.Images) > 0 {
		url := p.Images[0].URL
		snap.ImageURL = &url
	}
	return snap
}
