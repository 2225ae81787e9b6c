package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a sellable catalog item.
type Product struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name                string     `gorm:"column:name;not null"`
	Slug                string     `gorm:"column:slug;not null;uniqueIndex"`
	Description         string     `gorm:"column:description;not null;default:''"`
	SKU                 *string    `gorm:"column:sku"`
	PriceCents          int64      `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int64     `gorm:"column:compare_at_price_cents"`
	BrandID             *uuid.UUID `gorm:"column:brand_id;type:uuid"`
	FlavorID            *uuid.UUID `gorm:"column:flavor_id;type:uuid"`
	NicotineLevelID     *uuid.UUID `gorm:"column:nicotine_level_id;type:uuid"`
	PuffCountID         *uuid.UUID `gorm:"column:puff_count_id;type:uuid"`
	IsArchived          bool       `gorm:"column:is_archived;not null;default:false"`
	IsFeatured          bool       `gorm:"column:is_featured;not null;default:false"`
	RatingAverage       float64    `gorm:"column:rating_average;not null;default:0"`
	ReviewCount         int        `gorm:"column:review_count;not null;default:0"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Brand         *Brand         `gorm:"foreignKey:BrandID"`
	Flavor        *Flavor        `gorm:"foreignKey:FlavorID"`
	NicotineLevel *NicotineLevel `gorm:"foreignKey:NicotineLevelID"`
	PuffCount     *PuffCount     `gorm:"foreignKey:PuffCountID"`
	Images        []ProductImage `gorm:"foreignKey:ProductID"`
	Flavors       []Flavor       `gorm:"many2many:product_flavors;joinForeignKey:ProductID;joinReferences:FlavorID"`
}

// ProductImage is an ordered gallery image.
type ProductImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	URL       string    `gorm:"column:url;not null"`
	AltText   *string   `gorm:"column:alt_text"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

func (i *ProductImage) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
