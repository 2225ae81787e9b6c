package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Brand is a catalog manufacturer facet.
type Brand struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Flavor is a taste facet; products carry one primary flavor and any number of
// supplemental ones.
type Flavor struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// NicotineLevel is a strength facet such as "5% (50mg)".
type NicotineLevel struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Label      string    `gorm:"column:label;not null"`
	Slug       string    `gorm:"column:slug;not null;uniqueIndex"`
	Milligrams int       `gorm:"column:milligrams;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// PuffCount is a device capacity facet.
type PuffCount struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Label       string    `gorm:"column:label;not null"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	Puffs       int       `gorm:"column:puffs;not null;default:0"`
	Description *string   `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (b *Brand) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

func (f *Flavor) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

func (n *NicotineLevel) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}

func (p *PuffCount) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
