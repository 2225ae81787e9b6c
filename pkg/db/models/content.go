package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlogArticle is a CMS post served under /blog/{slug}.
type BlogArticle struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Slug          string     `gorm:"column:slug;not null;uniqueIndex"`
	Title         string     `gorm:"column:title;not null"`
	Excerpt       string     `gorm:"column:excerpt;not null;default:''"`
	Body          string     `gorm:"column:body;not null"`
	CoverImageURL *string    `gorm:"column:cover_image_url"`
	Author        *string    `gorm:"column:author"`
	PublishedAt   *time.Time `gorm:"column:published_at;index"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// SeoPage overrides the generated metadata for a storefront path.
type SeoPage struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Path        string    `gorm:"column:path;not null;uniqueIndex"`
	Title       string    `gorm:"column:title;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	Keywords    *string   `gorm:"column:keywords"`
	OGImageURL  *string   `gorm:"column:og_image_url"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Faq is an ordered question/answer pair.
type Faq struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Question  string    `gorm:"column:question;not null"`
	Answer    string    `gorm:"column:answer;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *BlogArticle) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

func (s *SeoPage) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

func (f *Faq) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
