// Package seed loads catalog and content fixtures from YAML and upserts them
// by slug so a seed file can be applied repeatedly.
package seed

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// File is the on-disk seed document.
type File struct {
	Brands         []Lookup  `yaml:"brands"`
	Flavors        []Lookup  `yaml:"flavors"`
	NicotineLevels []Lookup  `yaml:"nicotine_levels"`
	PuffCounts     []Lookup  `yaml:"puff_counts"`
	Products       []Product `yaml:"products"`
	Articles       []Article `yaml:"blog"`
	Faqs           []Faq     `yaml:"faq"`
	SeoPages       []SeoPage `yaml:"seo"`
}

// Lookup covers every facet table. Amount is milligrams for nicotine levels
// and puffs for puff counts.
type Lookup struct {
	Name        string  `yaml:"name"`
	Slug        string  `yaml:"slug"`
	Amount      int     `yaml:"amount"`
	Description *string `yaml:"description"`
}

type Product struct {
	Name           string   `yaml:"name"`
	Slug           string   `yaml:"slug"`
	Description    string   `yaml:"description"`
	SKU            *string  `yaml:"sku"`
	Price          string   `yaml:"price"`
	CompareAtPrice *string  `yaml:"compare_at_price"`
	Brand          string   `yaml:"brand"`
	Flavor         string   `yaml:"flavor"`
	Flavors        []string `yaml:"flavors"`
	NicotineLevel  string   `yaml:"nicotine_level"`
	PuffCount      string   `yaml:"puff_count"`
	Featured       bool     `yaml:"featured"`
	Archived       bool     `yaml:"archived"`
	Images         []Image  `yaml:"images"`
}

type Image struct {
	URL     string  `yaml:"url"`
	AltText *string `yaml:"alt"`
}

type Article struct {
	Slug          string     `yaml:"slug"`
	Title         string     `yaml:"title"`
	Excerpt       string     `yaml:"excerpt"`
	Body          string     `yaml:"body"`
	CoverImageURL *string    `yaml:"cover_image_url"`
	Author        *string    `yaml:"author"`
	PublishedAt   *time.Time `yaml:"published_at"`
}

type Faq struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

type SeoPage struct {
	Path        string  `yaml:"path"`
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Keywords    *string `yaml:"keywords"`
	OGImageURL  *string `yaml:"og_image_url"`
}

// LoadFile reads and parses the seed file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a seed document and rejects unknown keys.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	for i, p := range f.Products {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("products[%d]: name is required", i)
		}
		if _, err := ToCents(p.Price); err != nil {
			return fmt.Errorf("products[%d] %q: %w", i, p.Name, err)
		}
		if p.CompareAtPrice != nil {
			if _, err := ToCents(*p.CompareAtPrice); err != nil {
				return fmt.Errorf("products[%d] %q compare_at_price: %w", i, p.Name, err)
			}
		}
	}
	for i, a := range f.Articles {
		if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Body) == "" {
			return fmt.Errorf("blog[%d]: title and body are required", i)
		}
	}
	for i, page := range f.SeoPages {
		if !strings.HasPrefix(page.Path, "/") {
			return fmt.Errorf("seo[%d]: path must start with /", i)
		}
		if strings.TrimSpace(page.Title) == "" {
			return fmt.Errorf("seo[%d]: title is required", i)
		}
	}
	for i, q := range f.Faqs {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
			return fmt.Errorf("faq[%d]: question and answer are required", i)
		}
	}
	return nil
}

// ToCents converts a dollar string such as "19.99" to integer cents.
func ToCents(dollars string) (int64, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(dollars))
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", dollars)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("price %q must not be negative", dollars)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
