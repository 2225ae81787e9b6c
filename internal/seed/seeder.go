package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/smokeshop-backend/internal/content"
	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Summary counts rows written by one Apply.
type Summary struct {
	Lookups  int `json:"lookups"`
	Created  int `json:"products_created"`
	Updated  int `json:"products_updated"`
	Articles int `json:"articles"`
	Faqs     int `json:"faqs"`
	SeoPages int `json:"seo_pages"`
}

// Seeder writes a parsed File in a single transaction.
type Seeder struct {
	tx       txRunner
	products *products.Repository
	content  *content.Repository
	logg     *logger.Logger
}

func NewSeeder(tx txRunner, productRepo *products.Repository, contentRepo *content.Repository, logg *logger.Logger) (*Seeder, error) {
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if productRepo == nil || contentRepo == nil {
		return nil, errors.New("repositories required")
	}
	return &Seeder{tx: tx, products: productRepo, content: contentRepo, logg: logg}, nil
}

// Apply upserts everything in f. Products, lookups, articles and SEO pages
// are keyed by slug or path; the FAQ list is replaced when the file has one.
func (s *Seeder) Apply(ctx context.Context, f *File) (Summary, error) {
	var summary Summary
	if f == nil {
		return summary, nil
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ids, n, err := upsertLookups(ctx, tx, f)
		if err != nil {
			return err
		}
		summary.Lookups = n

		productRepo := s.products.WithTx(tx)
		for _, p := range f.Products {
			created, err := upsertProduct(ctx, productRepo, ids, p)
			if err != nil {
				return fmt.Errorf("product %q: %w", p.Name, err)
			}
			if created {
				summary.Created++
			} else {
				summary.Updated++
			}
		}

		contentRepo := s.content.WithTx(tx)
		for _, a := range f.Articles {
			slug := a.Slug
			if slug == "" {
				slug = products.Slugify(a.Title)
			}
			article := &models.BlogArticle{
				Slug:          slug,
				Title:         strings.TrimSpace(a.Title),
				Excerpt:       strings.TrimSpace(a.Excerpt),
				Body:          a.Body,
				CoverImageURL: a.CoverImageURL,
				Author:        a.Author,
				PublishedAt:   a.PublishedAt,
			}
			if err := contentRepo.UpsertArticle(ctx, article); err != nil {
				return fmt.Errorf("article %q: %w", slug, err)
			}
			summary.Articles++
		}

		if len(f.Faqs) > 0 {
			faqs := make([]models.Faq, 0, len(f.Faqs))
			for i, q := range f.Faqs {
				faqs = append(faqs, models.Faq{Question: q.Question, Answer: q.Answer, Position: i})
			}
			if err := contentRepo.ReplaceFaqs(ctx, faqs); err != nil {
				return fmt.Errorf("faqs: %w", err)
			}
			summary.Faqs = len(faqs)
		}

		for _, page := range f.SeoPages {
			row := &models.SeoPage{
				Path:        page.Path,
				Title:       page.Title,
				Description: page.Description,
				Keywords:    page.Keywords,
				OGImageURL:  page.OGImageURL,
			}
			if err := contentRepo.UpsertSeoPage(ctx, row); err != nil {
				return fmt.Errorf("seo page %q: %w", page.Path, err)
			}
			summary.SeoPages++
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"lookups":          summary.Lookups,
			"products_created": summary.Created,
			"products_updated": summary.Updated,
			"articles":         summary.Articles,
		}), "seed applied")
	}
	return summary, nil
}

type lookupIDs struct {
	brands    map[string]uuid.UUID
	flavors   map[string]uuid.UUID
	nicotine  map[string]uuid.UUID
	puffCount map[string]uuid.UUID
}

func upsertLookups(ctx context.Context, tx *gorm.DB, f *File) (lookupIDs, int, error) {
	count := 0
	for _, l := range f.Brands {
		row := models.Brand{Name: l.Name, Slug: lookupSlug(l)}
		if err := upsertBySlug(ctx, tx, &row, "name"); err != nil {
			return lookupIDs{}, 0, fmt.Errorf("brand %q: %w", l.Name, err)
		}
		count++
	}
	for _, l := range f.Flavors {
		row := models.Flavor{Name: l.Name, Slug: lookupSlug(l)}
		if err := upsertBySlug(ctx, tx, &row, "name"); err != nil {
			return lookupIDs{}, 0, fmt.Errorf("flavor %q: %w", l.Name, err)
		}
		count++
	}
	for _, l := range f.NicotineLevels {
		row := models.NicotineLevel{Label: l.Name, Slug: lookupSlug(l), Milligrams: l.Amount}
		if err := upsertBySlug(ctx, tx, &row, "label", "milligrams"); err != nil {
			return lookupIDs{}, 0, fmt.Errorf("nicotine level %q: %w", l.Name, err)
		}
		count++
	}
	for _, l := range f.PuffCounts {
		row := models.PuffCount{Label: l.Name, Slug: lookupSlug(l), Puffs: l.Amount, Description: l.Description}
		if err := upsertBySlug(ctx, tx, &row, "label", "puffs", "description"); err != nil {
			return lookupIDs{}, 0, fmt.Errorf("puff count %q: %w", l.Name, err)
		}
		count++
	}

	var ids lookupIDs
	var err error
	if ids.brands, err = slugIndex[models.Brand](ctx, tx, func(m models.Brand) (string, uuid.UUID) { return m.Slug, m.ID }); err != nil {
		return lookupIDs{}, 0, err
	}
	if ids.flavors, err = slugIndex[models.Flavor](ctx, tx, func(m models.Flavor) (string, uuid.UUID) { return m.Slug, m.ID }); err != nil {
		return lookupIDs{}, 0, err
	}
	if ids.nicotine, err = slugIndex[models.NicotineLevel](ctx, tx, func(m models.NicotineLevel) (string, uuid.UUID) { return m.Slug, m.ID }); err != nil {
		return lookupIDs{}, 0, err
	}
	if ids.puffCount, err = slugIndex[models.PuffCount](ctx, tx, func(m models.PuffCount) (string, uuid.UUID) { return m.Slug, m.ID }); err != nil {
		return lookupIDs{}, 0, err
	}
	return ids, count, nil
}

func lookupSlug(l Lookup) string {
	if l.Slug != "" {
		return products.Slugify(l.Slug)
	}
	return products.Slugify(l.Name)
}

func upsertBySlug(ctx context.Context, tx *gorm.DB, row any, columns ...string) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error
}

func slugIndex[T any](ctx context.Context, tx *gorm.DB, key func(T) (string, uuid.UUID)) (map[string]uuid.UUID, error) {
	var rows []T
	if err := tx.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]uuid.UUID, len(rows))
	for _, row := range rows {
		slug, id := key(row)
		out[slug] = id
	}
	return out, nil
}

func resolveRef(index map[string]uuid.UUID, kind, ref string) (*uuid.UUID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	id, ok := index[products.Slugify(ref)]
	if !ok {
		return nil, fmt.Errorf("unknown %s %q", kind, ref)
	}
	return &id, nil
}

func upsertProduct(ctx context.Context, repo *products.Repository, ids lookupIDs, p Product) (bool, error) {
	slug := p.Slug
	if slug == "" {
		slug = products.Slugify(p.Name)
	}
	price, err := ToCents(p.Price)
	if err != nil {
		return false, err
	}
	var compareAt *int64
	if p.CompareAtPrice != nil {
		cents, err := ToCents(*p.CompareAtPrice)
		if err != nil {
			return false, err
		}
		compareAt = &cents
	}

	brandID, err := resolveRef(ids.brands, "brand", p.Brand)
	if err != nil {
		return false, err
	}
	flavorID, err := resolveRef(ids.flavors, "flavor", p.Flavor)
	if err != nil {
		return false, err
	}
	nicotineID, err := resolveRef(ids.nicotine, "nicotine level", p.NicotineLevel)
	if err != nil {
		return false, err
	}
	puffID, err := resolveRef(ids.puffCount, "puff count", p.PuffCount)
	if err != nil {
		return false, err
	}
	flavorIDs := make([]uuid.UUID, 0, len(p.Flavors))
	for _, ref := range p.Flavors {
		id, err := resolveRef(ids.flavors, "flavor", ref)
		if err != nil {
			return false, err
		}
		if id != nil {
			flavorIDs = append(flavorIDs, *id)
		}
	}
	images := make([]models.ProductImage, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, models.ProductImage{URL: img.URL, AltText: img.AltText})
	}

	existing, err := repo.FindBySlug(ctx, slug)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if existing == nil {
		product := &models.Product{
			Name:                strings.TrimSpace(p.Name),
			Slug:                slug,
			Description:         p.Description,
			SKU:                 p.SKU,
			PriceCents:          price,
			CompareAtPriceCents: compareAt,
			BrandID:             brandID,
			FlavorID:            flavorID,
			NicotineLevelID:     nicotineID,
			PuffCountID:         puffID,
			IsFeatured:          p.Featured,
			IsArchived:          p.Archived,
			Images:              images,
		}
		return true, repo.Create(ctx, product, flavorIDs)
	}

	updates := map[string]any{
		"name":                   strings.TrimSpace(p.Name),
		"description":            p.Description,
		"sku":                    p.SKU,
		"price_cents":            price,
		"compare_at_price_cents": compareAt,
		"brand_id":               brandID,
		"flavor_id":              flavorID,
		"nicotine_level_id":      nicotineID,
		"puff_count_id":          puffID,
		"is_featured":            p.Featured,
		"is_archived":            p.Archived,
	}
	if err := repo.Update(ctx, existing.ID, updates); err != nil {
		return false, err
	}
	if err := repo.ReplaceImages(ctx, existing.ID, images); err != nil {
		return false, err
	}
	return false, repo.ReplaceFlavors(ctx, existing.ID, flavorIDs)
}
