package products

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

// Repository persists catalog products and their facets.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func withRelations(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Brand").
		Preload("Flavor").
		Preload("NicotineLevel").
		Preload("PuffCount").
		Preload("Flavors", func(db *gorm.DB) *gorm.DB { return db.Order("flavors.name ASC") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

func applyFilters(q *gorm.DB, f ListFilters) *gorm.DB {
	if !f.IncludeArchived {
		q = q.Where("products.is_archived = ?", false)
	}
	if len(f.Brands) > 0 {
		q = q.Where("products.brand_id IN (SELECT id FROM brands WHERE slug IN ?)", f.Brands)
	}
	if len(f.Flavors) > 0 {
		q = q.Where(
			"(products.flavor_id IN (SELECT id FROM flavors WHERE slug IN ?) OR products.id IN "+
				"(SELECT pf.product_id FROM product_flavors pf JOIN flavors f ON f.id = pf.flavor_id WHERE f.slug IN ?))",
			f.Flavors, f.Flavors,
		)
	}
	if len(f.Puffs) > 0 {
		q = q.Where("products.puff_count_id IN (SELECT id FROM puff_counts WHERE slug IN ?)", f.Puffs)
	}
	if len(f.Nicotine) > 0 {
		q = q.Where("products.nicotine_level_id IN (SELECT id FROM nicotine_levels WHERE slug IN ?)", f.Nicotine)
	}
	if f.MinPriceCents != nil {
		q = q.Where("products.price_cents >= ?", *f.MinPriceCents)
	}
	if f.MaxPriceCents != nil {
		q = q.Where("products.price_cents <= ?", *f.MaxPriceCents)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("(LOWER(products.name) LIKE ? ESCAPE '\\' OR LOWER(products.description) LIKE ? ESCAPE '\\')", like, like)
	}
	if f.Featured != nil {
		q = q.Where("products.is_featured = ?", *f.Featured)
	}
	return q
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

// List returns one page of products matching input plus the total match count.
func (r *Repository) List(ctx context.Context, input ListInput) ([]models.Product, int64, error) {
	var total int64
	if err := applyFilters(r.db.WithContext(ctx).Model(&models.Product{}), input.Filters).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	if total == 0 {
		return rows, 0, nil
	}
	err := withRelations(applyFilters(r.db.WithContext(ctx).Model(&models.Product{}), input.Filters)).
		Order(input.Filters.Sort.clause()).
		Limit(input.Page.Limit).
		Offset(input.Page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// FindByID loads a product with its relations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := withRelations(r.db.WithContext(ctx)).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySlug loads a product with its relations by slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := withRelations(r.db.WithContext(ctx)).Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads every product in ids in one query. Missing ids are simply
// absent from the result.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	if len(ids) == 0 {
		return rows, nil
	}
	if err := withRelations(r.db.WithContext(ctx)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SlugExists reports whether slug is taken by a product other than exclude.
func (r *Repository) SlugExists(ctx context.Context, slug string, exclude *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug)
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts the product row, its gallery, and its supplemental flavors.
func (r *Repository) Create(ctx context.Context, product *models.Product, flavorIDs []uuid.UUID) error {
	images := product.Images
	product.Images = nil
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error; err != nil {
		return err
	}
	if err := r.ReplaceImages(ctx, product.ID, images); err != nil {
		return err
	}
	return r.ReplaceFlavors(ctx, product.ID, flavorIDs)
}

// Update applies column updates to a product.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error
}

// ReplaceImages swaps the product gallery, positions follow slice order.
func (r *Repository) ReplaceImages(ctx context.Context, productID uuid.UUID, images []models.ProductImage) error {
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.ProductImage{}).Error; err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}
	rows := make([]models.ProductImage, 0, len(images))
	for i, img := range images {
		rows = append(rows, models.ProductImage{
			ProductID: productID,
			URL:       img.URL,
			AltText:   img.AltText,
			Position:  i,
		})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ReplaceFlavors swaps the supplemental flavor set.
func (r *Repository) ReplaceFlavors(ctx context.Context, productID uuid.UUID, flavorIDs []uuid.UUID) error {
	if err := r.db.WithContext(ctx).Exec("DELETE FROM product_flavors WHERE product_id = ?", productID).Error; err != nil {
		return err
	}
	for _, flavorID := range flavorIDs {
		if err := r.db.WithContext(ctx).
			Exec("INSERT INTO product_flavors (product_id, flavor_id) VALUES (?, ?)", productID, flavorID).Error; err != nil {
			return err
		}
	}
	return nil
}

// RecomputeRating refreshes rating_average and review_count from reviews.
func (r *Repository) RecomputeRating(ctx context.Context, productID uuid.UUID) error {
	var agg struct {
		Average float64
		Count   int
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&agg).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"rating_average": roundRating(agg.Average),
			"review_count":   agg.Count,
		}).Error
}

func roundRating(avg float64) float64 {
	return float64(int64(avg*100+0.5)) / 100
}

// SitemapEntry is a published product URL with its last modification.
type SitemapEntry struct {
	Slug      string
	UpdatedAt time.Time
}

// ListSitemapEntries returns every non-archived product slug.
func (r *Repository) ListSitemapEntries(ctx context.Context) ([]SitemapEntry, error) {
	var rows []SitemapEntry
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("slug, updated_at").
		Where("is_archived = ?", false).
		Order("slug ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
