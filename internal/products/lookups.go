package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
)

// ListBrands returns every brand ordered by name.
func (r *Repository) ListBrands(ctx context.Context) ([]models.Brand, error) {
	var rows []models.Brand
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// ListFlavors returns every flavor ordered by name.
func (r *Repository) ListFlavors(ctx context.Context) ([]models.Flavor, error) {
	var rows []models.Flavor
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// ListNicotineLevels returns strengths from weakest to strongest.
func (r *Repository) ListNicotineLevels(ctx context.Context) ([]models.NicotineLevel, error) {
	var rows []models.NicotineLevel
	err := r.db.WithContext(ctx).Order("milligrams ASC, label ASC").Find(&rows).Error
	return rows, err
}

// ListPuffCounts returns capacities from smallest to largest.
func (r *Repository) ListPuffCounts(ctx context.Context) ([]models.PuffCount, error) {
	var rows []models.PuffCount
	err := r.db.WithContext(ctx).Order("puffs ASC, label ASC").Find(&rows).Error
	return rows, err
}

// CountExisting returns how many of ids exist in the table backing model.
func (r *Repository) CountExisting(ctx context.Context, model any, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(model).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

// UpsertBrand inserts or renames the brand keyed by slug.
func (r *Repository) UpsertBrand(ctx context.Context, brand *models.Brand) error {
	return r.upsertBySlug(ctx, brand, []string{"name"})
}

// UpsertFlavor inserts or renames the flavor keyed by slug.
func (r *Repository) UpsertFlavor(ctx context.Context, flavor *models.Flavor) error {
	return r.upsertBySlug(ctx, flavor, []string{"name"})
}

// UpsertNicotineLevel inserts or updates the strength keyed by slug.
func (r *Repository) UpsertNicotineLevel(ctx context.Context, level *models.NicotineLevel) error {
	return r.upsertBySlug(ctx, level, []string{"label", "milligrams"})
}

// UpsertPuffCount inserts or updates the capacity keyed by slug.
func (r *Repository) UpsertPuffCount(ctx context.Context, count *models.PuffCount) error {
	return r.upsertBySlug(ctx, count, []string{"label", "puffs", "description"})
}

func (r *Repository) upsertBySlug(ctx context.Context, row any, columns []string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error
	if err != nil {
		return err
	}
	// The conflict path keeps the existing id; reload it by slug.
	slug := resetForReload(row)
	return r.db.WithContext(ctx).Where("slug = ?", slug).First(row).Error
}

// resetForReload clears the generated id so First filters on slug only.
func resetForReload(row any) string {
	switch v := row.(type) {
	case *models.Brand:
		v.ID = uuid.Nil
		return v.Slug
	case *models.Flavor:
		v.ID = uuid.Nil
		return v.Slug
	case *models.NicotineLevel:
		v.ID = uuid.Nil
		return v.Slug
	case *models.PuffCount:
		v.ID = uuid.Nil
		return v.Slug
	default:
		return ""
	}
}
