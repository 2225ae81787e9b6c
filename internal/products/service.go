package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

const maxSupplementalFlavors = 10

// ImageInput is one gallery image in a create/update payload.
type ImageInput struct {
	URL     string  `json:"url" validate:"required,url"`
	AltText *string `json:"alt_text,omitempty" validate:"omitempty,max=200"`
}

// CreateProductRequest holds the admin payload to create a product.
type CreateProductRequest struct {
	Name                string       `json:"name" validate:"required,max=200"`
	Slug                *string      `json:"slug,omitempty" validate:"omitempty,max=200"`
	Description         string       `json:"description"`
	SKU                 *string      `json:"sku,omitempty" validate:"omitempty,max=64"`
	PriceCents          int64        `json:"price_cents" validate:"required,min=1"`
	CompareAtPriceCents *int64       `json:"compare_at_price_cents,omitempty" validate:"omitempty,min=1"`
	BrandID             *uuid.UUID   `json:"brand_id,omitempty"`
	FlavorID            *uuid.UUID   `json:"flavor_id,omitempty"`
	NicotineLevelID     *uuid.UUID   `json:"nicotine_level_id,omitempty"`
	PuffCountID         *uuid.UUID   `json:"puff_count_id,omitempty"`
	FlavorIDs           []uuid.UUID  `json:"flavor_ids,omitempty"`
	Images              []ImageInput `json:"images,omitempty" validate:"omitempty,dive"`
	IsFeatured          bool         `json:"is_featured"`
}

// UpdateProductRequest is a partial admin update; nil fields are untouched.
type UpdateProductRequest struct {
	Name                *string       `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Slug                *string       `json:"slug,omitempty" validate:"omitempty,min=1,max=200"`
	Description         *string       `json:"description,omitempty"`
	SKU                 *string       `json:"sku,omitempty" validate:"omitempty,max=64"`
	PriceCents          *int64        `json:"price_cents,omitempty" validate:"omitempty,min=1"`
	CompareAtPriceCents *int64        `json:"compare_at_price_cents,omitempty" validate:"omitempty,min=0"`
	BrandID             *uuid.UUID    `json:"brand_id,omitempty"`
	FlavorID            *uuid.UUID    `json:"flavor_id,omitempty"`
	NicotineLevelID     *uuid.UUID    `json:"nicotine_level_id,omitempty"`
	PuffCountID         *uuid.UUID    `json:"puff_count_id,omitempty"`
	FlavorIDs           *[]uuid.UUID  `json:"flavor_ids,omitempty"`
	Images              *[]ImageInput `json:"images,omitempty" validate:"omitempty,dive"`
	IsFeatured          *bool         `json:"is_featured,omitempty"`
	IsArchived          *bool         `json:"is_archived,omitempty"`
}

// Facets bundles every filter lookup.
type Facets struct {
	Brands         []LookupDTO        `json:"brands"`
	Flavors        []LookupDTO        `json:"flavors"`
	NicotineLevels []NicotineLevelDTO `json:"nicotine_levels"`
	PuffCounts     []PuffCountDTO     `json:"puff_counts"`
}

// Service exposes catalog browsing and admin management.
type Service interface {
	List(ctx context.Context, input ListInput) (*ProductListResult, error)
	Get(ctx context.Context, idOrSlug string, includeArchived bool) (*ProductDTO, error)
	Create(ctx context.Context, req CreateProductRequest) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductDTO, error)
	Brands(ctx context.Context) ([]LookupDTO, error)
	Flavors(ctx context.Context) ([]LookupDTO, error)
	NicotineLevels(ctx context.Context) ([]NicotineLevelDTO, error)
	PuffCounts(ctx context.Context) ([]PuffCountDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService builds the catalog service.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ProductListResult, error) {
	if input.Filters.Sort == "" {
		input.Filters.Sort = SortNewest
	}
	if input.Filters.MinPriceCents != nil && input.Filters.MaxPriceCents != nil &&
		*input.Filters.MinPriceCents > *input.Filters.MaxPriceCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price must not exceed max_price")
	}
	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	items := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewProductDTO(&rows[i]))
	}
	return &ProductListResult{
		Items:      items,
		Page:       input.Page.Number,
		Limit:      input.Page.Limit,
		Total:      total,
		TotalPages: input.Page.TotalPages(total),
	}, nil
}

func (s *service) Get(ctx context.Context, idOrSlug string, includeArchived bool) (*ProductDTO, error) {
	product, err := s.load(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if product.IsArchived && !includeArchived {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return NewProductDTO(product), nil
}

func (s *service) load(ctx context.Context, idOrSlug string) (*models.Product, error) {
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	var (
		product *models.Product
		err     error
	)
	if id, parseErr := uuid.Parse(key); parseErr == nil {
		product, err = s.repo.FindByID(ctx, id)
	} else {
		product, err = s.repo.FindBySlug(ctx, strings.ToLower(key))
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) Create(ctx context.Context, req CreateProductRequest) (*ProductDTO, error) {
	slug := Slugify(req.Name)
	if req.Slug != nil && strings.TrimSpace(*req.Slug) != "" {
		slug = Slugify(*req.Slug)
	}
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug cannot be derived from name").
			WithDetails(map[string]string{"slug": "is required"})
	}
	if err := validatePrices(req.PriceCents, req.CompareAtPriceCents); err != nil {
		return nil, err
	}
	flavorIDs := dedupeIDs(req.FlavorIDs)
	if len(flavorIDs) > maxSupplementalFlavors {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d supplemental flavors", maxSupplementalFlavors))
	}

	product := &models.Product{
		Name:                strings.TrimSpace(req.Name),
		Slug:                slug,
		Description:         strings.TrimSpace(req.Description),
		SKU:                 trimmed(req.SKU),
		PriceCents:          req.PriceCents,
		CompareAtPriceCents: req.CompareAtPriceCents,
		BrandID:             req.BrandID,
		FlavorID:            req.FlavorID,
		NicotineLevelID:     req.NicotineLevelID,
		PuffCountID:         req.PuffCountID,
		IsFeatured:          req.IsFeatured,
		Images:              imageModels(req.Images),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		taken, err := repo.SlugExists(ctx, slug, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check slug")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		if err := validateLookups(ctx, repo, lookupRefs{
			brand:    req.BrandID,
			flavor:   req.FlavorID,
			nicotine: req.NicotineLevelID,
			puffs:    req.PuffCountID,
			flavors:  flavorIDs,
		}); err != nil {
			return err
		}
		if err := repo.Create(ctx, product, flavorIDs); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, product.ID.String(), true)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}

		updates := map[string]any{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Slug != nil {
			slug := Slugify(*req.Slug)
			if slug == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid slug")
			}
			taken, err := repo.SlugExists(ctx, slug, &id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check slug")
			}
			if taken {
				return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
			}
			updates["slug"] = slug
		}
		if req.Description != nil {
			updates["description"] = strings.TrimSpace(*req.Description)
		}
		if req.SKU != nil {
			updates["sku"] = trimmed(req.SKU)
		}
		price := current.PriceCents
		if req.PriceCents != nil {
			price = *req.PriceCents
			updates["price_cents"] = price
		}
		compareAt := current.CompareAtPriceCents
		if req.CompareAtPriceCents != nil {
			// Zero clears the original price.
			if *req.CompareAtPriceCents == 0 {
				compareAt = nil
			} else {
				compareAt = req.CompareAtPriceCents
			}
			updates["compare_at_price_cents"] = compareAt
		}
		if err := validatePrices(price, compareAt); err != nil {
			return err
		}
		refs := lookupRefs{brand: req.BrandID, flavor: req.FlavorID, nicotine: req.NicotineLevelID, puffs: req.PuffCountID}
		if req.BrandID != nil {
			updates["brand_id"] = *req.BrandID
		}
		if req.FlavorID != nil {
			updates["flavor_id"] = *req.FlavorID
		}
		if req.NicotineLevelID != nil {
			updates["nicotine_level_id"] = *req.NicotineLevelID
		}
		if req.PuffCountID != nil {
			updates["puff_count_id"] = *req.PuffCountID
		}
		if req.FlavorIDs != nil {
			refs.flavors = dedupeIDs(*req.FlavorIDs)
			if len(refs.flavors) > maxSupplementalFlavors {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d supplemental flavors", maxSupplementalFlavors))
			}
		}
		if err := validateLookups(ctx, repo, refs); err != nil {
			return err
		}
		if req.IsFeatured != nil {
			updates["is_featured"] = *req.IsFeatured
		}
		if req.IsArchived != nil {
			updates["is_archived"] = *req.IsArchived
		}

		if err := repo.Update(ctx, id, updates); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
		}
		if req.FlavorIDs != nil {
			if err := repo.ReplaceFlavors(ctx, id, refs.flavors); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update flavors")
			}
		}
		if req.Images != nil {
			if err := repo.ReplaceImages(ctx, id, imageModels(*req.Images)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update images")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id.String(), true)
}

func (s *service) Brands(ctx context.Context) ([]LookupDTO, error) {
	rows, err := s.repo.ListBrands(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list brands")
	}
	out := make([]LookupDTO, 0, len(rows))
	for _, b := range rows {
		out = append(out, LookupDTO{ID: b.ID, Name: b.Name, Slug: b.Slug})
	}
	return out, nil
}

func (s *service) Flavors(ctx context.Context) ([]LookupDTO, error) {
	rows, err := s.repo.ListFlavors(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list flavors")
	}
	out := make([]LookupDTO, 0, len(rows))
	for _, f := range rows {
		out = append(out, LookupDTO{ID: f.ID, Name: f.Name, Slug: f.Slug})
	}
	return out, nil
}

func (s *service) NicotineLevels(ctx context.Context) ([]NicotineLevelDTO, error) {
	rows, err := s.repo.ListNicotineLevels(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list nicotine levels")
	}
	out := make([]NicotineLevelDTO, 0, len(rows))
	for _, n := range rows {
		out = append(out, NewNicotineLevelDTO(n))
	}
	return out, nil
}

func (s *service) PuffCounts(ctx context.Context) ([]PuffCountDTO, error) {
	rows, err := s.repo.ListPuffCounts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list puff counts")
	}
	out := make([]PuffCountDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, NewPuffCountDTO(c))
	}
	return out, nil
}

type lookupRefs struct {
	brand    *uuid.UUID
	flavor   *uuid.UUID
	nicotine *uuid.UUID
	puffs    *uuid.UUID
	flavors  []uuid.UUID
}

func validateLookups(ctx context.Context, repo *Repository, refs lookupRefs) error {
	checks := []struct {
		field string
		model any
		ids   []uuid.UUID
	}{
		{"brand_id", &models.Brand{}, idList(refs.brand)},
		{"flavor_id", &models.Flavor{}, idList(refs.flavor)},
		{"nicotine_level_id", &models.NicotineLevel{}, idList(refs.nicotine)},
		{"puff_count_id", &models.PuffCount{}, idList(refs.puffs)},
		{"flavor_ids", &models.Flavor{}, refs.flavors},
	}
	for _, check := range checks {
		if len(check.ids) == 0 {
			continue
		}
		count, err := repo.CountExisting(ctx, check.model, check.ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check "+check.field)
		}
		if count != int64(len(check.ids)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown "+check.field).
				WithDetails(map[string]string{check.field: "does not exist"})
		}
	}
	return nil
}

func validatePrices(price int64, compareAt *int64) error {
	if price <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price_cents must be positive")
	}
	if compareAt != nil && *compareAt < price {
		return pkgerrors.New(pkgerrors.CodeValidation, "compare_at_price_cents must not be below price_cents")
	}
	return nil
}

func idList(id *uuid.UUID) []uuid.UUID {
	if id == nil {
		return nil
	}
	return []uuid.UUID{*id}
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	t := strings.TrimSpace(*value)
	if t == "" {
		return nil
	}
	return &t
}

func imageModels(images []ImageInput) []models.ProductImage {
	out := make([]models.ProductImage, 0, len(images))
	for i, img := range images {
		out = append(out, models.ProductImage{
			URL:      strings.TrimSpace(img.URL),
			AltText:  trimmed(img.AltText),
			Position: i,
		})
	}
	return out
}
