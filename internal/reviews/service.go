package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

// Reviews carry a whole-star rating within this range.
const (
	MinRating = 1
	MaxRating = 5
)

// Service manages product reviews and keeps product rating aggregates current.
type Service interface {
	ListForProduct(ctx context.Context, idOrSlug string) ([]ReviewDTO, error)
	Create(ctx context.Context, author Author, req CreateRequest) (*ReviewDTO, error)
	Delete(ctx context.Context, callerEmail string, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     *Repository
	products *products.Repository
	tx       txRunner
}

// NewService builds the review service. Rating aggregates are recomputed
// inside the same transaction as each review write.
func NewService(repo *Repository, productRepo *products.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: productRepo, tx: tx}, nil
}

func (s *service) ListForProduct(ctx context.Context, idOrSlug string) ([]ReviewDTO, error) {
	product, err := s.findProduct(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	out := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, author Author, req CreateRequest) (*ReviewDTO, error) {
	email := users.NormalizeEmail(author.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if req.Rating < MinRating || req.Rating > MaxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]any{"field": "rating"})
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "review body is required").
			WithDetails(map[string]any{"field": "body"})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(author.Name)
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	var title *string
	if req.Title != nil {
		if trimmed := strings.TrimSpace(*req.Title); trimmed != "" {
			title = &trimmed
		}
	}

	if _, err := s.findProduct(ctx, req.ProductID.String()); err != nil {
		return nil, err
	}

	review := &models.Review{
		ProductID: req.ProductID,
		UserEmail: email,
		Name:      name,
		Rating:    req.Rating,
		Title:     title,
		Body:      body,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "you have already reviewed this product")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create review")
		}
		if err := s.products.WithTx(tx).RecomputeRating(ctx, review.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute rating")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(review)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, callerEmail string, id uuid.UUID) error {
	email := users.NormalizeEmail(callerEmail)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
		}
		if review.UserEmail != email {
			return pkgerrors.New(pkgerrors.CodeForbidden, "review belongs to another user")
		}
		if err := repo.Delete(ctx, review.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete review")
		}
		if err := s.products.WithTx(tx).RecomputeRating(ctx, review.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute rating")
		}
		return nil
	})
}

func (s *service) findProduct(ctx context.Context, idOrSlug string) (*models.Product, error) {
	var (
		product *models.Product
		err     error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		product, err = s.products.FindByID(ctx, id)
	} else {
		product, err = s.products.FindBySlug(ctx, strings.TrimSpace(idOrSlug))
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product.IsArchived {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}
