package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

const (
	// MaxDistinctProducts caps how many different products a cart may hold.
	MaxDistinctProducts = 50
	// MaxQuantity caps the quantity of a single product.
	MaxQuantity = 99
)

// Caller describes who is addressing a cart.
type Caller struct {
	Authenticated bool
	Email         string
	IsAdmin       bool
}

// Service exposes cart reads and writes addressed by email.
type Service interface {
	Get(ctx context.Context, caller Caller, email string) (*CartDTO, error)
	Replace(ctx context.Context, caller Caller, email string, req ReplaceRequest) (*CartDTO, bool, error)
	Patch(ctx context.Context, caller Caller, email string, req PatchRequest) (*CartDTO, error)
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type registrationChecker interface {
	IsRegistered(ctx context.Context, email string) (bool, error)
}

type service struct {
	repo     *Repository
	products productLoader
	users    registrationChecker
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, products productLoader, users registrationChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user registration checker required")
	}
	return &service{repo: repo, products: products, users: users}, nil
}

func (s *service) Get(ctx context.Context, caller Caller, email string) (*CartDTO, error) {
	email, err := s.authorize(ctx, caller, email)
	if err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &CartDTO{Email: email, Items: []models.CartItem{}, Lines: []LineDTO{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return s.present(ctx, cart)
}

// Replace creates or overwrites the cart; the bool reports creation.
func (s *service) Replace(ctx context.Context, caller Caller, email string, req ReplaceRequest) (*CartDTO, bool, error) {
	email, err := s.authorize(ctx, caller, email)
	if err != nil {
		return nil, false, err
	}
	items, err := s.validateItems(ctx, req.Items)
	if err != nil {
		return nil, false, err
	}

	created := false
	updated, err := s.repo.ReplaceItems(ctx, email, items, nil)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replace cart")
	}
	if !updated {
		if _, err := s.repo.Create(ctx, email, items); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "cart was modified concurrently")
			}
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
		}
		created = true
	}

	dto, err := s.reload(ctx, email)
	return dto, created, err
}

func (s *service) Patch(ctx context.Context, caller Caller, email string, req PatchRequest) (*CartDTO, error) {
	email, err := s.authorize(ctx, caller, email)
	if err != nil {
		return nil, err
	}
	items, err := s.validateItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.ReplaceItems(ctx, email, items, req.Version)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart")
	}
	if !updated {
		_, findErr := s.repo.FindByEmail(ctx, email)
		switch {
		case findErr == nil:
			return nil, versionConflict()
		case !errors.Is(findErr, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "load cart")
		case req.Version != nil && *req.Version != 0:
			// A missing cart is version 0.
			return nil, versionConflict()
		}
		if _, err := s.repo.Create(ctx, email, items); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, versionConflict()
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
		}
	}
	return s.reload(ctx, email)
}

func versionConflict() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "cart version mismatch")
}

// authorize normalizes email and enforces that authenticated callers address
// only their own cart (admins excepted) and anonymous callers only carts of
// unregistered emails.
func (s *service) authorize(ctx context.Context, caller Caller, email string) (string, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if caller.Authenticated {
		if caller.IsAdmin || users.NormalizeEmail(caller.Email) == email {
			return email, nil
		}
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another user")
	}
	registered, err := s.users.IsRegistered(ctx, email)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check registration")
	}
	if registered {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to access this cart")
	}
	return email, nil
}

// validateItems merges duplicate products, preserving first-seen order, and
// checks every product is purchasable.
func (s *service) validateItems(ctx context.Context, inputs []ItemInput) (models.CartItems, error) {
	items, err := MergeItems(inputs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	rows, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	byID := indexProducts(rows)
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]string{"product_id": item.ProductID.String()})
		}
		if product.IsArchived {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is no longer available").
				WithDetails(map[string]string{"product_id": item.ProductID.String()})
		}
	}
	return items, nil
}

// MergeItems folds duplicate product ids into one line and enforces the
// quantity and distinct-product limits.
func MergeItems(inputs []ItemInput) (models.CartItems, error) {
	items := make(models.CartItems, 0, len(inputs))
	position := map[uuid.UUID]int{}
	for _, in := range inputs {
		if in.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
		}
		if in.Quantity < 1 || in.Quantity > MaxQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity))
		}
		if idx, ok := position[in.ProductID]; ok {
			items[idx].Quantity += in.Quantity
			if items[idx].Quantity > MaxQuantity {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity))
			}
			continue
		}
		position[in.ProductID] = len(items)
		items = append(items, models.CartItem{ProductID: in.ProductID, Quantity: in.Quantity})
	}
	if len(items) > MaxDistinctProducts {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("a cart holds at most %d products", MaxDistinctProducts))
	}
	return items, nil
}

func (s *service) reload(ctx context.Context, email string) (*CartDTO, error) {
	cart, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
	}
	return s.present(ctx, cart)
}

func (s *service) present(ctx context.Context, cart *models.Cart) (*CartDTO, error) {
	dto := &CartDTO{
		Email:     cart.Email,
		Items:     []models.CartItem(cart.Items),
		Version:   cart.Version,
		Lines:     make([]LineDTO, 0, len(cart.Items)),
		UpdatedAt: &cart.UpdatedAt,
	}
	if dto.Items == nil {
		dto.Items = []models.CartItem{}
	}
	if len(cart.Items) == 0 {
		return dto, nil
	}

	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	rows, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "price cart")
	}
	byID := indexProducts(rows)
	for _, item := range cart.Items {
		line := LineDTO{ProductID: item.ProductID, Quantity: item.Quantity}
		if product, ok := byID[item.ProductID]; ok {
			line.Name = product.Name
			line.Slug = product.Slug
			line.UnitPriceCents = product.PriceCents
			line.CompareAtPriceCents = product.CompareAtPriceCents
			line.Available = !product.IsArchived
			if len(product.Images) > 0 {
				url := product.Images[0].URL
				line.ImageURL = &url
			}
		}
		if line.Available {
			line.LineTotalCents = line.UnitPriceCents * int64(item.Quantity)
			dto.SubtotalCents += line.LineTotalCents
			dto.ItemCount += item.Quantity
		}
		dto.Lines = append(dto.Lines, line)
	}
	return dto, nil
}

func indexProducts(rows []models.Product) map[uuid.UUID]*models.Product {
	byID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	return byID
}
