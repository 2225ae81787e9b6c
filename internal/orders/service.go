package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/pagination"
)

// Caller identifies who reads an order.
type Caller struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Service exposes order history reads.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, caller Caller, id uuid.UUID) (*OrderDTO, error)
	AdminList(ctx context.Context, status string, params pagination.Params) (*OrderList, error)
}

type service struct {
	repo *Repository
}

// NewService builds the orders read service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return s.list(ctx, ListFilters{UserID: &userID}, params)
}

func (s *service) Get(ctx context.Context, caller Caller, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	// Foreign orders are reported as missing so ids cannot be enumerated.
	if !caller.IsAdmin && order.UserID != caller.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) AdminList(ctx context.Context, status string, params pagination.Params) (*OrderList, error) {
	filters := ListFilters{}
	if trimmed := strings.TrimSpace(status); trimmed != "" {
		parsed, err := enums.ParseOrderStatus(strings.ToLower(trimmed))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &parsed
	}
	return s.list(ctx, filters, params)
}

func (s *service) list(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return newOrderList(rows, next), nil
}

func newOrderList(rows []models.Order, next string) *OrderList {
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Orders = append(list.Orders, NewOrderDTO(&rows[i]))
	}
	return list
}
