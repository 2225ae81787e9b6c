package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/security"
)

// UpdateProfileRequest is the PATCH /api/user payload.
type UpdateProfileRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Image           *string `json:"image,omitempty" validate:"omitempty,url"`
	CurrentPassword *string `json:"current_password,omitempty"`
	NewPassword     *string `json:"new_password,omitempty" validate:"omitempty,min=8,max=128"`
}

// Service exposes profile reads and edits for the signed-in user.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*UserDTO, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type service struct {
	repo        userStore
	passwordCfg config.PasswordConfig
}

// NewService builds the profile service.
func NewService(repo userStore, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	return &service{repo: repo, passwordCfg: passwordCfg}, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = trimmedPtr(req.Name)
	}
	if req.Image != nil {
		updates["image"] = trimmedPtr(req.Image)
	}
	if req.NewPassword != nil {
		if user.PasswordHash != nil && *user.PasswordHash != "" {
			if req.CurrentPassword == nil || strings.TrimSpace(*req.CurrentPassword) == "" {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "current_password is required").
					WithDetails(map[string]string{"current_password": "is required"})
			}
			ok, err := security.VerifyPassword(*req.CurrentPassword, *user.PasswordHash)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
			}
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "current password is incorrect")
			}
		}
		hash, err := security.HashPassword(*req.NewPassword, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		updates["password_hash"] = hash
		updates["is_guest"] = false
	}
	if len(updates) == 0 {
		return FromModel(user), nil
	}

	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
	}
	return s.Profile(ctx, userID)
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}
