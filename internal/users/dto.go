package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	Name        *string        `json:"name,omitempty"`
	Image       *string        `json:"image,omitempty"`
	Role        enums.UserRole `json:"role"`
	IsGuest     bool           `json:"is_guest"`
	HasPassword bool           `json:"has_password"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email         string
	PasswordHash  *string
	Name          *string
	Image         *string
	Role          enums.UserRole
	IsGuest       bool
	GoogleSubject *string
}

// NormalizeEmail lower-cases and trims an address; emails are the identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Image:       u.Image,
		Role:        u.Role,
		IsGuest:     u.IsGuest,
		HasPassword: u.PasswordHash != nil && *u.PasswordHash != "",
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if !role.IsValid() {
		role = enums.UserRoleCustomer
	}
	return &models.User{
		Email:         NormalizeEmail(c.Email),
		PasswordHash:  c.PasswordHash,
		Name:          trimmedPtr(c.Name),
		Image:         trimmedPtr(c.Image),
		Role:          role,
		IsGuest:       c.IsGuest,
		GoogleSubject: c.GoogleSubject,
	}
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
