package middleware

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxRole     contextKey = "actor_role"
	ctxEmail    contextKey = "actor_email"
	ctxAccessID contextKey = "access_id"
)

// Identity is the authenticated caller resolved from the bearer token.
type Identity struct {
	UserID   uuid.UUID
	Email    string
	Role     enums.UserRole
	AccessID string
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == enums.UserRoleAdmin
}

// CanActAs reports whether the caller may read or write data keyed by email.
func (i Identity) CanActAs(email string) bool {
	if i.IsAdmin() {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(email), i.Email)
}

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func EmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxEmail).(string); ok {
		return v
	}
	return ""
}

func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// IdentityFromContext returns the caller identity and whether the request was
// authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return Identity{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Identity{}, false
	}
	return Identity{
		UserID:   id,
		Email:    EmailFromContext(ctx),
		Role:     enums.UserRole(RoleFromContext(ctx)),
		AccessID: AccessIDFromContext(ctx),
	}, true
}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, identity.UserID.String())
	ctx = context.WithValue(ctx, ctxRole, string(identity.Role))
	ctx = context.WithValue(ctx, ctxEmail, identity.Email)
	if identity.AccessID != "" {
		ctx = context.WithValue(ctx, ctxAccessID, identity.AccessID)
	}
	return ctx
}
