package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleVerifier validates Google Sign-In ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error)
}

type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

type googleVerifier struct {
	clientID string
	validate validateFunc
}

// NewGoogleVerifier checks tokens against Google's published keys for the
// configured OAuth client id.
func NewGoogleVerifier(clientID string) (GoogleVerifier, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	return &googleVerifier{clientID: clientID, validate: idtoken.Validate}, nil
}

func (v *googleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error) {
	payload, err := v.validate(ctx, strings.TrimSpace(rawToken), v.clientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid google id token")
	}
	return identityFromPayload(payload), nil
}

func identityFromPayload(payload *idtoken.Payload) *GoogleIdentity {
	identity := &GoogleIdentity{Subject: payload.Subject}
	if payload.Claims == nil {
		return identity
	}
	identity.Email, _ = payload.Claims["email"].(string)
	identity.Name, _ = payload.Claims["name"].(string)
	identity.Picture, _ = payload.Claims["picture"].(string)
	switch verified := payload.Claims["email_verified"].(type) {
	case bool:
		identity.EmailVerified = verified
	case string:
		identity.EmailVerified = strings.EqualFold(verified, "true")
	}
	return identity
}

// GoogleLogin signs in with a Google ID token. A linked account is matched by
// subject; otherwise the email's row (guest or registered) is linked, or a new
// account is created.
func (s *service) GoogleLogin(ctx context.Context, req GoogleLoginRequest) (*LoginResponse, error) {
	if s.google == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google sign-in is not configured")
	}
	identity, err := s.google.Verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	if identity.Subject == "" || identity.Email == "" || !identity.EmailVerified {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "google account email is not verified")
	}

	user, err := s.users.FindByGoogleSubject(ctx, identity.Subject)
	if err == nil {
		return s.issue(ctx, user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup google user")
	}

	user, err = s.users.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if err := s.linkGoogle(ctx, user, identity); err != nil {
			return nil, err
		}
		return s.issue(ctx, user)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	subject := identity.Subject
	user, err = s.users.Create(ctx, users.CreateUserDTO{
		Email:         identity.Email,
		Name:          optional(identity.Name),
		Image:         optional(identity.Picture),
		GoogleSubject: &subject,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create google user")
	}
	return s.issue(ctx, user)
}

func (s *service) linkGoogle(ctx context.Context, user *models.User, identity *GoogleIdentity) error {
	updates := map[string]any{
		"google_subject": identity.Subject,
		"is_guest":       false,
	}
	if name := optional(identity.Name); name != nil && (user.Name == nil || user.IsGuest) {
		updates["name"] = *name
		user.Name = name
	}
	if picture := optional(identity.Picture); picture != nil && user.Image == nil {
		updates["image"] = *picture
		user.Image = picture
	}
	if err := s.users.Update(ctx, user.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link google account")
	}
	subject := identity.Subject
	user.GoogleSubject = &subject
	user.IsGuest = false
	return nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
