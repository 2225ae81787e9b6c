package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/email"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/security"
)

const invalidResetTokenMessage = "reset token is invalid or expired"

// PasswordResetService drives forgot/reset password.
type PasswordResetService interface {
	Forgot(ctx context.Context, req ForgotPasswordRequest) error
	Reset(ctx context.Context, req ResetPasswordRequest) error
}

type resetUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*models.User, error)
	SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	CompletePasswordReset(ctx context.Context, id uuid.UUID, tokenHash, passwordHash string) (bool, error)
}

// PasswordResetParams bundles the reset flow dependencies.
type PasswordResetParams struct {
	UserRepo       resetUserRepository
	Mailer         email.Sender
	App            config.AppConfig
	ResetConfig    config.PasswordResetConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type passwordResetService struct {
	users       resetUserRepository
	mailer      email.Sender
	app         config.AppConfig
	resetCfg    config.PasswordResetConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewPasswordResetService builds the reset flow.
func NewPasswordResetService(params PasswordResetParams) (PasswordResetService, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	resetCfg := params.ResetConfig
	if resetCfg.TokenTTL <= 0 {
		resetCfg.TokenTTL = time.Hour
	}
	if strings.TrimSpace(resetCfg.ResetPath) == "" {
		resetCfg.ResetPath = "/reset-password"
	}
	return &passwordResetService{
		users:       params.UserRepo,
		mailer:      params.Mailer,
		app:         params.App,
		resetCfg:    resetCfg,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Forgot emails a reset link when the account exists. Unknown emails succeed
// silently.
func (s *passwordResetService) Forgot(ctx context.Context, req ForgotPasswordRequest) error {
	user, err := s.users.FindByEmail(ctx, users.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	raw, hashed, err := security.GenerateResetToken()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset token")
	}
	if err := s.users.SetResetToken(ctx, user.ID, hashed, s.now().Add(s.resetCfg.TokenTTL)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store reset token")
	}

	msg, err := email.RenderPasswordReset(email.PasswordReset{
		StoreName: s.app.StoreName,
		Email:     user.Email,
		ResetURL:  s.resetURL(raw),
		ExpiresIn: fmt.Sprintf("%d minutes", int(s.resetCfg.TokenTTL.Minutes())),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render reset email")
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithEmail(ctx, user.Email), "password reset email failed", err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send reset email")
	}
	return nil
}

// Reset consumes a token: the stored digest is cleared in the same update
// that sets the new password.
func (s *passwordResetService) Reset(ctx context.Context, req ResetPasswordRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
	}
	hashed := security.HashToken(token)

	user, err := s.users.FindByResetTokenHash(ctx, hashed, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup reset token")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	ok, err := s.users.CompletePasswordReset(ctx, user.ID, hashed, passwordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
	}
	return nil
}

func (s *passwordResetService) resetURL(token string) string {
	path := s.resetCfg.ResetPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s%s?token=%s", s.app.BaseURL(), path, url.QueryEscape(token))
}
