package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smokeshop-backend/internal/users"
	pkgAuth "github.com/angelmondragon/smokeshop-backend/pkg/auth"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/security"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "smokeshop", ExpirationMinutes: 30}

var testArgon = config.PasswordConfig{
	ArgonMemoryKB:    8192,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

type stubSessions struct {
	started int
	err     error
}

func (s *stubSessions) Start(context.Context) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	s.started++
	return "access-id", "refresh-token", nil
}

type stubGoogle struct {
	identity *GoogleIdentity
	err      error
}

func (s stubGoogle) Verify(context.Context, string) (*GoogleIdentity, error) {
	return s.identity, s.err
}

func newTestService(t *testing.T, google GoogleVerifier) (Service, *users.Repository, *stubSessions) {
	t.Helper()
	repo := users.NewRepository(dbtest.Open(t))
	sessions := &stubSessions{}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		GoogleVerifier: google,
		JWTConfig:      testJWT,
		PasswordConfig: testArgon,
	})
	require.NoError(t, err)
	return svc, repo, sessions
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _, sessions := newTestService(t, nil)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{Name: "Jane", Email: "Jane@Example.com", Password: "long-password"})
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", resp.User.Email)
	require.Equal(t, "refresh-token", resp.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID)
	require.Equal(t, enums.UserRoleCustomer, claims.Role)
	require.Equal(t, "access-id", claims.ID)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Jane", Email: "jane@example.com", Password: "long-password"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	login, err := svc.Login(ctx, LoginRequest{Email: "JANE@example.com", Password: "long-password"})
	require.NoError(t, err)
	require.NotNil(t, login.User.LastLoginAt)

	_, err = svc.Login(ctx, LoginRequest{Email: "jane@example.com", Password: "wrong-password"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	require.Equal(t, 2, sessions.started)
}

func TestRegisterClaimsGuest(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()

	guest, err := repo.FindOrCreateGuest(ctx, "guest@example.com", nil)
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "guest@example.com", Password: "anything"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "guests cannot log in")

	resp, err := svc.Register(ctx, RegisterRequest{Name: "Gus", Email: "guest@example.com", Password: "long-password"})
	require.NoError(t, err)
	require.Equal(t, guest.ID, resp.User.ID)
	require.False(t, resp.User.IsGuest)

	reloaded, err := repo.FindByID(ctx, guest.ID)
	require.NoError(t, err)
	require.False(t, reloaded.IsGuest)
	require.Equal(t, "Gus", *reloaded.Name)
}

func TestGoogleLoginLinksExistingEmail(t *testing.T) {
	identity := &GoogleIdentity{Subject: "sub-1", Email: "g@example.com", EmailVerified: true, Name: "Gee", Picture: "https://img/x.png"}
	svc, repo, _ := newTestService(t, stubGoogle{identity: identity})
	ctx := context.Background()

	guest, err := repo.FindOrCreateGuest(ctx, "g@example.com", nil)
	require.NoError(t, err)

	resp, err := svc.GoogleLogin(ctx, GoogleLoginRequest{IDToken: "token"})
	require.NoError(t, err)
	require.Equal(t, guest.ID, resp.User.ID)

	linked, err := repo.FindByGoogleSubject(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, guest.ID, linked.ID)
	require.False(t, linked.IsGuest)
	require.Equal(t, "https://img/x.png", *linked.Image)

	again, err := svc.GoogleLogin(ctx, GoogleLoginRequest{IDToken: "token"})
	require.NoError(t, err)
	require.Equal(t, guest.ID, again.User.ID)
}

func TestGoogleLoginRejectsUnverifiedEmail(t *testing.T) {
	svc, _, _ := newTestService(t, stubGoogle{identity: &GoogleIdentity{Subject: "s", Email: "x@example.com"}})
	_, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{IDToken: "token"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	unconfigured, _, _ := newTestService(t, nil)
	_, err = unconfigured.GoogleLogin(context.Background(), GoogleLoginRequest{IDToken: "token"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestLoginSessionFailureIsDependencyError(t *testing.T) {
	svc, repo, sessions := newTestService(t, nil)
	ctx := context.Background()
	hash, err := security.HashPassword("long-password", testArgon)
	require.NoError(t, err)
	_, err = repo.Create(ctx, users.CreateUserDTO{Email: "s@example.com", PasswordHash: &hash})
	require.NoError(t, err)

	sessions.err = errors.New("redis down")
	_, err = svc.Login(ctx, LoginRequest{Email: "s@example.com", Password: "long-password"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
