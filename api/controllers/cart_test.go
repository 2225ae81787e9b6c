package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

type stubCartService struct {
	caller  cart.Caller
	email   string
	patch   cart.PatchRequest
	created bool
	err     error
}

func (s *stubCartService) Get(_ context.Context, caller cart.Caller, email string) (*cart.CartDTO, error) {
	s.caller = caller
	s.email = email
	if s.err != nil {
		return nil, s.err
	}
	return &cart.CartDTO{Email: email, Items: []models.CartItem{}}, nil
}

func (s *stubCartService) Replace(_ context.Context, caller cart.Caller, email string, _ cart.ReplaceRequest) (*cart.CartDTO, bool, error) {
	s.caller = caller
	s.email = email
	return &cart.CartDTO{Email: email}, s.created, s.err
}

func (s *stubCartService) Patch(_ context.Context, caller cart.Caller, email string, req cart.PatchRequest) (*cart.CartDTO, error) {
	s.caller = caller
	s.email = email
	s.patch = req
	return &cart.CartDTO{Email: email, Items: []models.CartItem{}, Version: 2}, s.err
}

func TestCartGetDecodesEmailAndCaller(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodGet, "/api/cart/jane%40example.com", nil)
	req = withRouteParam(withCustomer(req, uuid.New(), "jane@example.com"), "email", "jane%40example.com")
	rec := httptest.NewRecorder()

	CartGet(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "jane@example.com", svc.email)
	require.True(t, svc.caller.Authenticated)
	require.Equal(t, "jane@example.com", svc.caller.Email)
	require.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestCartGetAnonymousCaller(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to view this cart")}
	req := withRouteParam(httptest.NewRequest(http.MethodGet, "/api/cart/x", nil), "email", "member@example.com")
	rec := httptest.NewRecorder()

	CartGet(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, svc.caller.Authenticated)
}

func TestCartReplaceStatus(t *testing.T) {
	body := `{"items":[{"product_id":"` + uuid.NewString() + `","quantity":1}]}`

	svc := &stubCartService{created: true}
	req := withRouteParam(httptest.NewRequest(http.MethodPost, "/api/cart/guest@example.com", strings.NewReader(body)), "email", "guest@example.com")
	rec := httptest.NewRecorder()
	CartReplace(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	svc.created = false
	req = withRouteParam(httptest.NewRequest(http.MethodPost, "/api/cart/guest@example.com", strings.NewReader(body)), "email", "guest@example.com")
	rec = httptest.NewRecorder()
	CartReplace(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCartPatchEmptyItems(t *testing.T) {
	svc := &stubCartService{}
	req := withRouteParam(httptest.NewRequest(http.MethodPatch, "/api/cart/guest@example.com", strings.NewReader(`{"items":[],"version":1}`)), "email", "guest@example.com")
	rec := httptest.NewRecorder()

	CartPatch(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.patch.Items)
	require.Empty(t, svc.patch.Items)
	require.NotNil(t, svc.patch.Version)
	require.Equal(t, 1, *svc.patch.Version)
}

func TestCartUnavailable(t *testing.T) {
	rec := httptest.NewRecorder()
	CartGet(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart/a", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
