package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smokeshop-backend/internal/address"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

type stubAddressService struct {
	email   string
	created address.CreateRequest
	deleted uuid.UUID
	err     error
}

func (s *stubAddressService) Create(_ context.Context, email string, req address.CreateRequest) (*address.AddressDTO, error) {
	s.email = email
	s.created = req
	return &address.AddressDTO{ID: uuid.New(), Name: req.Name}, s.err
}

func (s *stubAddressService) List(_ context.Context, email string) ([]address.AddressDTO, error) {
	s.email = email
	return []address.AddressDTO{}, s.err
}

func (s *stubAddressService) Get(_ context.Context, email string, id uuid.UUID) (*address.AddressDTO, error) {
	s.email = email
	if s.err != nil {
		return nil, s.err
	}
	return &address.AddressDTO{ID: id}, nil
}

func (s *stubAddressService) Update(_ context.Context, email string, id uuid.UUID, _ address.UpdateRequest) (*address.AddressDTO, error) {
	s.email = email
	return &address.AddressDTO{ID: id}, s.err
}

func (s *stubAddressService) Delete(_ context.Context, email string, id uuid.UUID) error {
	s.email = email
	s.deleted = id
	return s.err
}

func (s *stubAddressService) Suggest(context.Context, address.SuggestRequest) ([]address.Suggestion, error) {
	return []address.Suggestion{{PlaceID: "p1", Description: "1 Main St"}}, s.err
}

func (s *stubAddressService) Resolve(_ context.Context, placeID string) (types.Address, error) {
	return types.Address{Line1: placeID}, s.err
}

func TestAddressCreateReturnsCreated(t *testing.T) {
	svc := &stubAddressService{}
	body := `{"name":"Home","line1":"1 Main St","city":"Austin","state":"TX","postal_code":"78701","country":"US","phone":"555-0100"}`
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/api/address", strings.NewReader(body)), uuid.New(), "a@example.com")
	rec := httptest.NewRecorder()

	AddressCreate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "a@example.com", svc.email)
	require.Equal(t, "78701", svc.created.PostalCode)
}

func TestAddressCreateMissingFields(t *testing.T) {
	svc := &stubAddressService{}
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/api/address", strings.NewReader(`{"name":"Home"}`)), uuid.New(), "a@example.com")
	rec := httptest.NewRecorder()

	AddressCreate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, svc.email)
}

func TestAddressGetForeignIsNotFound(t *testing.T) {
	svc := &stubAddressService{err: pkgerrors.New(pkgerrors.CodeNotFound, "address not found")}
	req := withCustomer(httptest.NewRequest(http.MethodGet, "/api/address/x", nil), uuid.New(), "b@example.com")
	req = withRouteParam(req, "id", uuid.NewString())
	rec := httptest.NewRecorder()

	AddressGet(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddressDeleteNoContent(t *testing.T) {
	svc := &stubAddressService{}
	id := uuid.New()
	req := withCustomer(httptest.NewRequest(http.MethodDelete, "/api/address/x", nil), uuid.New(), "a@example.com")
	req = withRouteParam(req, "id", id.String())
	rec := httptest.NewRecorder()

	AddressDelete(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, id, svc.deleted)
}

func TestAddressResolveUsesPlaceID(t *testing.T) {
	req := withRouteParam(httptest.NewRequest(http.MethodGet, "/api/address/resolve/p1", nil), "placeId", "p1")
	rec := httptest.NewRecorder()

	AddressResolve(&stubAddressService{}, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"line1":"p1"`)
}

func TestAddressSuggestDependencyFailure(t *testing.T) {
	svc := &stubAddressService{err: pkgerrors.New(pkgerrors.CodeDependency, "address lookup unavailable")}
	req := httptest.NewRequest(http.MethodPost, "/api/address/suggest", strings.NewReader(`{"input":"1 Main"}`))
	rec := httptest.NewRecorder()

	AddressSuggest(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
