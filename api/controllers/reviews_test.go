package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smokeshop-backend/internal/reviews"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

type stubReviewsService struct {
	idOrSlug string
	author   reviews.Author
	req      reviews.CreateRequest
	caller   string
	err      error
}

func (s *stubReviewsService) ListForProduct(_ context.Context, idOrSlug string) ([]reviews.ReviewDTO, error) {
	s.idOrSlug = idOrSlug
	return []reviews.ReviewDTO{{ID: uuid.New(), Rating: 5}}, s.err
}

func (s *stubReviewsService) Create(_ context.Context, author reviews.Author, req reviews.CreateRequest) (*reviews.ReviewDTO, error) {
	s.author = author
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &reviews.ReviewDTO{ID: uuid.New(), ProductID: req.ProductID, Rating: req.Rating}, nil
}

func (s *stubReviewsService) Delete(_ context.Context, callerEmail string, _ uuid.UUID) error {
	s.caller = callerEmail
	return s.err
}

func TestReviewsForProductUsesSlug(t *testing.T) {
	svc := &stubReviewsService{}
	req := withRouteParam(httptest.NewRequest(http.MethodGet, "/api/products/mango-ice/reviews", nil), "idOrSlug", "mango-ice")
	rec := httptest.NewRecorder()

	ReviewsForProduct(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "mango-ice", svc.idOrSlug)
}

func TestReviewCreateUsesCallerEmail(t *testing.T) {
	svc := &stubReviewsService{}
	productID := uuid.New()
	body := `{"product_id":"` + productID.String() + `","rating":4,"body":"Smooth draw"}`
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/api/reviews", strings.NewReader(body)), uuid.New(), "fan@example.com")
	rec := httptest.NewRecorder()

	ReviewCreate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "fan@example.com", svc.author.Email)
	require.Equal(t, productID, svc.req.ProductID)
	require.Equal(t, 4, svc.req.Rating)
}

func TestReviewCreateRatingOutOfRange(t *testing.T) {
	svc := &stubReviewsService{err: pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")}
	body := `{"product_id":"` + uuid.NewString() + `","rating":6,"body":"Too good"}`
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/api/reviews", strings.NewReader(body)), uuid.New(), "fan@example.com")
	rec := httptest.NewRecorder()

	ReviewCreate(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewDeleteForbiddenForOtherAuthor(t *testing.T) {
	svc := &stubReviewsService{err: pkgerrors.New(pkgerrors.CodeForbidden, "review belongs to another user")}
	req := withCustomer(httptest.NewRequest(http.MethodDelete, "/api/reviews/x", nil), uuid.New(), "other@example.com")
	req = withRouteParam(req, "id", uuid.NewString())
	rec := httptest.NewRecorder()

	ReviewDelete(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "other@example.com", svc.caller)
}
