package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/api/middleware"
	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

type stubCheckoutService struct {
	caller checkout.Caller
	key    string
	req    checkout.Request
	result *checkout.Result
	err    error
	calls  int
}

func (s *stubCheckoutService) Checkout(_ context.Context, caller checkout.Caller, key string, req checkout.Request) (*checkout.Result, error) {
	s.calls++
	s.caller = caller
	s.key = key
	s.req = req
	return s.result, s.err
}

const checkoutBody = `{
	"email": "guest@example.com",
	"name": "Guest Buyer",
	"phone": "555-0100",
	"shipping_address": {"name": "Guest Buyer", "line1": "1 Main St", "city": "Austin", "state": "TX", "postal_code": "78701", "country": "US"},
	"shipping_rate_id": "rate_1",
	"payment_token": "cnon:card-nonce-ok"
}`

func newCheckoutRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCheckoutCapturedReturnsCreated(t *testing.T) {
	orderID := uuid.New()
	svc := &stubCheckoutService{result: &checkout.Result{
		Order:    orders.OrderDTO{ID: orderID, Email: "guest@example.com", Status: enums.OrderStatusPaid},
		Captured: true,
	}}
	req := newCheckoutRequest(checkoutBody)
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()

	Checkout(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.key != "key-1" {
		t.Fatalf("expected idempotency key passed through, got %q", svc.key)
	}
	if svc.caller.Authenticated {
		t.Fatal("anonymous request should not be authenticated")
	}
	if svc.req.Email != "guest@example.com" || svc.req.ShippingRateID != "rate_1" {
		t.Fatalf("unexpected request %+v", svc.req)
	}

	var envelope struct {
		Data orders.OrderDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != orderID {
		t.Fatalf("unexpected order id %s", envelope.Data.ID)
	}
}

func TestCheckoutReplayReturnsOK(t *testing.T) {
	svc := &stubCheckoutService{result: &checkout.Result{Order: orders.OrderDTO{ID: uuid.New()}}}
	req := newCheckoutRequest(checkoutBody)
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()

	Checkout(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	svc := &stubCheckoutService{}
	rec := httptest.NewRecorder()

	Checkout(svc, nil).ServeHTTP(rec, newCheckoutRequest(checkoutBody))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service should not be called without a key")
	}
}

func TestCheckoutUsesTokenIdentity(t *testing.T) {
	userID := uuid.New()
	svc := &stubCheckoutService{result: &checkout.Result{Captured: true}}
	req := newCheckoutRequest(checkoutBody)
	req.Header.Set("Idempotency-Key", "key-2")
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{
		UserID: userID,
		Email:  "member@example.com",
		Role:   enums.UserRoleCustomer,
	}))
	rec := httptest.NewRecorder()

	Checkout(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if !svc.caller.Authenticated || svc.caller.UserID != userID || svc.caller.Email != "member@example.com" {
		t.Fatalf("unexpected caller %+v", svc.caller)
	}
}

func TestCheckoutMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "declined", err: pkgerrors.New(pkgerrors.CodePaymentFailed, "card declined"), want: http.StatusPaymentRequired},
		{name: "stock", err: pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock"), want: http.StatusUnprocessableEntity},
		{name: "gateway", err: pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable"), want: http.StatusServiceUnavailable},
		{name: "anonymous member cart", err: pkgerrors.New(pkgerrors.CodeUnauthorized, "login required"), want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := newCheckoutRequest(checkoutBody)
			req.Header.Set("Idempotency-Key", "key-"+tc.name)
			rec := httptest.NewRecorder()

			Checkout(&stubCheckoutService{err: tc.err}, nil).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, rec.Code)
			}
		})
	}
}
