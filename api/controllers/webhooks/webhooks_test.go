package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/square"
)

type stubSquareService struct {
	body      string
	signature string
	err       error
}

func (s *stubSquareService) Handle(_ context.Context, body []byte, signature string) error {
	s.body = string(body)
	s.signature = signature
	return s.err
}

type stubShippoService struct {
	token string
	err   error
}

func (s *stubShippoService) Handle(_ context.Context, token string, _ []byte) error {
	s.token = token
	return s.err
}

func TestSquareWebhookPassesSignature(t *testing.T) {
	svc := &stubSquareService{}
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/square", strings.NewReader(`{"type":"payment.updated"}`))
	req.Header.Set(square.SignatureHeader, "sig")
	rec := httptest.NewRecorder()

	SquareWebhook(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.signature != "sig" || svc.body != `{"type":"payment.updated"}` {
		t.Fatalf("unexpected call %+v", svc)
	}
}

func TestSquareWebhookRequiresSignature(t *testing.T) {
	svc := &stubSquareService{}
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/square", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	SquareWebhook(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if svc.body != "" {
		t.Fatal("service should not be called")
	}
}

func TestSquareWebhookFailureAllowsRedelivery(t *testing.T) {
	svc := &stubSquareService{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/square", strings.NewReader(`{}`))
	req.Header.Set(square.SignatureHeader, "sig")
	rec := httptest.NewRecorder()

	SquareWebhook(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestShippoWebhookReadsToken(t *testing.T) {
	svc := &stubShippoService{}
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/shippo?token=secret", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	ShippoWebhook(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.token != "secret" {
		t.Fatalf("expected token to be forwarded, got %q", svc.token)
	}
}

func TestShippoWebhookUnauthorized(t *testing.T) {
	svc := &stubShippoService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid shippo webhook token")}
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/shippo", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	ShippoWebhook(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "UNAUTHORIZED") {
		t.Fatalf("expected error envelope, got %s", body)
	}
}
