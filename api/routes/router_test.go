package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smokeshop-backend/api/controllers"
	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	"github.com/angelmondragon/smokeshop-backend/internal/products"
	pkgAuth "github.com/angelmondragon/smokeshop-backend/pkg/auth"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(context.Context, string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(context.Context, string, string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(context.Context, string) error {
	return nil
}

type stubProductService struct {
	products.Service
}

func (stubProductService) Brands(context.Context) ([]products.LookupDTO, error) {
	return []products.LookupDTO{}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) Checkout(context.Context, checkout.Caller, string, checkout.Request) (*checkout.Result, error) {
	return &checkout.Result{}, nil
}

type stubSitemaps struct{}

func (stubSitemaps) Products(context.Context) ([]byte, error) {
	return []byte("<urlset></urlset>"), nil
}

func (stubSitemaps) Blog(context.Context) ([]byte, error) {
	return []byte("<urlset></urlset>"), nil
}

func (stubSitemaps) Index(context.Context) ([]byte, error) {
	return []byte("<sitemapindex></sitemapindex>"), nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", PublicURL: "https://shop.example.com"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "smokeshop", ExpirationMinutes: 30},
	}
}

func testRouter() http.Handler {
	return NewRouter(Dependencies{
		Config:   testConfig(),
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Pingers:  map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}},
		Sessions: stubSessionManager{},
		Products: stubProductService{},
		Checkout: stubCheckoutService{},
		Sitemaps: stubSitemaps{},
	})
}

func bearer(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "caller@example.com",
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router := testRouter()

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
		if rec.Header().Get("X-Smokeshop-Env") != "dev" {
			t.Fatalf("%s: missing env header", path)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestCatalogFacetIsPublic(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/brands", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrdersRequireAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.Header.Set("Authorization", bearer(t, enums.UserRoleCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous product create got %d", rec.Code)
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSitemapRoutesServeXML(t *testing.T) {
	router := testRouter()
	for _, path := range []string{"/sitemap.xml", "/server-sitemap-products.xml", "/server-sitemap-blog.xml"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/xml") {
			t.Fatalf("%s: unexpected content type %q", path, rec.Header().Get("Content-Type"))
		}
	}
}

func TestWebhookRoutesWithoutServices(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhook/square", strings.NewReader(`{}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}
