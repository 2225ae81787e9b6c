package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/smokeshop-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/smokeshop-backend/api/controllers/webhooks"
	"github.com/angelmondragon/smokeshop-backend/api/middleware"
	"github.com/angelmondragon/smokeshop-backend/internal/address"
	"github.com/angelmondragon/smokeshop-backend/internal/auth"
	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	"github.com/angelmondragon/smokeshop-backend/internal/content"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/internal/reviews"
	"github.com/angelmondragon/smokeshop-backend/internal/shipping"
	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/pkg/auth/session"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

type sitemapBuilder interface {
	Products(ctx context.Context) ([]byte, error)
	Blog(ctx context.Context) ([]byte, error)
	Index(ctx context.Context) ([]byte, error)
}

// Dependencies carries everything the HTTP surface calls into. Nil services
// answer with an error envelope instead of panicking.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pingers  map[string]controllers.Pinger
	Redis    requestStore
	Sessions sessionManager

	Auth          auth.Service
	PasswordReset auth.PasswordResetService
	Users         users.Service
	Products      products.Service
	Cart          cart.Service
	Shipping      shipping.Service
	Checkout      checkout.Service
	Orders        orders.Service
	Address       address.Service
	Reviews       reviews.Service
	Content       content.Service
	Sitemaps      sitemapBuilder

	SquareWebhook webhookcontrollers.SquareWebhookService
	ShippoWebhook webhookcontrollers.ShippoWebhookService
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
		middleware.Logging(logg),
		middleware.Metrics(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	forgotPolicy := middleware.NewAuthRateLimitPolicy(
		"forgot-password",
		cfg.AuthRateLimit.ForgotWindow,
		cfg.AuthRateLimit.ForgotIPLimit,
		cfg.AuthRateLimit.ForgotEmailLimit,
	)

	rateStore := rateLimitStore(deps.Redis)
	idemStore := idempotencyStore(deps.Redis)
	requireAuth := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg)
	idempotent := middleware.Idempotency(idemStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Pingers, logg))
	})
	r.Handle("/metrics", promhttp.Handler())

	if deps.Sitemaps != nil {
		r.Get("/sitemap.xml", controllers.Sitemap(deps.Sitemaps.Index, logg))
		r.Get("/server-sitemap-products.xml", controllers.Sitemap(deps.Sitemaps.Products, logg))
		r.Get("/server-sitemap-blog.xml", controllers.Sitemap(deps.Sitemaps.Blog, logg))
	}

	r.Route("/api/webhook", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(deps.SquareWebhook, logg))
		r.Post("/shippo", webhookcontrollers.ShippoWebhook(deps.ShippoWebhook, logg))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).Post("/google", controllers.AuthGoogle(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(forgotPolicy, rateStore, logg)).Post("/forgot-password", controllers.AuthForgotPassword(deps.PasswordReset, logg))
		r.Post("/reset-password", controllers.AuthResetPassword(deps.PasswordReset, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Sessions, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Sessions, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, rateStore, logg), idempotent).Post("/user", controllers.AuthRegister(deps.Auth, logg))
		r.With(requireAuth).Get("/user", controllers.UserProfile(deps.Users, logg))
		r.With(requireAuth).Patch("/user", controllers.UserUpdate(deps.Users, logg))

		// Catalog reads are public; a valid token only unlocks admin filters.
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/products", controllers.ProductList(deps.Products, logg))
			r.Get("/products/{idOrSlug}", controllers.ProductDetail(deps.Products, logg))
			r.Get("/products/{idOrSlug}/reviews", controllers.ReviewsForProduct(deps.Reviews, logg))
			r.Get("/brands", controllers.CatalogBrands(deps.Products, logg))
			r.Get("/flavors", controllers.CatalogFlavors(deps.Products, logg))
			r.Get("/nicotine-levels", controllers.CatalogNicotineLevels(deps.Products, logg))
			r.Get("/puff-counts", controllers.CatalogPuffCounts(deps.Products, logg))

			r.Get("/blog", controllers.BlogList(deps.Content, logg))
			r.Get("/blog/{slug}", controllers.BlogGet(deps.Content, logg))
			r.Get("/faq", controllers.FaqList(deps.Content, logg))
			r.Get("/seo", controllers.SeoLookup(deps.Content, logg))

			r.Get("/cart/{email}", controllers.CartGet(deps.Cart, logg))
			r.Post("/cart/{email}", controllers.CartReplace(deps.Cart, logg))
			r.Patch("/cart/{email}", controllers.CartPatch(deps.Cart, logg))
			r.Post("/shipping/rates", controllers.ShippingRates(deps.Shipping, logg))
			r.With(idempotent).Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/orders", controllers.OrdersList(deps.Orders, logg))
			r.Get("/orders/{id}", controllers.OrderDetail(deps.Orders, logg))

			r.With(idempotent).Post("/address", controllers.AddressCreate(deps.Address, logg))
			r.Get("/address", controllers.AddressList(deps.Address, logg))
			r.Post("/address/suggest", controllers.AddressSuggest(deps.Address, logg))
			r.Get("/address/resolve/{placeId}", controllers.AddressResolve(deps.Address, logg))
			r.Get("/address/{id}", controllers.AddressGet(deps.Address, logg))
			r.Patch("/address/{id}", controllers.AddressUpdate(deps.Address, logg))
			r.Delete("/address/{id}", controllers.AddressDelete(deps.Address, logg))

			r.With(idempotent).Post("/reviews", controllers.ReviewCreate(deps.Reviews, logg))
			r.Delete("/reviews/{id}", controllers.ReviewDelete(deps.Reviews, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Post("/products", controllers.ProductCreate(deps.Products, logg))
			r.Patch("/products/{id}", controllers.ProductUpdate(deps.Products, logg))
			r.Post("/blog", controllers.BlogCreate(deps.Content, logg))
			r.Patch("/blog/{slug}", controllers.BlogUpdate(deps.Content, logg))
			r.Get("/admin/orders", controllers.AdminOrdersList(deps.Orders, logg))
		})
	})

	return r
}

type rateCounter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// requestStore backs auth rate limits and idempotency keys.
type requestStore interface {
	rateCounter
	redis.IdempotencyStore
}

// rateLimitStore and idempotencyStore keep a missing store from becoming a
// non-nil interface, which would turn the middleware on without Redis.
func rateLimitStore(store requestStore) rateCounter {
	if store == nil {
		return nil
	}
	return store
}

func idempotencyStore(store requestStore) redis.IdempotencyStore {
	if store == nil {
		return nil
	}
	return store
}
