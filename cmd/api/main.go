package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/smokeshop-backend/api/controllers"
	"github.com/angelmondragon/smokeshop-backend/api/routes"
	"github.com/angelmondragon/smokeshop-backend/internal/address"
	"github.com/angelmondragon/smokeshop-backend/internal/auth"
	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/internal/checkout"
	"github.com/angelmondragon/smokeshop-backend/internal/content"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/internal/reviews"
	"github.com/angelmondragon/smokeshop-backend/internal/shipments"
	"github.com/angelmondragon/smokeshop-backend/internal/shipping"
	"github.com/angelmondragon/smokeshop-backend/internal/sitemap"
	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/internal/webhooks"
	shippowebhook "github.com/angelmondragon/smokeshop-backend/internal/webhooks/shippo"
	squarewebhook "github.com/angelmondragon/smokeshop-backend/internal/webhooks/square"
	"github.com/angelmondragon/smokeshop-backend/pkg/auth/session"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/email"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/maps"
	"github.com/angelmondragon/smokeshop-backend/pkg/metrics"
	"github.com/angelmondragon/smokeshop-backend/pkg/migrate"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/redis"
	"github.com/angelmondragon/smokeshop-backend/pkg/shippo"
	"github.com/angelmondragon/smokeshop-backend/pkg/square"
)

const shutdownTimeout = 15 * time.Second

type placesLookup interface {
	Autocomplete(ctx context.Context, req maps.AutocompleteRequest) ([]maps.AutocompleteSuggestion, error)
	ResolvePlace(ctx context.Context, placeID string) (*maps.PlaceDetails, error)
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register(prometheus.DefaultRegisterer)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		logg.Error(ctx, "failed to create square client", err)
		os.Exit(1)
	}

	shippoClient, err := shippo.NewClientFromConfig(cfg.Shippo)
	if err != nil {
		logg.Error(ctx, "failed to create shippo client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	productsRepo := products.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	addressRepo := address.NewRepository(gormDB)
	contentRepo := content.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	var google auth.GoogleVerifier
	if cfg.GoogleAuth.ClientID != "" {
		if google, err = auth.NewGoogleVerifier(cfg.GoogleAuth.ClientID); err != nil {
			logg.Error(ctx, "failed to create google verifier", err)
			os.Exit(1)
		}
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		GoogleVerifier: google,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	var passwordReset auth.PasswordResetService
	if mailer, mailErr := email.NewClient(cfg.Sendgrid); mailErr != nil {
		logg.Warn(logg.WithField(ctx, "reason", mailErr.Error()), "sendgrid not configured, password reset disabled")
	} else {
		passwordReset, err = auth.NewPasswordResetService(auth.PasswordResetParams{
			UserRepo:       usersRepo,
			Mailer:         mailer,
			App:            cfg.App,
			ResetConfig:    cfg.PasswordReset,
			PasswordConfig: cfg.Password,
			Logger:         logg,
		})
		if err != nil {
			logg.Error(ctx, "failed to create password reset service", err)
			os.Exit(1)
		}
	}

	usersService, err := users.NewService(usersRepo, cfg.Password)
	if err != nil {
		logg.Error(ctx, "failed to create users service", err)
		os.Exit(1)
	}

	productService, err := products.NewService(productsRepo, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create product service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, productsRepo, usersRepo)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	shippingService, err := shipping.NewService(shippoClient, redisClient, cfg.Shippo)
	if err != nil {
		logg.Error(ctx, "failed to create shipping service", err)
		os.Exit(1)
	}

	settler, err := checkout.NewSettler(dbClient, ordersRepo, cartRepo, outboxService)
	if err != nil {
		logg.Error(ctx, "failed to create payment settler", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:        dbClient,
		Orders:    ordersRepo,
		Products:  productsRepo,
		Carts:     cartRepo,
		Users:     usersRepo,
		Addresses: addressRepo,
		Rates:     shippingService,
		Payments:  squareClient,
		Settler:   settler,
		Outbox:    outboxService,
		Currency:  cfg.Square.Currency,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	reconciler, err := checkout.NewReconciler(ordersRepo, squareClient, settler, cfg.Checkout, logg)
	if err != nil {
		logg.Error(ctx, "failed to create reconciler", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	var places placesLookup
	if cfg.GoogleMaps.APIKey != "" {
		mapsClient, mapsErr := maps.NewClient(cfg.GoogleMaps.APIKey, maps.WithRegionCodes(cfg.GoogleMaps.RegionCodes...))
		if mapsErr != nil {
			logg.Error(ctx, "failed to create maps client", mapsErr)
			os.Exit(1)
		}
		places = mapsClient
	}
	addressService, err := address.NewService(addressRepo, places)
	if err != nil {
		logg.Error(ctx, "failed to create address service", err)
		os.Exit(1)
	}

	reviewsService, err := reviews.NewService(reviews.NewRepository(gormDB), productsRepo, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create reviews service", err)
		os.Exit(1)
	}

	contentService, err := content.NewService(contentRepo, productsRepo, cfg.App)
	if err != nil {
		logg.Error(ctx, "failed to create content service", err)
		os.Exit(1)
	}

	sitemaps, err := sitemap.NewBuilder(productsRepo, contentRepo, cfg.App.BaseURL())
	if err != nil {
		logg.Error(ctx, "failed to create sitemap builder", err)
		os.Exit(1)
	}

	squareGuard, err := webhooks.NewIdempotencyGuard(redisClient, webhooks.DefaultDedupeTTL, "square")
	if err != nil {
		logg.Error(ctx, "failed to create square webhook guard", err)
		os.Exit(1)
	}
	squareWebhook, err := squarewebhook.NewService(squarewebhook.ServiceParams{
		Parser:   squareClient,
		Payments: reconciler,
		Guard:    squareGuard,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create square webhook service", err)
		os.Exit(1)
	}

	shipmentService, err := shipments.NewService(dbClient, shipments.NewRepository(gormDB), ordersRepo, shippoClient, outboxService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create shipment service", err)
		os.Exit(1)
	}
	shippoGuard, err := webhooks.NewIdempotencyGuard(redisClient, webhooks.DefaultDedupeTTL, "shippo")
	if err != nil {
		logg.Error(ctx, "failed to create shippo webhook guard", err)
		os.Exit(1)
	}
	shippoWebhook, err := shippowebhook.NewService(cfg.Shippo.WebhookToken, shipmentService, shippoGuard, logg)
	if err != nil {
		logg.Error(ctx, "failed to create shippo webhook service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		Pingers:       map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
		Redis:         redisClient,
		Sessions:      sessionManager,
		Auth:          authService,
		PasswordReset: passwordReset,
		Users:         usersService,
		Products:      productService,
		Cart:          cartService,
		Shipping:      shippingService,
		Checkout:      checkoutService,
		Orders:        ordersService,
		Address:       addressService,
		Reviews:       reviewsService,
		Content:       contentService,
		Sitemaps:      sitemaps,
		SquareWebhook: squareWebhook,
		ShippoWebhook: shippoWebhook,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "api server shutdown failed", err)
		}
	}
}
