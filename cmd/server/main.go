package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/dukerupert/bifrost/internal"
	"github.com/dukerupert/bifrost/internal/cache"
	"github.com/dukerupert/bifrost/internal/events"
	"github.com/dukerupert/bifrost/internal/giftcard"
	"github.com/dukerupert/bifrost/internal/handler"
	"github.com/dukerupert/bifrost/internal/handler/webhook"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/middleware"
	"github.com/dukerupert/bifrost/internal/postgres"
	"github.com/dukerupert/bifrost/internal/routes"
	"github.com/dukerupert/bifrost/internal/service"
	"github.com/dukerupert/bifrost/internal/shipping"
	"github.com/dukerupert/bifrost/internal/tax"
	"github.com/dukerupert/bifrost/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize error tracking
	sentryCleanup, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
		Debug:       cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer sentryCleanup()

	telemetry.Business = telemetry.NewBusinessMetrics("bifrost")

	// Run migrations
	logger.Info().Msg("running database migrations")
	if err := internal.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Initialize connection pool
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("database connection established")

	// Initialize cache
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer redisClient.Close()
	estimateCache := cache.NewRedisCache(redisClient)
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis connection established")

	// Initialize event bus. NATS is optional: without it events are
	// dropped and the gift-card extension hook is inert.
	var publisher events.Publisher = events.NopPublisher{}
	giftCardProviders := []giftcard.Provider{}

	quotes := postgres.NewQuoteStore(pool)
	orders := postgres.NewOrderStore(pool)
	stock := postgres.NewStockStore(pool)
	coupons := postgres.NewCouponStore(pool)
	cards := postgres.NewGiftCardStore(pool)
	regions := postgres.NewRegionStore(pool)

	giftCardProviders = append(giftCardProviders,
		giftcard.NewAccountProvider(cards, quotes),
		giftcard.NewCertificateProvider(cards, quotes),
	)

	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer nc.Close()
		publisher = events.NewNATSPublisher(nc, logger)
		giftCardProviders = append(giftCardProviders, giftcard.NewHookProvider(nc, quotes))
		logger.Info().Str("url", cfg.NATS.URL).Msg("nats connection established")
	}

	// Initialize tax calculator
	var taxCalc tax.Calculator
	if cfg.Tax.Rate > 0 {
		taxCalc, err = tax.NewPercentageCalculator(cfg.Tax.Rate, cfg.Tax.Name)
		if err != nil {
			return fmt.Errorf("tax calculator initialization failed: %w", err)
		}
	} else {
		taxCalc = tax.NewNoTaxCalculator()
	}

	// Initialize carriers
	carriers := []shipping.Carrier{
		shipping.NewFlatRateCarrier([]shipping.FlatRate{
			{MethodCode: "standard", MethodTitle: "Standard", Cost: 5.00},
			{MethodCode: "express", MethodTitle: "Express", Cost: 15.00},
		}),
		shipping.NewTableRateCarrier([]string{"US", "CA"}, []shipping.RateBracket{
			{MinSubtotalCents: 0, Cost: 10.00},
			{MinSubtotalCents: 5000, Cost: 5.00},
			{MinSubtotalCents: 10000, Cost: 0},
		}),
	}

	// Initialize services
	totals := service.NewTotalsCollector(carriers, taxCalc, logger)
	guard := service.NewCartGuard(quotes, orders, regions, logger)
	orderService := service.NewOrderService(guard, quotes, orders, stock, totals, publisher, logger)
	discountService := service.NewDiscountService(
		guard, quotes, coupons, giftcard.NewRegistry(giftCardProviders...),
		totals, estimateCache, publisher,
		service.DiscountConfig{IgnoredShippingAddressCoupons: cfg.Hook.IgnoredShippingAddressCoupons},
		logger,
	)
	estimator := service.NewShippingEstimator(quotes, regions, totals, estimateCache, service.ShippingConfig{
		PrefetchEnabled:       cfg.Hook.PrefetchShipping,
		PrefetchAddressFields: cfg.Hook.PrefetchAddressFields,
	}, logger)

	// Initialize HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	routes.RegisterWebhookRoutes(e, routes.WebhookDeps{
		CreateOrder: webhook.NewCreateOrderHandler(orderService, cfg.Hook.ReceivedURL, logger),
		Discount:    webhook.NewDiscountHandler(discountService, logger),
		Shipping:    webhook.NewShippingHandler(estimator, cfg.Version, logger),
		Auth:        hook.NewHMACAuthenticator(cfg.Hook.SigningSecret),
		Logger:      logger,
	})
	routes.RegisterOperationalRoutes(e)

	// Serve until interrupted
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
