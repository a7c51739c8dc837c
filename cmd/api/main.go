package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storefront-core/internal/auth"
	"storefront-core/internal/cache"
	"storefront-core/internal/config"
	"storefront-core/internal/httpserver"
	"storefront-core/internal/payment/stripe"
	cartsvc "storefront-core/internal/service/cart"
	ordersvc "storefront-core/internal/service/order"
	paymentsvc "storefront-core/internal/service/payment"
	productsvc "storefront-core/internal/service/product"
	"storefront-core/internal/storage"
	"storefront-core/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel).With(slog.String("component", "api"))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("tracer shutdown", slog.Any("error", err))
		}
	}()

	policy, err := cfg.PricingPolicy()
	if err != nil {
		return err
	}

	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	validator := auth.NewJWTValidator(cfg.JWTSecret)
	if validator == nil {
		logger.Warn("JWT_SECRET is empty, every authenticated request will be rejected")
	}

	carts := cartsvc.New(backend.Tx, backend.Carts, backend.Products, policy, logger)
	orders := ordersvc.New(ordersvc.Deps{
		Tx:       backend.Tx,
		Carts:    backend.Carts,
		Orders:   backend.Orders,
		Products: backend.Products,
		Outbox:   backend.Outbox,
		Topic:    cfg.Kafka.Topic,
		Logger:   logger,
	})

	paymentDeps := paymentsvc.Deps{
		Tx:       backend.Tx,
		Orders:   orders,
		Sessions: backend.Orders,
		Carts:    backend.Carts,
		Provider: stripe.New(stripe.Config{
			SecretKey:     cfg.Payment.StripeSecretKey,
			WebhookSecret: cfg.Payment.StripeWebhookSecret,
			SuccessURL:    cfg.Payment.SuccessURL,
			CancelURL:     cfg.Payment.CancelURL,
			Timeout:       cfg.Payment.Timeout,
		}),
		Policy: policy,
		Logger: logger,
	}
	if cfg.Redis.Addr != "" {
		rdb := cache.NewRedisClient(cfg.Redis.Addr)
		defer rdb.Close()
		deduper := cache.NewEventDeduper(rdb, cfg.Tracing.ServiceName, cfg.Redis.EventTTL)
		if err := deduper.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, webhook dedupe relies on order status only", slog.Any("error", err))
		}
		paymentDeps.Deduper = deduper
	}
	payments := paymentsvc.New(paymentDeps)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		ProductSvc:        productsvc.New(backend.Products),
		CartSvc:           carts,
		OrderSvc:          orders,
		PaymentSvc:        payments,
		Auth:              validator,
		Store:             backend,
		Pricing:           policy,
		CORSOrigins:       cfg.CORSOriginList(),
		CheckoutPerMinute: cfg.Checkout.RatePerMinute,
	})
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-serverErr:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
