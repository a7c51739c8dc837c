package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"storefront-core/internal/config"
	"storefront-core/internal/seed"
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
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel).With(slog.String("component", "seed"))

	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	var n int
	err = backend.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = seed.Apply(ctx, backend.Products)
		return err
	})
	if err != nil {
		logger.Error("seed apply", slog.Any("error", err))
		backend.Close()
		os.Exit(1)
	}

	logger.Info("seed applied", slog.Int("products", n), slog.String("driver", backend.Driver))
}
