package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"storefront-core/internal/config"
	"storefront-core/internal/db"
	"storefront-core/internal/migrate"
	"storefront-core/internal/telemetry"
)

func main() {
	down := flag.Bool("down", false, "Roll every migration back instead of applying them")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel).With(slog.String("component", "migrate"))

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect db", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	dir := migrate.Up
	if *down {
		dir = migrate.Down
	}
	version, err := migrate.Run(ctx, pool, dir)
	if err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		pool.Close()
		os.Exit(1)
	}

	logger.Info("migrations applied", slog.Bool("down", *down), slog.Uint64("version", uint64(version)))
}
