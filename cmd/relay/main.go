package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storefront-core/internal/config"
	"storefront-core/internal/db"
	"storefront-core/internal/kafka"
	"storefront-core/internal/outbox"
	outboxrepo "storefront-core/internal/repository/outbox"
	"storefront-core/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel).With(slog.String("component", "relay"))

	if err := run(cfg, logger); err != nil {
		logger.Error("relay stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The outbox lives next to the orders, so the relay only makes sense against Postgres.
	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.PoolOptions())
	if err != nil {
		return err
	}
	defer pool.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Acks:    cfg.Kafka.Acks,
	}, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	relay := outbox.NewRelay(
		db.NewTxManager(pool),
		outboxrepo.NewPostgres(pool),
		producer,
		logger,
		cfg.Outbox.BatchSize,
		cfg.Outbox.PollInterval,
	)
	return relay.Run(ctx)
}
