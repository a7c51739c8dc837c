package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"storefront-core/internal/config"
	"storefront-core/internal/importer"
	"storefront-core/internal/storage"
	"storefront-core/internal/telemetry"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to the product CSV sheet")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stderr, cfg.LogLevel).With(slog.String("component", "importer"))

	if err := run(cfg, logger, filePath); err != nil {
		logger.Error("import failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, filePath string) error {
	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, backend.Products, logger)

	start := time.Now()
	var res importer.Result
	// One transaction: a failing row leaves the catalog untouched.
	err = backend.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = imp.Run(ctx)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d products (%d created, %d updated) in %s\n",
		res.Total(), res.Created, res.Updated, time.Since(start).Truncate(time.Millisecond))
	return nil
}
