// Package storage opens the repositories selected by STORE_DRIVER.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"storefront-core/internal/config"
	"storefront-core/internal/db"
	"storefront-core/internal/repository/cart"
	"storefront-core/internal/repository/memory"
	"storefront-core/internal/repository/order"
	"storefront-core/internal/repository/outbox"
	"storefront-core/internal/repository/product"
)

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Backend bundles one consistent set of repositories with the transaction runner that spans them.
type Backend struct {
	Driver   string
	Tx       TxRunner
	Products product.Repository
	Carts    cart.Repository
	Orders   order.Repository
	Outbox   outbox.Repository
	pinger   func(ctx context.Context) error
	close    func()
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.pinger(ctx)
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects to Postgres, or builds an in-process store when the driver is "memory".
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on exit")
		return Memory(memory.NewStore()), nil
	case "postgres", "":
		pool, err := db.Connect(ctx, cfg.DBConnString, cfg.PoolOptions())
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		return &Backend{
			Driver:   "postgres",
			Tx:       db.NewTxManager(pool),
			Products: product.NewPostgres(pool, logger),
			Carts:    cart.NewPostgres(pool, logger),
			Orders:   order.NewPostgres(pool, logger),
			Outbox:   outbox.NewPostgres(pool),
			pinger:   pool.Ping,
			close:    pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// Memory wraps an in-process store.
func Memory(s *memory.Store) *Backend {
	return &Backend{
		Driver:   "memory",
		Tx:       s,
		Products: s.Products(),
		Carts:    s.Carts(),
		Orders:   s.Orders(),
		Outbox:   s.Outbox(),
		pinger:   s.Ping,
	}
}
