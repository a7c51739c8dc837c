package product

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-core/internal/db"
	"storefront-core/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &postgresRepo{pool: pool, logger: logger.With(slog.String("repo", "product"))}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	q := `SELECT ` + Columns + ` FROM products p ORDER BY p.created_at DESC`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q)
	if err != nil {
		r.logger.ErrorContext(ctx, "list products", slog.Any("error", err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		dest := NewScanDest(&p)
		if err := rows.Scan(dest.Targets()...); err != nil {
			return nil, err
		}
		if err := dest.Finish(); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "list products rows", slog.Any("error", err))
		return nil, err
	}
	r.logger.DebugContext(ctx, "listed products", slog.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + Columns + ` FROM products p WHERE p.id::text = $1`
	return r.scanOne(ctx, "get", id, db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	sizes := product.Sizes
	if sizes == nil {
		sizes = []string{}
	}
	q := `
WITH p AS (
	INSERT INTO products (id, sku, name, brand, description, category, image_url, sizes, price, stock_quantity)
	VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9::numeric, $10)
	ON CONFLICT (id) DO UPDATE SET
	    sku = EXCLUDED.sku,
	    name = EXCLUDED.name,
	    brand = EXCLUDED.brand,
	    description = EXCLUDED.description,
	    category = EXCLUDED.category,
	    image_url = EXCLUDED.image_url,
	    sizes = EXCLUDED.sizes,
	    price = EXCLUDED.price,
	    stock_quantity = EXCLUDED.stock_quantity,
	    updated_at = now()
	RETURNING *
)
SELECT ` + Columns + ` FROM p`
	row := db.Conn(ctx, r.pool).QueryRow(ctx, q,
		product.ID,
		product.SKU,
		product.Name,
		product.Brand,
		product.Description,
		product.Category,
		product.ImageURL,
		sizes,
		product.Price.StringFixed(2),
		product.StockQuantity,
	)
	res, err := r.scanOne(ctx, "upsert", product.ID, row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	r.logger.InfoContext(ctx, "upserted product", slog.String("id", res.ID), slog.String("sku", res.SKU))
	return res, nil
}

func (r *postgresRepo) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	q := `
WITH p AS (
	UPDATE products
	SET stock_quantity = stock_quantity + $2, updated_at = now()
	WHERE id::text = $1 AND stock_quantity + $2 >= 0
	RETURNING *
)
SELECT ` + Columns + ` FROM p`
	conn := db.Conn(ctx, r.pool)
	res, err := r.scanOne(ctx, "adjust stock", id, conn.QueryRow(ctx, q, id, delta))
	if errors.Is(err, domain.ErrNotFound) {
		var exists bool
		if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id::text = $1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			r.logger.WarnContext(ctx, "stock adjustment rejected", slog.String("id", id), slog.Int("delta", delta))
			return nil, domain.ErrInsufficientStock
		}
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "adjusted stock", slog.String("id", id), slog.Int("delta", delta), slog.Int("stock", res.StockQuantity))
	return res, nil
}

func (r *postgresRepo) scanOne(ctx context.Context, op, id string, row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	dest := NewScanDest(&p)
	if err := row.Scan(dest.Targets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.DebugContext(ctx, op+": not found", slog.String("id", id))
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, op, slog.String("id", id), slog.Any("error", err))
		return nil, err
	}
	if err := dest.Finish(); err != nil {
		return nil, err
	}
	return &p, nil
}
