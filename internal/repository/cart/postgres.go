package cart

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-core/internal/db"
	"storefront-core/internal/domain"
	"storefront-core/internal/repository/product"
)

const lineColumns = `c.id::text, c.user_id, c.product_id::text, c.quantity, c.size, c.created_at, c.updated_at`

// sizeKey is domain.NormalizeSize in SQL, so rows written before sizes were normalized still match their key.
func sizeKey(col string) string {
	trimmed := `btrim(` + col + `, E' \t\n\r')`
	return `CASE WHEN lower(` + trimmed + `) IN ('', 'no size', 'no-size', 'nosize', 'no_size') THEN '' ELSE ` + trimmed + ` END`
}

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &postgresRepo{pool: pool, logger: logger.With(slog.String("repo", "cart"))}
}

func (r *postgresRepo) LockUser(ctx context.Context, userID string) error {
	if !db.InTx(ctx) {
		return fmt.Errorf("lock cart of %s: advisory lock needs a transaction", userID)
	}
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID); err != nil {
		r.logger.ErrorContext(ctx, "lock user", slog.String("user_id", userID), slog.Any("error", err))
		return err
	}
	return nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, forUpdate bool) ([]domain.CartLine, error) {
	q := `
SELECT ` + lineColumns + `, ` + product.Columns + `
FROM cart_items c
JOIN products p ON p.id = c.product_id
WHERE c.user_id = $1
ORDER BY c.created_at, c.id`
	if forUpdate {
		q += ` FOR UPDATE OF c`
	}
	return r.query(ctx, "list by user", q, userID)
}

func (r *postgresRepo) ListByKey(ctx context.Context, userID string, key domain.LineKey) ([]domain.CartLine, error) {
	q := `
SELECT ` + lineColumns + `, ` + product.Columns + `
FROM cart_items c
JOIN products p ON p.id = c.product_id
WHERE c.user_id = $1 AND c.product_id::text = $2 AND ` + sizeKey("c.size") + ` = $3
ORDER BY c.created_at, c.id
FOR UPDATE OF c`
	return r.query(ctx, "list by key", q, userID, key.ProductID, key.Size)
}

func (r *postgresRepo) Insert(ctx context.Context, line domain.CartLine) (*domain.CartLine, error) {
	const q = `
INSERT INTO cart_items AS c (user_id, product_id, quantity, size)
VALUES ($1, $2::uuid, $3, $4)
RETURNING ` + lineColumns
	var out domain.CartLine
	size := domain.NormalizeSize(line.Size)
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, q, line.UserID, line.ProductID, line.Quantity, size).Scan(
		&out.ID,
		&out.UserID,
		&out.ProductID,
		&out.Quantity,
		&out.Size,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		r.logger.ErrorContext(ctx, "insert line", slog.String("user_id", line.UserID), slog.Any("error", err))
		return nil, err
	}
	out.Product = line.Product
	return &out, nil
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE cart_items SET quantity = $2, updated_at = clock_timestamp() WHERE id::text = $1`, id, quantity)
	if err != nil {
		r.logger.ErrorContext(ctx, "update quantity", slog.String("id", id), slog.Any("error", err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteByIDs(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.exec(ctx, "delete by ids",
		`DELETE FROM cart_items WHERE user_id = $1 AND id::text = ANY($2)`, userID, ids)
}

func (r *postgresRepo) DeleteByKey(ctx context.Context, userID string, key domain.LineKey) (int, error) {
	return r.exec(ctx, "delete by key",
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id::text = $2 AND `+sizeKey("size")+` = $3`, userID, key.ProductID, key.Size)
}

func (r *postgresRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return r.exec(ctx, "delete by user", `DELETE FROM cart_items WHERE user_id = $1`, userID)
}

func (r *postgresRepo) exec(ctx context.Context, op, q string, args ...any) (int, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, op, slog.Any("error", err))
		return 0, err
	}
	n := int(tag.RowsAffected())
	r.logger.DebugContext(ctx, op, slog.Int("rows", n))
	return n, nil
}

func (r *postgresRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.CartLine, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, op, slog.Any("error", err))
		return nil, err
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, op+" rows", slog.Any("error", err))
		return nil, err
	}
	return lines, nil
}

func scanLine(row pgx.Row) (domain.CartLine, error) {
	var line domain.CartLine
	dest := product.NewScanDest(&line.Product)
	targets := append([]any{
		&line.ID,
		&line.UserID,
		&line.ProductID,
		&line.Quantity,
		&line.Size,
		&line.CreatedAt,
		&line.UpdatedAt,
	}, dest.Targets()...)
	if err := row.Scan(targets...); err != nil {
		return domain.CartLine{}, err
	}
	if err := dest.Finish(); err != nil {
		return domain.CartLine{}, err
	}
	return line, nil
}
