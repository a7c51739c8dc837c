package cart

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"storefront-core/internal/db"
	"storefront-core/internal/domain"
	"storefront-core/internal/migrate"
	"storefront-core/internal/repository/product"
)

func TestPostgres_LinesLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	p, err := product.NewPostgres(pool, nil).Upsert(ctx, domain.Product{
		Name:          "Hoodie",
		Price:         decimal.RequireFromString("100.00"),
		StockQuantity: 10,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	repo := NewPostgres(pool, nil)
	key := domain.NewLineKey(p.ID, "M")

	first, err := repo.Insert(ctx, domain.CartLine{UserID: "u1", ProductID: p.ID, Quantity: 2, Size: key.Size})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// Legacy duplicate row for the same key.
	if _, err := repo.Insert(ctx, domain.CartLine{UserID: "u1", ProductID: p.ID, Quantity: 1, Size: key.Size}); err != nil {
		t.Fatalf("Insert duplicate: %v", err)
	}
	if _, err := repo.Insert(ctx, domain.CartLine{UserID: "u2", ProductID: p.ID, Quantity: 1}); err != nil {
		t.Fatalf("Insert other user: %v", err)
	}

	lines, err := repo.ListByKey(ctx, "u1", key)
	if err != nil {
		t.Fatalf("ListByKey: %v", err)
	}
	if len(lines) != 2 || lines[0].ID != first.ID {
		t.Fatalf("expected oldest row first, got %+v", lines)
	}
	if !lines[0].Product.Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected product snapshot, got %+v", lines[0].Product)
	}

	if err := repo.UpdateQuantity(ctx, first.ID, 5); err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	n, err := repo.DeleteByIDs(ctx, "u1", []string{lines[1].ID})
	if err != nil || n != 1 {
		t.Fatalf("DeleteByIDs: n=%d err=%v", n, err)
	}

	all, err := repo.ListByUser(ctx, "u1", false)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(all) != 1 || all[0].Quantity != 5 {
		t.Fatalf("unexpected lines %+v", all)
	}

	n, err = repo.DeleteByUser(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("DeleteByUser: n=%d err=%v", n, err)
	}
	n, err = repo.DeleteByKey(ctx, "u2", domain.NewLineKey(p.ID, "no-size"))
	if err != nil || n != 1 {
		t.Fatalf("DeleteByKey: n=%d err=%v", n, err)
	}
}

func TestPostgres_LockUserNeedsTx(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	repo := NewPostgres(pool, nil)
	if err := repo.LockUser(ctx, "u1"); err == nil {
		t.Fatalf("expected error outside a transaction")
	}
	err := db.NewTxManager(pool).RunInTx(ctx, func(ctx context.Context) error {
		return repo.LockUser(ctx, "u1")
	})
	if err != nil {
		t.Fatalf("LockUser in tx: %v", err)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE order_items, orders, cart_items, products, outbox RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func TestPostgres_KeyMatchesUnnormalizedRows(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	p, err := product.NewPostgres(pool, nil).Upsert(ctx, domain.Product{
		Name:          "Scarf",
		Price:         decimal.RequireFromString("40.00"),
		StockQuantity: 10,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	// Rows written by older releases kept the size exactly as submitted.
	if _, err := pool.Exec(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity, size) VALUES ('u1', $1::uuid, 1, 'No Size'), ('u1', $1::uuid, 2, ' 9 ')`,
		p.ID); err != nil {
		t.Fatalf("seed legacy rows: %v", err)
	}

	repo := NewPostgres(pool, nil)
	inserted, err := repo.Insert(ctx, domain.CartLine{UserID: "u1", ProductID: p.ID, Quantity: 3, Size: "no_size"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if inserted.Size != "" {
		t.Fatalf("expected stored size to be normalized, got %q", inserted.Size)
	}

	noSize, err := repo.ListByKey(ctx, "u1", domain.NewLineKey(p.ID, ""))
	if err != nil {
		t.Fatalf("ListByKey: %v", err)
	}
	if len(noSize) != 2 {
		t.Fatalf("expected legacy and new no-size rows, got %+v", noSize)
	}

	sized, err := repo.ListByKey(ctx, "u1", domain.NewLineKey(p.ID, "9"))
	if err != nil {
		t.Fatalf("ListByKey sized: %v", err)
	}
	if len(sized) != 1 || sized[0].Quantity != 2 {
		t.Fatalf("expected the padded legacy row, got %+v", sized)
	}

	n, err := repo.DeleteByKey(ctx, "u1", domain.NewLineKey(p.ID, "NOSIZE"))
	if err != nil || n != 2 {
		t.Fatalf("DeleteByKey: n=%d err=%v", n, err)
	}
	n, err = repo.DeleteByKey(ctx, "u1", domain.NewLineKey(p.ID, "9"))
	if err != nil || n != 1 {
		t.Fatalf("DeleteByKey sized: n=%d err=%v", n, err)
	}
}
