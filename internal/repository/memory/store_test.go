package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-core/internal/domain"
)

func TestStore_RunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p, err := s.Products().Upsert(ctx, domain.Product{Name: "Tee", Price: decimal.NewFromInt(100), StockQuantity: 3})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.Products().AdjustStock(ctx, p.ID, -2); err != nil {
			return err
		}
		if _, err := s.Carts().Insert(ctx, domain.CartLine{UserID: "u1", ProductID: p.ID, Quantity: 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)

	lines, err := s.Carts().ListByUser(ctx, "u1", false)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestStore_NestedTxJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	calls := 0
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Carts().LockUser(ctx, "u1"))
		return s.RunInTx(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Error(t, s.Carts().LockUser(ctx, "u1"))
}

func TestStore_AdjustStockNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p, err := s.Products().Upsert(ctx, domain.Product{Name: "Cap", Price: decimal.NewFromInt(50), StockQuantity: 1})
	require.NoError(t, err)

	_, err = s.Products().AdjustStock(ctx, p.ID, -2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	_, err = s.Products().AdjustStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CartLinesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p, err := s.Products().Upsert(ctx, domain.Product{Name: "Sock", Price: decimal.NewFromInt(20), StockQuantity: 9})
	require.NoError(t, err)

	first, err := s.Carts().Insert(ctx, domain.CartLine{UserID: "u1", ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = s.Carts().Insert(ctx, domain.CartLine{UserID: "u1", ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	lines, err := s.Carts().ListByKey(ctx, "u1", domain.NewLineKey(p.ID, "no size"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, first.ID, lines[0].ID)
	assert.Equal(t, "Sock", lines[0].Product.Name)

	_, err = s.Carts().Insert(ctx, domain.CartLine{UserID: "u1", ProductID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_InsertNormalizesSize(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p, err := s.Products().Upsert(ctx, domain.Product{Name: "Boot", Price: decimal.NewFromInt(90), StockQuantity: 4})
	require.NoError(t, err)

	line, err := s.Carts().Insert(ctx, domain.CartLine{UserID: "u1", ProductID: p.ID, Quantity: 1, Size: " 42 "})
	require.NoError(t, err)
	assert.Equal(t, "42", line.Size)
	_, err = s.Carts().Insert(ctx, domain.CartLine{UserID: "u1", ProductID: p.ID, Quantity: 1, Size: "No-Size"})
	require.NoError(t, err)

	all, err := s.Carts().ListByUser(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "42", all[0].Size)
	assert.Equal(t, "", all[1].Size)

	n, err := s.Carts().DeleteByKey(ctx, "u1", domain.NewLineKey(p.ID, "42"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_OrderStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	o, err := s.Orders().Create(ctx, domain.Order{
		ID: "o1", UserID: "u1", OrderNumber: "ORD-1", Status: domain.OrderPending, TotalAmount: decimal.NewFromInt(54),
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, o.CreatedAt)

	_, err = s.Orders().UpdateStatus(ctx, "o1", domain.OrderPending, domain.OrderPaid, "[2026-03-01 12:00] paid")
	require.NoError(t, err)
	_, err = s.Orders().UpdateStatus(ctx, "o1", domain.OrderPending, domain.OrderCancelled, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stats, err := s.Orders().Statistics(ctx, fixed.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PaidOrders)
	assert.True(t, stats.RecentRevenue30Days.Equal(decimal.NewFromInt(54)))
}
