package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-core/internal/domain"
	"storefront-core/internal/pricing"
	"storefront-core/internal/repository/memory"
)

var alice = domain.Principal{UserID: "alice", Roles: []string{domain.RoleCustomer}}

func newTestService(t *testing.T, products ...domain.Product) (*Service, *memory.Store, []domain.Product) {
	t.Helper()
	store := memory.NewStore()
	var created []domain.Product
	for _, p := range products {
		saved, err := store.Products().Upsert(context.Background(), p)
		require.NoError(t, err)
		created = append(created, *saved)
	}
	return New(store, store.Carts(), store.Products(), pricing.DefaultPolicy(), nil), store, created
}

func sneaker(stock int) domain.Product {
	return domain.Product{Name: "Runner", Brand: "Acme", Price: decimal.RequireFromString("100.00"), StockQuantity: stock, Sizes: []string{"9"}}
}

func TestService_DuplicateLinesCollapse(t *testing.T) {
	ctx := context.Background()
	svc, store, products := newTestService(t, sneaker(10))
	a := products[0]

	// Two raw rows for the same key, as left behind by legacy imports.
	_, err := store.Carts().Insert(ctx, domain.CartLine{UserID: alice.UserID, ProductID: a.ID, Quantity: 2, Size: "9"})
	require.NoError(t, err)
	_, err = store.Carts().Insert(ctx, domain.CartLine{UserID: alice.UserID, ProductID: a.ID, Quantity: 1, Size: "9"})
	require.NoError(t, err)

	agg, err := svc.Aggregated(ctx, alice)
	require.NoError(t, err)
	groups := agg.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].TotalQuantity)
	assert.Len(t, groups[0].LineIDs, 2)
	assert.True(t, groups[0].Subtotal.Equal(decimal.RequireFromString("300.00")))

	line, _, err := svc.SetQuantity(ctx, alice, a.ID, "9", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)

	lines, err := svc.Lines(ctx, alice)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, groups[0].LineIDs[0], lines[0].ID)

	totals, err := svc.Totals(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 5, totals.ItemCount)
	assert.Equal(t, "500.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "40.00", totals.Tax.StringFixed(2))
	assert.Equal(t, "540.00", totals.Total.StringFixed(2))
}

func TestService_AddMergesIntoExistingLine(t *testing.T) {
	ctx := context.Background()
	svc, _, products := newTestService(t, sneaker(10))
	a := products[0]

	first, err := svc.Add(ctx, alice, a.ID, "", 2)
	require.NoError(t, err)
	second, err := svc.Add(ctx, alice, a.ID, "no size", 3)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)
	assert.True(t, second.Subtotal().Equal(decimal.RequireFromString("500")))

	lines, err := svc.Lines(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestService_AddValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, products := newTestService(t, sneaker(3), sneaker(0))
	inStock, soldOut := products[0], products[1]

	_, err := svc.Add(ctx, domain.Principal{}, inStock.ID, "", 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Add(ctx, alice, inStock.ID, "", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Add(ctx, alice, "missing", "", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Add(ctx, alice, soldOut.ID, "", 1)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	_, err = svc.Add(ctx, alice, inStock.ID, "9", 2)
	require.NoError(t, err)
	_, err = svc.Add(ctx, alice, inStock.ID, "9", 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	lines, err := svc.Lines(ctx, alice)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestService_SetQuantity(t *testing.T) {
	ctx := context.Background()
	svc, _, products := newTestService(t, sneaker(4))
	a := products[0]

	_, _, err := svc.SetQuantity(ctx, alice, a.ID, "9", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	line, removed, err := svc.SetQuantity(ctx, alice, a.ID, "9", 0)
	require.NoError(t, err)
	assert.Nil(t, line)
	assert.False(t, removed, "nothing to remove in an empty cart")

	_, err = svc.Add(ctx, alice, a.ID, "9", 1)
	require.NoError(t, err)

	_, _, err = svc.SetQuantity(ctx, alice, a.ID, "9", 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	lines, err := svc.Lines(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, lines[0].Quantity)

	line, removed, err = svc.SetQuantity(ctx, alice, a.ID, "9", 0)
	require.NoError(t, err)
	assert.Nil(t, line)
	assert.True(t, removed)
	lines, err = svc.Lines(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestService_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	svc, _, products := newTestService(t, sneaker(10), sneaker(10))

	removed, err := svc.Remove(ctx, alice, products[0].ID, "9")
	require.NoError(t, err)
	assert.False(t, removed)

	for _, p := range products {
		_, err := svc.Add(ctx, alice, p.ID, "9", 1)
		require.NoError(t, err)
	}
	_, err = svc.Add(ctx, domain.Principal{UserID: "bob"}, products[0].ID, "9", 1)
	require.NoError(t, err)

	removed, err = svc.Remove(ctx, alice, products[0].ID, "9")
	require.NoError(t, err)
	assert.True(t, removed)

	n, err := svc.Clear(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	bobLines, err := svc.Lines(ctx, domain.Principal{UserID: "bob"})
	require.NoError(t, err)
	assert.Len(t, bobLines, 1)
}

func TestAggregation_RestartableFirstSeenOrder(t *testing.T) {
	a := domain.Product{ID: "a", Price: decimal.NewFromInt(10)}
	b := domain.Product{ID: "b", Price: decimal.NewFromInt(3)}
	agg := NewAggregation([]domain.CartLine{
		{ID: "1", ProductID: "b", Quantity: 1, Product: b},
		{ID: "2", ProductID: "a", Size: "M", Quantity: 2, Product: a},
		{ID: "3", ProductID: "b", Size: "No Size", Quantity: 4, Product: b},
	})

	first := agg.Groups()
	second := agg.Groups()
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "b", first[0].Product.ID)
	assert.Equal(t, 5, first[0].TotalQuantity)
	assert.Equal(t, []string{"1", "3"}, first[0].LineIDs)
	assert.True(t, first[0].Subtotal.Equal(decimal.NewFromInt(15)))

	count := 0
	for range agg.All() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

type failingRepo struct {
	cartRepo
	err error
}

func (f failingRepo) ListByUser(context.Context, string, bool) ([]domain.CartLine, error) {
	return nil, f.err
}

func TestService_WrapsStorageErrors(t *testing.T) {
	store := memory.NewStore()
	svc := New(store, failingRepo{err: errors.New("connection reset")}, store.Products(), pricing.DefaultPolicy(), nil)

	_, err := svc.Lines(context.Background(), alice)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
}

func TestService_ConcurrentAddsKeepEveryUnit(t *testing.T) {
	ctx := context.Background()
	svc, _, products := newTestService(t, sneaker(100))
	a := products[0]

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(ctx, alice, a.ID, "9", 2)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	lines, err := svc.Lines(ctx, alice)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2*workers, lines[0].Quantity)
}
