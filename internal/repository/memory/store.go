// Package memory keeps every repository in process memory. It backs STORE_DRIVER=memory and the service
// tests. Transactions are serialized by one mutex and roll back by restoring a snapshot.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"storefront-core/internal/domain"
	"storefront-core/internal/repository/cart"
	"storefront-core/internal/repository/order"
	"storefront-core/internal/repository/outbox"
	"storefront-core/internal/repository/product"
)

type state struct {
	products  map[string]domain.Product
	lines     []domain.CartLine
	orders    map[string]domain.Order
	outbox    []domain.OutboxMessage
	outboxSeq int64
}

func (s state) clone() state {
	return state{
		products:  maps.Clone(s.products),
		lines:     slices.Clone(s.lines),
		orders:    maps.Clone(s.orders),
		outbox:    slices.Clone(s.outbox),
		outboxSeq: s.outboxSeq,
	}
}

type Store struct {
	mu    sync.Mutex
	state state
	now   func() time.Time
}

type txKey struct{}

func NewStore() *Store {
	return &Store{
		state: state{
			products: make(map[string]domain.Product),
			orders:   make(map[string]domain.Order),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// RunInTx runs fn with exclusive access to the store. Any error restores the state seen before fn.
// Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Products() product.Repository { return &productRepo{s: s} }
func (s *Store) Carts() cart.Repository       { return &cartRepo{s: s} }
func (s *Store) Orders() order.Repository     { return &orderRepo{s: s} }
func (s *Store) Outbox() outbox.Repository    { return &outboxRepo{s: s} }

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// do runs fn under the store lock unless ctx already holds it through RunInTx.
func (s *Store) do(ctx context.Context, fn func(st *state)) {
	if s.inTx(ctx) {
		fn(&s.state)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}
