package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-core/internal/domain"
)

type orderRepo struct {
	s *Store
}

func (r *orderRepo) Create(ctx context.Context, o domain.Order) (*domain.Order, error) {
	var err error
	r.s.do(ctx, func(st *state) {
		for _, other := range st.orders {
			if other.ID == o.ID || other.OrderNumber == o.OrderNumber {
				err = domain.ErrAlreadyExists
				return
			}
		}
		now := r.s.now()
		o.CreatedAt = now
		o.UpdatedAt = now
		o.TotalAmount = o.TotalAmount.Round(2)
		items := make([]domain.OrderItem, 0, len(o.Items))
		for _, it := range o.Items {
			if _, ok := st.products[it.ProductID]; !ok {
				err = fmt.Errorf("order item references unknown product %s", it.ProductID)
				return
			}
			it.ID = uuid.NewString()
			it.OrderID = o.ID
			it.CreatedAt = now
			items = append(items, it)
		}
		o.Items = items
		st.orders[o.ID] = o
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) Get(ctx context.Context, id string, _ bool) (*domain.Order, error) {
	var (
		o  domain.Order
		ok bool
	)
	r.s.do(ctx, func(st *state) {
		o, ok = st.orders[id]
	})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (r *orderRepo) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []domain.Order
	r.s.do(ctx, func(st *state) {
		for _, o := range st.orders {
			if filter.UserID != "" && o.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && o.Status != filter.Status {
				continue
			}
			if filter.CheckoutOnly && !o.Checkout {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(o.OrderNumber), search) &&
				!strings.Contains(strings.ToLower(o.Notes), search) {
				continue
			}
			out = append(out, o)
		}
	})
	slices.SortFunc(out, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, entry string) (*domain.Order, error) {
	var (
		o   domain.Order
		err error
	)
	r.s.do(ctx, func(st *state) {
		var ok bool
		o, ok = st.orders[id]
		if !ok || o.Status != from {
			err = fmt.Errorf("%w: order %s is no longer %s", domain.ErrInvalidTransition, id, from)
			return
		}
		o.Status = to
		o.Notes = joinNote(o.Notes, entry)
		o.UpdatedAt = r.s.now()
		st.orders[id] = o
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) AppendNote(ctx context.Context, id, entry string) error {
	return r.update(ctx, id, func(o *domain.Order) { o.Notes = joinNote(o.Notes, entry) })
}

func (r *orderRepo) SetPaymentSession(ctx context.Context, id, sessionID string) error {
	return r.update(ctx, id, func(o *domain.Order) { o.PaymentSessionID = &sessionID })
}

func (r *orderRepo) SetStockReserved(ctx context.Context, id string, reserved bool) error {
	return r.update(ctx, id, func(o *domain.Order) { o.StockReserved = reserved })
}

func (r *orderRepo) Statistics(ctx context.Context, since time.Time) (domain.OrderStatistics, error) {
	stats := domain.NewOrderStatistics()
	revenueOrders := 0
	r.s.do(ctx, func(st *state) {
		for _, o := range st.orders {
			stats.TotalOrders++
			stats.OrdersByStatus[o.Status]++
			if !o.Status.Booked() {
				continue
			}
			revenueOrders++
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
			if !o.CreatedAt.Before(since) {
				stats.RecentRevenue30Days = stats.RecentRevenue30Days.Add(o.TotalAmount)
			}
		}
	})
	if revenueOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(revenueOrders))).Round(2)
	}
	stats.Complete()
	return stats, nil
}

func (r *orderRepo) update(ctx context.Context, id string, fn func(o *domain.Order)) error {
	err := domain.ErrNotFound
	r.s.do(ctx, func(st *state) {
		o, ok := st.orders[id]
		if !ok {
			return
		}
		fn(&o)
		o.UpdatedAt = r.s.now()
		st.orders[id] = o
		err = nil
	})
	return err
}

func joinNote(notes, entry string) string {
	switch {
	case entry == "":
		return notes
	case notes == "":
		return entry
	default:
		return notes + "\n" + entry
	}
}
