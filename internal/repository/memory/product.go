package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"storefront-core/internal/domain"
)

type productRepo struct {
	s *Store
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var (
		p  domain.Product
		ok bool
	)
	r.s.do(ctx, func(st *state) {
		p, ok = st.products[id]
	})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *productRepo) List(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	r.s.do(ctx, func(st *state) {
		for _, p := range st.products {
			out = append(out, p)
		}
	})
	slices.SortFunc(out, func(a, b domain.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *productRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	var err error
	r.s.do(ctx, func(st *state) {
		if p.SKU != "" {
			for id, other := range st.products {
				if other.SKU == p.SKU && id != p.ID {
					err = domain.ErrAlreadyExists
					return
				}
			}
		}
		now := r.s.now()
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if existing, ok := st.products[p.ID]; ok {
			p.CreatedAt = existing.CreatedAt
		} else {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		if p.Sizes == nil {
			p.Sizes = []string{}
		}
		p.Price = p.Price.Round(2)
		st.products[p.ID] = p
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	var (
		p   domain.Product
		err error
	)
	r.s.do(ctx, func(st *state) {
		var ok bool
		p, ok = st.products[id]
		if !ok {
			err = domain.ErrNotFound
			return
		}
		if p.StockQuantity+delta < 0 {
			err = domain.ErrInsufficientStock
			return
		}
		p.StockQuantity += delta
		p.UpdatedAt = r.s.now()
		st.products[id] = p
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
