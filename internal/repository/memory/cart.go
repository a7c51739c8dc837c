package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"storefront-core/internal/domain"
)

type cartRepo struct {
	s *Store
}

func (r *cartRepo) LockUser(ctx context.Context, userID string) error {
	if !r.s.inTx(ctx) {
		return fmt.Errorf("lock cart of %s: needs a transaction", userID)
	}
	return nil
}

func (r *cartRepo) ListByUser(ctx context.Context, userID string, _ bool) ([]domain.CartLine, error) {
	return r.list(ctx, func(l domain.CartLine) bool { return l.UserID == userID })
}

func (r *cartRepo) ListByKey(ctx context.Context, userID string, key domain.LineKey) ([]domain.CartLine, error) {
	return r.list(ctx, func(l domain.CartLine) bool { return l.UserID == userID && l.Key() == key })
}

func (r *cartRepo) Insert(ctx context.Context, line domain.CartLine) (*domain.CartLine, error) {
	var err error
	r.s.do(ctx, func(st *state) {
		if _, ok := st.products[line.ProductID]; !ok {
			err = domain.ErrNotFound
			return
		}
		now := r.s.now()
		line.ID = uuid.NewString()
		line.Size = domain.NormalizeSize(line.Size)
		line.CreatedAt = now
		line.UpdatedAt = now
		stored := line
		stored.Product = domain.Product{}
		st.lines = append(st.lines, stored)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *cartRepo) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	err := domain.ErrNotFound
	r.s.do(ctx, func(st *state) {
		for i := range st.lines {
			if st.lines[i].ID == id {
				st.lines[i].Quantity = quantity
				st.lines[i].UpdatedAt = r.s.now()
				err = nil
				return
			}
		}
	})
	return err
}

func (r *cartRepo) DeleteByIDs(ctx context.Context, userID string, ids []string) (int, error) {
	return r.delete(ctx, func(l domain.CartLine) bool { return l.UserID == userID && slices.Contains(ids, l.ID) })
}

func (r *cartRepo) DeleteByKey(ctx context.Context, userID string, key domain.LineKey) (int, error) {
	return r.delete(ctx, func(l domain.CartLine) bool { return l.UserID == userID && l.Key() == key })
}

func (r *cartRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return r.delete(ctx, func(l domain.CartLine) bool { return l.UserID == userID })
}

// list keeps insertion order, which matches (created_at, id) ordering for lines created by this store.
func (r *cartRepo) list(ctx context.Context, match func(domain.CartLine) bool) ([]domain.CartLine, error) {
	var out []domain.CartLine
	r.s.do(ctx, func(st *state) {
		for _, l := range st.lines {
			if !match(l) {
				continue
			}
			l.Product = st.products[l.ProductID]
			out = append(out, l)
		}
	})
	return out, nil
}

func (r *cartRepo) delete(ctx context.Context, match func(domain.CartLine) bool) (int, error) {
	var n int
	r.s.do(ctx, func(st *state) {
		before := len(st.lines)
		st.lines = slices.DeleteFunc(slices.Clone(st.lines), match)
		n = before - len(st.lines)
	})
	return n, nil
}
