package product

import (
	"context"
	"strings"

	"storefront-core/internal/domain"
)

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

// Filter narrows catalog listings. Zero values match everything.
type Filter struct {
	Category    string
	Brand       string
	InStockOnly bool
}

func (f Filter) match(p domain.Product) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Brand != "" && !strings.EqualFold(p.Brand, f.Brand) {
		return false
	}
	return !f.InStockOnly || p.InStock()
}

// Service is the read-only catalog behind the storefront product grid.
type Service struct {
	repo productRepo
}

func New(repo productRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filter Filter) ([]domain.Product, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	out := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if filter.match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	return p, nil
}
