package cart

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"storefront-core/internal/domain"
	"storefront-core/internal/pricing"
)

var tracer = otel.Tracer("storefront-core/service/cart")

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type cartRepo interface {
	LockUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string, forUpdate bool) ([]domain.CartLine, error)
	ListByKey(ctx context.Context, userID string, key domain.LineKey) ([]domain.CartLine, error)
	Insert(ctx context.Context, line domain.CartLine) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	DeleteByIDs(ctx context.Context, userID string, ids []string) (int, error)
	DeleteByKey(ctx context.Context, userID string, key domain.LineKey) (int, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// Service is the cart aggregator. Every mutation runs in one transaction holding the user's cart lock.
type Service struct {
	tx       txRunner
	repo     cartRepo
	products productRepo
	policy   pricing.Policy
	logger   *slog.Logger
}

func New(tx txRunner, repo cartRepo, products productRepo, policy pricing.Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		products: products,
		policy:   policy,
		logger:   logger.With(slog.String("service", "cart")),
	}
}

// Add puts qty units of a product into the cart, merging into the oldest line for the same key.
func (s *Service) Add(ctx context.Context, p domain.Principal, productID, size string, qty int) (*domain.CartLine, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	key := domain.NewLineKey(productID, size)
	if key.ProductID == "" {
		return nil, fmt.Errorf("%w: product id required", domain.ErrInvalidInput)
	}
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidInput)
	}

	ctx, span := tracer.Start(ctx, "cart.Add")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", key.ProductID), attribute.Int("quantity", qty))

	var result *domain.CartLine
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockUser(ctx, p.UserID); err != nil {
			return err
		}
		product, err := s.products.GetByID(ctx, key.ProductID)
		if err != nil {
			return err
		}
		if !product.InStock() {
			return fmt.Errorf("%w: %s", domain.ErrOutOfStock, product.Name)
		}

		lines, err := s.repo.ListByKey(ctx, p.UserID, key)
		if err != nil {
			return err
		}
		existing := 0
		for _, l := range lines {
			existing += l.Quantity
		}
		if existing+qty > product.StockQuantity {
			return fmt.Errorf("%w: %d of %s requested, %d available",
				domain.ErrInsufficientStock, existing+qty, product.Name, product.StockQuantity)
		}

		if len(lines) == 0 {
			result, err = s.repo.Insert(ctx, domain.CartLine{
				UserID:    p.UserID,
				ProductID: key.ProductID,
				Quantity:  qty,
				Size:      key.Size,
				Product:   *product,
			})
			return err
		}

		line := lines[0]
		line.Quantity += qty
		if err := s.repo.UpdateQuantity(ctx, line.ID, line.Quantity); err != nil {
			return err
		}
		line.Product = *product
		result = &line
		return nil
	})
	if err != nil {
		return nil, domain.StorageFailure(err)
	}

	s.logger.InfoContext(ctx, "cart item added",
		slog.String("user_id", p.UserID),
		slog.String("product_id", key.ProductID),
		slog.String("size", key.Size),
		slog.Int("quantity", result.Quantity),
	)
	return result, nil
}

// Aggregated returns the cart grouped by (product, size).
func (s *Service) Aggregated(ctx context.Context, p domain.Principal) (*Aggregation, error) {
	lines, err := s.Lines(ctx, p)
	if err != nil {
		return nil, err
	}
	return NewAggregation(lines), nil
}

// Lines returns the raw cart rows, oldest first, with their product snapshots.
func (s *Service) Lines(ctx context.Context, p domain.Principal) ([]domain.CartLine, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	lines, err := s.repo.ListByUser(ctx, p.UserID, false)
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	return lines, nil
}

// SetQuantity collapses every line for the key into the oldest one carrying qty. qty <= 0 behaves like
// Remove: line is nil and removed reports whether anything was deleted.
func (s *Service) SetQuantity(ctx context.Context, p domain.Principal, productID, size string, qty int) (line *domain.CartLine, removed bool, err error) {
	if !p.Authenticated() {
		return nil, false, domain.ErrUnauthorized
	}
	if qty <= 0 {
		removed, err = s.Remove(ctx, p, productID, size)
		return nil, removed, err
	}
	key := domain.NewLineKey(productID, size)

	ctx, span := tracer.Start(ctx, "cart.SetQuantity")
	defer span.End()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockUser(ctx, p.UserID); err != nil {
			return err
		}
		lines, err := s.repo.ListByKey(ctx, p.UserID, key)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return fmt.Errorf("%w: no cart item for product %s", domain.ErrNotFound, key.ProductID)
		}
		product := lines[0].Product
		if qty > product.StockQuantity {
			return fmt.Errorf("%w: %d of %s requested, %d available",
				domain.ErrInsufficientStock, qty, product.Name, product.StockQuantity)
		}

		keep := lines[0]
		if err := s.repo.UpdateQuantity(ctx, keep.ID, qty); err != nil {
			return err
		}
		if len(lines) > 1 {
			extra := make([]string, 0, len(lines)-1)
			for _, l := range lines[1:] {
				extra = append(extra, l.ID)
			}
			if _, err := s.repo.DeleteByIDs(ctx, p.UserID, extra); err != nil {
				return err
			}
			s.logger.InfoContext(ctx, "collapsed duplicate cart items",
				slog.String("user_id", p.UserID),
				slog.String("product_id", key.ProductID),
				slog.Int("removed", len(extra)),
			)
		}
		keep.Quantity = qty
		line = &keep
		return nil
	})
	if err != nil {
		return nil, false, domain.StorageFailure(err)
	}
	return line, false, nil
}

// Remove deletes every line for the key and reports whether anything was there.
func (s *Service) Remove(ctx context.Context, p domain.Principal, productID, size string) (bool, error) {
	if !p.Authenticated() {
		return false, domain.ErrUnauthorized
	}
	key := domain.NewLineKey(productID, size)
	var n int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockUser(ctx, p.UserID); err != nil {
			return err
		}
		var err error
		n, err = s.repo.DeleteByKey(ctx, p.UserID, key)
		return err
	})
	if err != nil {
		return false, domain.StorageFailure(err)
	}
	return n > 0, nil
}

// Clear empties the cart and returns how many lines were deleted.
func (s *Service) Clear(ctx context.Context, p domain.Principal) (int, error) {
	if !p.Authenticated() {
		return 0, domain.ErrUnauthorized
	}
	var n int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockUser(ctx, p.UserID); err != nil {
			return err
		}
		var err error
		n, err = s.repo.DeleteByUser(ctx, p.UserID)
		return err
	})
	if err != nil {
		return 0, domain.StorageFailure(err)
	}
	s.logger.InfoContext(ctx, "cart cleared", slog.String("user_id", p.UserID), slog.Int("removed", n))
	return n, nil
}

func (s *Service) Totals(ctx context.Context, p domain.Principal) (pricing.Totals, error) {
	lines, err := s.Lines(ctx, p)
	if err != nil {
		return pricing.Totals{}, err
	}
	return s.policy.Compute(lines), nil
}
