package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront-core/internal/domain"
)

var tracer = otel.Tracer("storefront-core/service/order")

// DefaultTopic is the outbox topic for order lifecycle events.
const DefaultTopic = "order-events"

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type cartRepo interface {
	LockUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string, forUpdate bool) ([]domain.CartLine, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

type orderRepo interface {
	Create(ctx context.Context, order domain.Order) (*domain.Order, error)
	Get(ctx context.Context, id string, forUpdate bool) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, entry string) (*domain.Order, error)
	AppendNote(ctx context.Context, id, entry string) error
	SetStockReserved(ctx context.Context, id string, reserved bool) error
	Statistics(ctx context.Context, since time.Time) (domain.OrderStatistics, error)
}

type productRepo interface {
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
}

type outboxWriter interface {
	Insert(ctx context.Context, msg domain.OutboxMessage) error
}

type Deps struct {
	Tx       txRunner
	Carts    cartRepo
	Orders   orderRepo
	Products productRepo
	Outbox   outboxWriter
	Topic    string
	Logger   *slog.Logger
}

// Service is the order pipeline: cart to order conversion and the status lifecycle.
type Service struct {
	tx       txRunner
	carts    cartRepo
	orders   orderRepo
	products productRepo
	outbox   outboxWriter
	topic    string
	now      func() time.Time
	logger   *slog.Logger
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	topic := deps.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return &Service{
		tx:       deps.Tx,
		carts:    deps.Carts,
		orders:   deps.Orders,
		products: deps.Products,
		outbox:   deps.Outbox,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("service", "order")),
	}
}

// CreateFromCart converts the caller's cart into a PENDING order and empties the cart, atomically. The
// total is the sum of the line subtotals at call time.
func (s *Service) CreateFromCart(ctx context.Context, p domain.Principal, shipping *domain.ShippingAddress, notes string) (*domain.Order, error) {
	if shipping != nil {
		if err := shipping.Validate(); err != nil {
			return nil, err
		}
	}
	res, err := s.create(ctx, p, createOptions{shipping: shipping, notes: notes, clearCart: true})
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

// CheckoutOrder is what CreateForCheckout placed.
type CheckoutOrder struct {
	Order *domain.Order
	// Lines are the locked cart lines the order was built from.
	Lines []domain.CartLine
	// Superseded are the user's earlier pending checkout orders, cancelled in the same transaction.
	Superseded []domain.Order
}

// CreateForCheckout places a PENDING order from the cart but keeps the cart, which is cleared once the
// payment is confirmed. Only one checkout order per user stays payable: earlier pending ones are
// cancelled. total prices the locked lines.
func (s *Service) CreateForCheckout(ctx context.Context, p domain.Principal, total TotalFunc) (*CheckoutOrder, error) {
	return s.create(ctx, p, createOptions{checkout: true, total: total})
}

// TotalFunc computes the captured order amount from the cart lines.
type TotalFunc func(lines []domain.CartLine) decimal.Decimal

type createOptions struct {
	shipping  *domain.ShippingAddress
	notes     string
	clearCart bool
	checkout  bool
	total     TotalFunc
}

func (s *Service) create(ctx context.Context, p domain.Principal, opts createOptions) (*CheckoutOrder, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	ctx, span := tracer.Start(ctx, "order.CreateFromCart", trace.WithAttributes(
		attribute.Bool("cart.clear", opts.clearCart),
		attribute.Bool("order.checkout", opts.checkout),
	))
	defer span.End()

	var res CheckoutOrder
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		res = CheckoutOrder{}
		if err := s.carts.LockUser(ctx, p.UserID); err != nil {
			return err
		}
		lines, err := s.carts.ListByUser(ctx, p.UserID, true)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}
		res.Lines = lines

		o := s.buildOrder(p.UserID, lines, opts.shipping, opts.notes)
		o.Checkout = opts.checkout
		if opts.total != nil {
			o.TotalAmount = opts.total(lines)
		}
		if opts.checkout {
			res.Superseded, err = s.supersedeCheckouts(ctx, p.UserID, o.OrderNumber)
			if err != nil {
				return err
			}
		}
		res.Order, err = s.orders.Create(ctx, o)
		if err != nil {
			return err
		}
		if opts.clearCart {
			if _, err := s.carts.DeleteByUser(ctx, p.UserID); err != nil {
				return err
			}
		}
		return s.emit(ctx, domain.EventOrderCreated, res.Order, "")
	})
	if err != nil {
		span.RecordError(err)
		return nil, domain.StorageFailure(err)
	}

	created := res.Order
	span.SetAttributes(attribute.String("order.id", created.ID))
	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", created.ID),
		slog.String("order_number", created.OrderNumber),
		slog.String("user_id", p.UserID),
		slog.String("total", created.TotalAmount.StringFixed(2)),
		slog.Int("superseded", len(res.Superseded)),
	)
	return &res, nil
}

// supersedeCheckouts cancels the user's pending checkout orders so a cart is never payable twice. The
// caller holds the user's cart lock.
func (s *Service) supersedeCheckouts(ctx context.Context, userID, by string) ([]domain.Order, error) {
	open, err := s.orders.List(ctx, domain.OrderFilter{UserID: userID, Status: domain.OrderPending, CheckoutOnly: true})
	if err != nil {
		return nil, err
	}
	var superseded []domain.Order
	for _, prev := range open {
		o, err := s.orders.Get(ctx, prev.ID, true)
		if err != nil {
			return nil, err
		}
		if o.Status != domain.OrderPending {
			continue
		}
		cancelled, err := s.transition(ctx, o, domain.OrderCancelled, "Superseded by checkout "+by)
		if err != nil {
			return nil, err
		}
		superseded = append(superseded, *cancelled)
	}
	return superseded, nil
}

func (s *Service) buildOrder(userID string, lines []domain.CartLine, shipping *domain.ShippingAddress, notes string) domain.Order {
	id := uuid.NewString()
	now := s.now()
	o := domain.Order{
		ID:              id,
		UserID:          userID,
		OrderNumber:     domain.OrderNumber(id, now),
		Status:          domain.OrderPending,
		ShippingAddress: shipping,
		Notes:           strings.TrimSpace(notes),
	}
	for _, l := range lines {
		o.TotalAmount = o.TotalAmount.Add(l.Subtotal())
		o.Items = append(o.Items, domain.OrderItem{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			PriceAtTime: l.Product.Price,
			Size:        l.Size,
		})
	}
	return o
}

// UpdateStatus is the privileged status change used by administrators.
func (s *Service) UpdateStatus(ctx context.Context, p domain.Principal, orderID string, to domain.OrderStatus, note string) (*domain.Order, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	var updated *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, orderID, true)
		if err != nil {
			return err
		}
		updated, err = s.transition(ctx, o, to, note)
		return err
	})
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	return updated, nil
}

// Cancel lets the owner (or an administrator) cancel an order that is still PENDING or PAID.
func (s *Service) Cancel(ctx context.Context, p domain.Principal, orderID string) (*domain.Order, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	var updated *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, orderID, true)
		if err != nil {
			return err
		}
		if !p.CanAccess(o.UserID) {
			return domain.ErrNotFound
		}
		if !o.Status.Cancellable() {
			return fmt.Errorf("%w: order in status %s cannot be cancelled", domain.ErrInvalidTransition, o.Status)
		}
		updated, err = s.transition(ctx, o, domain.OrderCancelled, "Cancelled by "+cancelledBy(p, o))
		return err
	})
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	return updated, nil
}

// Abandon cancels a PENDING order whose payment could not be started.
func (s *Service) Abandon(ctx context.Context, orderID, reason string) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, orderID, true)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderPending {
			return fmt.Errorf("%w: only pending orders can be abandoned, order is %s", domain.ErrInvalidTransition, o.Status)
		}
		_, err = s.transition(ctx, o, domain.OrderCancelled, reason)
		return err
	})
	return domain.StorageFailure(err)
}

func cancelledBy(p domain.Principal, o *domain.Order) string {
	if p.UserID == o.UserID {
		return "customer"
	}
	return "administrator"
}

// MarkPaid records a confirmed payment. Orders already past PENDING in the paid lifecycle are left as
// they are and changed is false, so redelivered provider events are harmless.
func (s *Service) MarkPaid(ctx context.Context, orderID, note string) (order *domain.Order, changed bool, err error) {
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, orderID, true)
		if err != nil {
			return err
		}
		if o.Status.Booked() {
			order = o
			return nil
		}
		order, err = s.transition(ctx, o, domain.OrderPaid, note)
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, false, domain.StorageFailure(err)
	}
	return order, changed, nil
}

// transition applies one lifecycle step to an order read FOR UPDATE, including stock side effects and the
// outbox event. It must run inside a transaction.
func (s *Service) transition(ctx context.Context, o *domain.Order, to domain.OrderStatus, note string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "order.transition", trace.WithAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("order.from", string(o.Status)),
		attribute.String("order.to", string(to)),
	))
	defer span.End()

	from := o.Status
	if !from.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	now := s.now()
	entry := domain.AppendNote("", note, now)

	switch {
	case to == domain.OrderPaid && !o.StockReserved:
		reserved, shortfall, err := s.reserveStock(ctx, o)
		if err != nil {
			return nil, err
		}
		if reserved {
			if err := s.orders.SetStockReserved(ctx, o.ID, true); err != nil {
				return nil, err
			}
		} else {
			entry = domain.AppendNote(entry, "Stock shortfall, items not deducted: "+shortfall, now)
			s.logger.WarnContext(ctx, "paid order exceeds stock",
				slog.String("order_id", o.ID), slog.String("shortfall", shortfall))
		}
	case to == domain.OrderCancelled && o.StockReserved:
		if err := s.adjustItems(ctx, o.Items, 1); err != nil {
			return nil, err
		}
		if err := s.orders.SetStockReserved(ctx, o.ID, false); err != nil {
			return nil, err
		}
	}

	updated, err := s.orders.UpdateStatus(ctx, o.ID, from, to, entry)
	if err != nil {
		return nil, err
	}
	if err := s.emit(ctx, domain.EventOrderStatusChanged, updated, from); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order status changed",
		slog.String("order_id", o.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return updated, nil
}

// reserveStock deducts every item or none. A shortfall is reported instead of failing, since the payment
// has already been captured.
func (s *Service) reserveStock(ctx context.Context, o *domain.Order) (bool, string, error) {
	for i, it := range o.Items {
		_, err := s.products.AdjustStock(ctx, it.ProductID, -it.Quantity)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrInsufficientStock) && !errors.Is(err, domain.ErrNotFound) {
			return false, "", err
		}
		if err := s.adjustItems(ctx, o.Items[:i], 1); err != nil {
			return false, "", err
		}
		return false, fmt.Sprintf("product %s x%d", it.ProductID, it.Quantity), nil
	}
	return true, "", nil
}

func (s *Service) adjustItems(ctx context.Context, items []domain.OrderItem, sign int) error {
	for _, it := range items {
		if _, err := s.products.AdjustStock(ctx, it.ProductID, sign*it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Get returns an order visible to the caller. Orders of other users read as not found.
func (s *Service) Get(ctx context.Context, p domain.Principal, orderID string) (*domain.Order, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	o, err := s.orders.Get(ctx, orderID, false)
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	if !p.CanAccess(o.UserID) {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// List returns the caller's orders; administrators see every order.
func (s *Service) List(ctx context.Context, p domain.Principal, filter domain.OrderFilter) ([]domain.Order, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if !p.IsAdmin() {
		filter.UserID = p.UserID
	}
	if filter.Status != "" {
		st, err := domain.ParseOrderStatus(string(filter.Status))
		if err != nil {
			return nil, err
		}
		filter.Status = st
	}
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	return orders, nil
}

func (s *Service) Statistics(ctx context.Context, p domain.Principal) (domain.OrderStatistics, error) {
	if !p.Authenticated() {
		return domain.OrderStatistics{}, domain.ErrUnauthorized
	}
	if !p.IsAdmin() {
		return domain.OrderStatistics{}, domain.ErrForbidden
	}
	stats, err := s.orders.Statistics(ctx, s.now().AddDate(0, 0, -30))
	if err != nil {
		return domain.OrderStatistics{}, domain.StorageFailure(err)
	}
	return stats, nil
}
