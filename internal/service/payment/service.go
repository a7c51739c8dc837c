package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront-core/internal/domain"
	gateway "storefront-core/internal/payment"
	"storefront-core/internal/pricing"
	orderservice "storefront-core/internal/service/order"
)

var tracer = otel.Tracer("storefront-core/service/payment")

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type orderPipeline interface {
	CreateForCheckout(ctx context.Context, p domain.Principal, total orderservice.TotalFunc) (*orderservice.CheckoutOrder, error)
	Abandon(ctx context.Context, orderID, reason string) error
	MarkPaid(ctx context.Context, orderID, note string) (*domain.Order, bool, error)
}

type sessionStore interface {
	Get(ctx context.Context, id string, forUpdate bool) (*domain.Order, error)
	SetPaymentSession(ctx context.Context, id, sessionID string) error
}

type cartRepo interface {
	LockUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string, forUpdate bool) ([]domain.CartLine, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// Deduper remembers processed webhook event ids. Claim reports false for an id seen before.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Deps struct {
	Tx       txRunner
	Orders   orderPipeline
	Sessions sessionStore
	Carts    cartRepo
	Provider gateway.Provider
	Policy   pricing.Policy
	// Deduper is optional.
	Deduper Deduper
	Logger  *slog.Logger
}

// Service is the payment reconciler: it starts hosted checkouts and applies provider webhooks.
type Service struct {
	tx       txRunner
	orders   orderPipeline
	sessions sessionStore
	carts    cartRepo
	provider gateway.Provider
	policy   pricing.Policy
	deduper  Deduper
	logger   *slog.Logger
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		tx:       deps.Tx,
		orders:   deps.Orders,
		sessions: deps.Sessions,
		carts:    deps.Carts,
		provider: deps.Provider,
		policy:   deps.Policy,
		deduper:  deps.Deduper,
		logger:   logger.With(slog.String("service", "payment")),
	}
}

type CheckoutSession struct {
	URL       string          `json:"url"`
	OrderID   string          `json:"orderId"`
	SessionID string          `json:"sessionId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// CreateCheckoutSession places a PENDING order for the cart and opens a provider session charging its
// total in the charge currency. The cart is kept until the payment is confirmed. Sessions of earlier
// unpaid checkouts are expired so only the newest one can be paid.
func (s *Service) CreateCheckoutSession(ctx context.Context, p domain.Principal) (*CheckoutSession, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	ctx, span := tracer.Start(ctx, "payment.CreateCheckoutSession")
	defer span.End()

	lines, err := s.carts.ListByUser(ctx, p.UserID, false)
	if err != nil {
		return nil, domain.StorageFailure(err)
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	placed, err := s.orders.CreateForCheckout(ctx, p, func(lines []domain.CartLine) decimal.Decimal {
		return s.policy.Compute(lines).Total
	})
	if err != nil {
		return nil, err
	}
	o := placed.Order
	span.SetAttributes(attribute.String("order.id", o.ID))
	for _, prev := range placed.Superseded {
		if prev.PaymentSessionID != nil {
			s.expireSession(ctx, prev.ID, *prev.PaymentSessionID)
		}
	}

	charge := s.policy.Convert(o.TotalAmount)
	session, err := s.provider.CreateSession(ctx, gateway.SessionRequest{
		IdempotencyKey: o.ID,
		Name:           "Order #" + o.OrderNumber,
		Description: fmt.Sprintf("%d items (%s %s)",
			len(placed.Lines), o.TotalAmount.StringFixed(2), s.policy.BaseCurrency),
		Amount:        pricing.MinorUnits(charge),
		Currency:      s.policy.ChargeCurrency,
		CustomerEmail: p.Email,
		Metadata: map[string]string{
			gateway.MetaOrderID:        o.ID,
			gateway.MetaUserID:         p.UserID,
			gateway.MetaOriginalAmount: o.TotalAmount.StringFixed(2),
			gateway.MetaOriginalCurr:   s.policy.BaseCurrency,
		},
	})
	if err != nil {
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "payment session failed",
			slog.String("order_id", o.ID), slog.Any("error", err))
		// The compensation outlives a client that already hung up.
		if cerr := s.orders.Abandon(context.WithoutCancel(ctx), o.ID, "Payment session could not be created"); cerr != nil {
			s.logger.ErrorContext(ctx, "abandon order after payment failure",
				slog.String("order_id", o.ID), slog.Any("error", cerr))
		}
		return nil, fmt.Errorf("%w: order %s: %w", domain.ErrPaymentProvider, o.OrderNumber, err)
	}

	if err := s.attachSession(ctx, o.ID, session.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// A newer checkout cancelled this order while the session was being created.
			s.expireSession(ctx, o.ID, session.ID)
			return nil, fmt.Errorf("%w: checkout %s was replaced by a newer one", domain.ErrInvalidTransition, o.OrderNumber)
		}
		// The webhook reconciles through metadata, so a failure here only loses the lookup convenience.
		s.logger.WarnContext(ctx, "store payment session id",
			slog.String("order_id", o.ID), slog.String("session_id", session.ID), slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("order_id", o.ID),
		slog.String("session_id", session.ID),
		slog.Int64("amount_minor", pricing.MinorUnits(charge)),
		slog.String("currency", s.policy.ChargeCurrency),
	)
	return &CheckoutSession{
		URL:       session.URL,
		OrderID:   o.ID,
		SessionID: session.ID,
		Amount:    charge,
		Currency:  s.policy.ChargeCurrency,
	}, nil
}

// attachSession stores the session reference while the order is still payable.
func (s *Service) attachSession(ctx context.Context, orderID, sessionID string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.sessions.Get(ctx, orderID, true)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderPending {
			return fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, o.Status)
		}
		return s.sessions.SetPaymentSession(ctx, orderID, sessionID)
	})
}

func (s *Service) expireSession(ctx context.Context, orderID, sessionID string) {
	if err := s.provider.ExpireSession(context.WithoutCancel(ctx), sessionID); err != nil {
		s.logger.WarnContext(ctx, "expire superseded payment session",
			slog.String("order_id", orderID), slog.String("session_id", sessionID), slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "payment session expired",
		slog.String("order_id", orderID), slog.String("session_id", sessionID))
}

// ApplyWebhookEvent verifies and applies one provider notification. Only domain.ErrInvalidSignature and
// storage failures are returned; events for unknown or stale orders are logged and acknowledged.
func (s *Service) ApplyWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.provider.VerifyAndParse(payload, signature)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			s.logger.WarnContext(ctx, "webhook signature rejected", slog.Any("error", err))
			return err
		}
		s.logger.WarnContext(ctx, "webhook payload rejected", slog.Any("error", err))
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	ctx, span := tracer.Start(ctx, "payment.ApplyWebhookEvent", trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", ev.Type),
	))
	defer span.End()

	if !ev.IsSessionEvent() {
		s.logger.DebugContext(ctx, "webhook event ignored", slog.String("type", ev.Type), slog.String("event_id", ev.ID))
		return nil
	}
	if ev.Type == gateway.EventCheckoutCompleted && !ev.Captured() {
		// Delayed payment methods report the outcome in a later async event.
		s.logger.InfoContext(ctx, "checkout completed, payment pending",
			slog.String("event_id", ev.ID), slog.String("payment_status", ev.PaymentStatus))
		return nil
	}

	if s.deduper != nil && ev.ID != "" {
		fresh, err := s.deduper.Claim(ctx, ev.ID)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "webhook dedupe unavailable", slog.String("event_id", ev.ID), slog.Any("error", err))
		case !fresh:
			s.logger.InfoContext(ctx, "webhook event already processed", slog.String("event_id", ev.ID))
			return nil
		}
	}

	apply := s.completeCheckout
	if ev.Type == gateway.EventAsyncPaymentFailed {
		apply = s.failCheckout
	}
	if err := apply(ctx, ev); err != nil {
		if s.deduper != nil && ev.ID != "" {
			if rerr := s.deduper.Release(ctx, ev.ID); rerr != nil {
				s.logger.WarnContext(ctx, "release webhook claim", slog.String("event_id", ev.ID), slog.Any("error", rerr))
			}
		}
		return err
	}
	return nil
}

func (s *Service) completeCheckout(ctx context.Context, ev gateway.Event) error {
	orderID := ev.Metadata[gateway.MetaOrderID]
	log := s.logger.With(slog.String("event_id", ev.ID), slog.String("order_id", orderID), slog.String("session_id", ev.SessionID))
	if orderID == "" {
		log.WarnContext(ctx, "checkout event without order reference")
		return nil
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, changed, err := s.orders.MarkPaid(ctx, orderID, "Payment confirmed (session "+ev.SessionID+")")
		if err != nil {
			return err
		}
		if !changed {
			log.InfoContext(ctx, "order already paid", slog.String("status", string(o.Status)))
			return nil
		}
		if err := s.carts.LockUser(ctx, o.UserID); err != nil {
			return err
		}
		n, err := s.carts.DeleteByUser(ctx, o.UserID)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "order paid", slog.String("user_id", o.UserID), slog.Int("cart_items_cleared", n))
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		log.WarnContext(ctx, "checkout event not applicable", slog.Any("error", err))
		return nil
	case errors.Is(err, domain.ErrInvalidTransition):
		log.ErrorContext(ctx, "payment captured for an order that is no longer payable, refund required", slog.Any("error", err))
		return nil
	default:
		log.ErrorContext(ctx, "apply checkout event", slog.Any("error", err))
		return domain.StorageFailure(err)
	}
}

// failCheckout cancels the order of a session whose delayed payment was declined.
func (s *Service) failCheckout(ctx context.Context, ev gateway.Event) error {
	orderID := ev.Metadata[gateway.MetaOrderID]
	log := s.logger.With(slog.String("event_id", ev.ID), slog.String("order_id", orderID), slog.String("session_id", ev.SessionID))
	if orderID == "" {
		log.WarnContext(ctx, "checkout event without order reference")
		return nil
	}
	err := s.orders.Abandon(ctx, orderID, "Payment failed (session "+ev.SessionID+")")
	switch {
	case err == nil:
		log.InfoContext(ctx, "order cancelled after failed payment")
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidTransition):
		log.WarnContext(ctx, "failed payment event not applicable", slog.Any("error", err))
		return nil
	default:
		log.ErrorContext(ctx, "apply failed payment event", slog.Any("error", err))
		return err
	}
}
