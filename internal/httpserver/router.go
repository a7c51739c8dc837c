package httpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront-core/internal/domain"
	"storefront-core/internal/pricing"
	cartsvc "storefront-core/internal/service/cart"
	paymentsvc "storefront-core/internal/service/payment"
	productsvc "storefront-core/internal/service/product"
)

type ProductService interface {
	List(ctx context.Context, filter productsvc.Filter) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type CartService interface {
	Add(ctx context.Context, p domain.Principal, productID, size string, qty int) (*domain.CartLine, error)
	Aggregated(ctx context.Context, p domain.Principal) (*cartsvc.Aggregation, error)
	Lines(ctx context.Context, p domain.Principal) ([]domain.CartLine, error)
	SetQuantity(ctx context.Context, p domain.Principal, productID, size string, qty int) (*domain.CartLine, bool, error)
	Remove(ctx context.Context, p domain.Principal, productID, size string) (bool, error)
	Clear(ctx context.Context, p domain.Principal) (int, error)
	Totals(ctx context.Context, p domain.Principal) (pricing.Totals, error)
}

type OrderService interface {
	CreateFromCart(ctx context.Context, p domain.Principal, shipping *domain.ShippingAddress, notes string) (*domain.Order, error)
	Get(ctx context.Context, p domain.Principal, orderID string) (*domain.Order, error)
	List(ctx context.Context, p domain.Principal, filter domain.OrderFilter) ([]domain.Order, error)
	Cancel(ctx context.Context, p domain.Principal, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, p domain.Principal, orderID string, to domain.OrderStatus, note string) (*domain.Order, error)
	Statistics(ctx context.Context, p domain.Principal) (domain.OrderStatistics, error)
}

type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, p domain.Principal) (*paymentsvc.CheckoutSession, error)
	ApplyWebhookEvent(ctx context.Context, payload []byte, signature string) error
}

// TokenValidator turns a bearer token into the calling principal.
type TokenValidator interface {
	Validate(token string) (domain.Principal, error)
}

type Deps struct {
	ProductSvc ProductService
	CartSvc    CartService
	OrderSvc   OrderService
	PaymentSvc PaymentService
	Auth       TokenValidator
	Store      Pinger
	// Pricing converts order totals into the charge currency; DefaultPolicy when unset.
	Pricing pricing.Policy
	// CORSOrigins defaults to any origin when empty.
	CORSOrigins []string
	// CheckoutPerMinute bounds checkout-session creation per user; zero disables the limit.
	CheckoutPerMinute int
}

func (d Deps) validate() error {
	switch {
	case d.ProductSvc == nil:
		return errors.New("httpserver: product service is required")
	case d.CartSvc == nil:
		return errors.New("httpserver: cart service is required")
	case d.OrderSvc == nil:
		return errors.New("httpserver: order service is required")
	case d.PaymentSvc == nil:
		return errors.New("httpserver: payment service is required")
	case d.Auth == nil:
		return errors.New("httpserver: token validator is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *slog.Logger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery(), cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Store))

	policy := deps.Pricing
	if policy.ChargeCurrency == "" {
		policy = pricing.DefaultPolicy()
	}
	h := &handlers{
		products: deps.ProductSvc,
		carts:    deps.CartSvc,
		orders:   deps.OrderSvc,
		payments: deps.PaymentSvc,
		pricing:  policy,
		logger:   logger,
	}

	api := router.Group("/api")
	api.POST("/webhooks/payments", h.paymentWebhook)
	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)

	authed := api.Group("", authMiddleware(deps.Auth))

	authed.GET("/cart", h.getCart)
	authed.DELETE("/cart", h.clearCart)
	authed.GET("/cart/totals", h.cartTotals)
	authed.GET("/cart/items", h.cartItems)
	authed.POST("/cart/items", h.addCartItem)
	authed.PUT("/cart/items", h.updateCartItem)
	authed.DELETE("/cart/items", h.removeCartItem)

	authed.POST("/orders", h.createOrder)
	authed.GET("/orders", h.listOrders)
	authed.GET("/orders/statistics", h.orderStatistics)
	authed.GET("/orders/:id", h.getOrder)
	authed.POST("/orders/:id/cancel", h.cancelOrder)
	authed.PUT("/orders/:id/status", h.updateOrderStatus)

	checkout := []gin.HandlerFunc{}
	if deps.CheckoutPerMinute > 0 {
		checkout = append(checkout, rateLimitPerUser(newUserLimiter(deps.CheckoutPerMinute)))
	}
	checkout = append(checkout, h.createCheckoutSession)
	authed.POST("/checkout/session", checkout...)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

type handlers struct {
	products ProductService
	carts    CartService
	orders   OrderService
	payments PaymentService
	pricing  pricing.Policy
	logger   *slog.Logger
}
