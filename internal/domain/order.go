package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPaid       OrderStatus = "paid"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderPending,
	OrderPaid,
	OrderProcessing,
	OrderShipped,
	OrderDelivered,
	OrderCancelled,
	OrderRefunded,
}

var transitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderPaid, OrderCancelled},
	OrderPaid:       {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderRefunded},
	OrderCancelled:  nil,
	OrderRefunded:   nil,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, s)
	}
	return st, nil
}

// CanTransition reports whether the lifecycle table allows from -> to.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Cancellable is the subset of states a customer may cancel from.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderPaid
}

// Booked reports whether an order in this state counts as revenue.
func (s OrderStatus) Booked() bool {
	return s == OrderPaid || s == OrderProcessing || s == OrderShipped || s == OrderDelivered
}

type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Validate requires the fields a courier needs: name, first address line, city, postal code and country.
func (a ShippingAddress) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"fullName", a.FullName},
		{"line1", a.Line1},
		{"city", a.City},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: shipping address is missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

type Order struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	OrderNumber      string           `json:"orderNumber"`
	TotalAmount      decimal.Decimal  `json:"totalAmount"`
	Status           OrderStatus      `json:"status"`
	PaymentSessionID *string          `json:"paymentSessionId,omitempty"`
	ShippingAddress  *ShippingAddress `json:"shippingAddress,omitempty"`
	Notes            string           `json:"notes"`
	// StockReserved is set while the items are deducted from product stock.
	StockReserved bool `json:"stockReserved"`
	// Checkout marks orders placed by a hosted checkout; the cart stays until the payment is confirmed.
	Checkout  bool        `json:"checkout"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Items     []OrderItem `json:"items"`
}

func (o Order) TotalItems() int {
	total := 0
	for _, it := range o.Items {
		total += it.Quantity
	}
	return total
}

type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"orderId"`
	ProductID   string          `json:"productId"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"priceAtTime"`
	Size        string          `json:"size"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtTime.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderNumber renders the human-readable number: last six digits of the unix time plus the first six
// hex characters of the id.
func OrderNumber(id string, at time.Time) string {
	ts := fmt.Sprintf("%06d", at.Unix()%1000000)
	hex := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(hex) > 6 {
		hex = hex[:6]
	}
	return "ORD-" + ts + "-" + hex
}

// AppendNote adds a timestamped annotation without touching earlier ones.
func AppendNote(existing, note string, at time.Time) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	entry := fmt.Sprintf("[%s] %s", at.UTC().Format("2006-01-02 15:04"), note)
	if existing == "" {
		return entry
	}
	return existing + "\n" + entry
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID string
	Status OrderStatus
	Search string
	// CheckoutOnly keeps orders placed by a hosted checkout.
	CheckoutOnly bool
}

type OrderStatistics struct {
	TotalOrders         int                 `json:"totalOrders"`
	PaidOrders          int                 `json:"paidOrders"`
	TotalRevenue        decimal.Decimal     `json:"totalRevenue"`
	RecentRevenue30Days decimal.Decimal     `json:"recentRevenue30Days"`
	AverageOrderValue   decimal.Decimal     `json:"averageOrderValue"`
	OrdersByStatus      map[OrderStatus]int `json:"ordersByStatus"`
	ConversionRate      float64             `json:"conversionRate"`
}

// NewOrderStatistics returns statistics with every status present in OrdersByStatus.
func NewOrderStatistics() OrderStatistics {
	byStatus := make(map[OrderStatus]int, len(OrderStatuses))
	for _, st := range OrderStatuses {
		byStatus[st] = 0
	}
	return OrderStatistics{
		TotalRevenue:        decimal.Zero,
		RecentRevenue30Days: decimal.Zero,
		AverageOrderValue:   decimal.Zero,
		OrdersByStatus:      byStatus,
	}
}

// Complete derives PaidOrders and ConversionRate (percent) from the per-status counts.
func (s *OrderStatistics) Complete() {
	s.PaidOrders = s.OrdersByStatus[OrderPaid]
	s.ConversionRate = 0
	if s.TotalOrders > 0 {
		s.ConversionRate = float64(s.PaidOrders) / float64(s.TotalOrders) * 100
	}
}
