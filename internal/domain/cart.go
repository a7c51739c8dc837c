package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Size      string    `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	// Product is the catalog row as read together with the line.
	Product Product `json:"product"`
}

func (l CartLine) Key() LineKey {
	return NewLineKey(l.ProductID, l.Size)
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineKey identifies one logical cart entry for a user.
type LineKey struct {
	ProductID string
	Size      string
}

// NewLineKey builds a key with the size normalized, so "", "no size" and "no-size" share a bucket.
func NewLineKey(productID, size string) LineKey {
	return LineKey{ProductID: strings.TrimSpace(productID), Size: NormalizeSize(size)}
}

func NormalizeSize(size string) string {
	s := strings.TrimSpace(size)
	switch strings.ToLower(s) {
	case "", "no size", "no-size", "nosize", "no_size":
		return ""
	}
	return s
}

// CartGroup is one aggregated entry of a cart: every raw line sharing a LineKey.
type CartGroup struct {
	Product       Product         `json:"product"`
	Size          string          `json:"size"`
	TotalQuantity int             `json:"totalQuantity"`
	LineIDs       []string        `json:"itemIds"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}
