package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_TransitionTable(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderPending:    {OrderPaid, OrderCancelled},
		OrderPaid:       {OrderProcessing, OrderCancelled},
		OrderProcessing: {OrderShipped, OrderCancelled},
		OrderShipped:    {OrderDelivered},
		OrderDelivered:  {OrderRefunded},
	}
	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equalf(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, OrderCancelled.Terminal())
	assert.True(t, OrderRefunded.Terminal())
	assert.False(t, OrderShipped.Terminal())
}

func TestOrderStatus_Cancellable(t *testing.T) {
	assert.True(t, OrderPending.Cancellable())
	assert.True(t, OrderPaid.Cancellable())
	assert.False(t, OrderProcessing.Cancellable())
	assert.False(t, OrderCancelled.Cancellable())
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus(" PAID ")
	require.NoError(t, err)
	assert.Equal(t, OrderPaid, st)

	_, err = ParseOrderStatus("lost")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOrderNumber(t *testing.T) {
	at := time.Unix(1712345678, 0)
	got := OrderNumber("3f2a9c1e-0000-4000-8000-000000000000", at)
	assert.Equal(t, "ORD-345678-3F2A9C", got)

	at = time.Unix(1700000042, 0)
	assert.Equal(t, "ORD-000042-ABCDEF", OrderNumber("abcdef12-3456", at))
}

func TestAppendNote(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	notes := AppendNote("", "created", at)
	assert.Equal(t, "[2024-03-01 09:30] created", notes)

	notes = AppendNote(notes, "  shipped via courier ", at.Add(time.Hour))
	assert.Equal(t, "[2024-03-01 09:30] created\n[2024-03-01 10:30] shipped via courier", notes)

	assert.Equal(t, notes, AppendNote(notes, "   ", at))
}

func TestNewLineKey_NormalizesSize(t *testing.T) {
	assert.Equal(t, NewLineKey("p1", ""), NewLineKey("p1", "no size"))
	assert.Equal(t, NewLineKey("p1", ""), NewLineKey(" p1 ", "No-Size"))
	assert.Equal(t, NewLineKey("p1", "9"), NewLineKey("p1", " 9 "))
	assert.NotEqual(t, NewLineKey("p1", "9"), NewLineKey("p19", ""))
}

func TestStorageFailure(t *testing.T) {
	assert.Nil(t, StorageFailure(nil))
	assert.Equal(t, ErrEmptyCart, StorageFailure(ErrEmptyCart))

	err := StorageFailure(assert.AnError)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPrincipal(t *testing.T) {
	anon := Principal{}
	assert.False(t, anon.Authenticated())
	assert.False(t, anon.CanAccess(""))

	user := Principal{UserID: "u1", Roles: []string{RoleCustomer}}
	assert.True(t, user.CanAccess("u1"))
	assert.False(t, user.CanAccess("u2"))

	admin := Principal{UserID: "a1", Roles: []string{RoleSuperAdmin}}
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CanAccess("u2"))
}

func TestOrderStatistics_Complete(t *testing.T) {
	stats := NewOrderStatistics()
	require.Len(t, stats.OrdersByStatus, len(OrderStatuses))

	stats.Complete()
	assert.Zero(t, stats.ConversionRate)

	stats.TotalOrders = 4
	stats.OrdersByStatus[OrderPaid] = 1
	stats.OrdersByStatus[OrderPending] = 3
	stats.Complete()
	assert.Equal(t, 1, stats.PaidOrders)
	assert.InDelta(t, 25.0, stats.ConversionRate, 1e-9)
}

func TestShippingAddress_Validate(t *testing.T) {
	full := ShippingAddress{FullName: "Thandi Nkosi", Line1: "1 Main Rd", City: "Cape Town", PostalCode: "8001", Country: "ZA"}
	require.NoError(t, full.Validate())

	err := ShippingAddress{}.Validate()
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "fullName, line1, city, postalCode, country")

	blankCity := full
	blankCity.City = "   "
	err = blankCity.Validate()
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "city")
}

func TestProduct_MarshalIncludesInStock(t *testing.T) {
	raw, err := json.Marshal(Product{ID: "p1", Name: "Boot", Price: decimal.RequireFromString("10.00"), StockQuantity: 0})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, false, out["inStock"])
	assert.Equal(t, "Boot", out["name"])

	raw, err = json.Marshal(CartLine{ID: "l1", Product: Product{StockQuantity: 2}})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"inStock":true`)
}
