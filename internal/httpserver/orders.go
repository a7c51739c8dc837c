package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront-core/internal/domain"
)

type createOrderRequest struct {
	ShippingAddress *domain.ShippingAddress `json:"shippingAddress"`
	Notes           string                  `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type orderResponse struct {
	domain.Order
	TotalItems     int             `json:"totalItems"`
	TotalCharge    decimal.Decimal `json:"totalAmountCharge"`
	ChargeCurrency string          `json:"chargeCurrency"`
}

func (h *handlers) toOrderResponse(o domain.Order) orderResponse {
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return orderResponse{
		Order:          o,
		TotalItems:     o.TotalItems(),
		TotalCharge:    h.pricing.Convert(o.TotalAmount),
		ChargeCurrency: h.pricing.ChargeCurrency,
	}
}

func (h *handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	// An empty body is a valid request for an order without shipping details.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "malformed order request")
		return
	}
	o, err := h.orders.CreateFromCart(c.Request.Context(), principal(c), req.ShippingAddress, req.Notes)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.toOrderResponse(*o))
}

func (h *handlers) listOrders(c *gin.Context) {
	filter := domain.OrderFilter{
		Status: domain.OrderStatus(strings.TrimSpace(c.Query("status"))),
		Search: strings.TrimSpace(c.Query("search")),
	}
	orders, err := h.orders.List(c.Request.Context(), principal(c), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, h.toOrderResponse(o))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out, "count": len(out)})
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toOrderResponse(*o))
}

func (h *handlers) cancelOrder(c *gin.Context) {
	o, err := h.orders.Cancel(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toOrderResponse(*o))
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	to, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), principal(c), c.Param("id"), to, req.Note)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toOrderResponse(*o))
}

func (h *handlers) orderStatistics(c *gin.Context) {
	stats, err := h.orders.Statistics(c.Request.Context(), principal(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
