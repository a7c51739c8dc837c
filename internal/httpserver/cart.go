package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-core/internal/domain"
	"storefront-core/internal/pricing"
)

type cartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size"`
	Quantity  *int   `json:"quantity"`
}

type cartResponse struct {
	Items  []domain.CartGroup `json:"items"`
	Totals pricing.Totals     `json:"totals"`
}

func (h *handlers) getCart(c *gin.Context) {
	p := principal(c)
	agg, err := h.carts.Aggregated(c.Request.Context(), p)
	if err != nil {
		abortWithError(c, err)
		return
	}
	totals, err := h.carts.Totals(c.Request.Context(), p)
	if err != nil {
		abortWithError(c, err)
		return
	}
	groups := make([]domain.CartGroup, 0)
	for g := range agg.All() {
		groups = append(groups, g)
	}
	c.JSON(http.StatusOK, cartResponse{Items: groups, Totals: totals})
}

// cartItems lists the raw lines, duplicates included.
func (h *handlers) cartItems(c *gin.Context) {
	lines, err := h.carts.Lines(c.Request.Context(), principal(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	c.JSON(http.StatusOK, gin.H{"items": lines, "count": len(lines)})
}

func (h *handlers) cartTotals(c *gin.Context) {
	totals, err := h.carts.Totals(c.Request.Context(), principal(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "productId is required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	line, err := h.carts.Add(c.Request.Context(), principal(c), req.ProductID, req.Size, qty)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lineResponse(*line))
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		badRequest(c, "productId and quantity are required")
		return
	}
	line, removed, err := h.carts.SetQuantity(c.Request.Context(), principal(c), req.ProductID, req.Size, *req.Quantity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if line == nil {
		c.JSON(http.StatusOK, gin.H{"removed": removed})
		return
	}
	c.JSON(http.StatusOK, lineResponse(*line))
}

func (h *handlers) removeCartItem(c *gin.Context) {
	productID := c.Query("productId")
	if productID == "" {
		badRequest(c, "productId is required")
		return
	}
	removed, err := h.carts.Remove(c.Request.Context(), principal(c), productID, c.Query("size"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *handlers) clearCart(c *gin.Context) {
	n, err := h.carts.Clear(c.Request.Context(), principal(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

type cartLineResponse struct {
	domain.CartLine
	Subtotal string `json:"subtotal"`
}

func lineResponse(l domain.CartLine) cartLineResponse {
	return cartLineResponse{CartLine: l, Subtotal: l.Subtotal().StringFixed(2)}
}
