package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	productsvc "storefront-core/internal/service/product"
)

func (h *handlers) listProducts(c *gin.Context) {
	inStock, _ := strconv.ParseBool(c.Query("inStock"))
	products, err := h.products.List(c.Request.Context(), productsvc.Filter{
		Category:    c.Query("category"),
		Brand:       c.Query("brand"),
		InStockOnly: inStock,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p, "inStock": p.InStock()})
}
