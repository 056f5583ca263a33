package handlers

import (
	"net/http"

	"quoting/internal/logger"
	"quoting/internal/shopify"

	"github.com/gin-gonic/gin"
)

// ProductGetter is the Shopify surface the product endpoint reads through.
// Satisfied by *shopify.Client; nil means the integration is not configured.
type ProductGetter interface {
	GetProduct(productID string) (*shopify.Product, error)
}

type ProductHandler struct {
	logger  *logger.Logger
	shopify ProductGetter
}

func NewProductHandler(logger *logger.Logger, sh ProductGetter) *ProductHandler {
	return &ProductHandler{logger: logger, shopify: sh}
}

// Get proxies a product lookup so the quote form can show live titles and
// variant prices.
func (h *ProductHandler) Get(c *gin.Context) {
	if h.shopify == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Shopify integration not configured"})
		return
	}

	product, err := h.shopify.GetProduct(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to fetch product %s: %v", c.Param("id"), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product})
}
