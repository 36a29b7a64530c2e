// internal/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gotchaguardian/payment-server/internal/catalog"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

type ProductHandler struct {
	catalog *catalog.Catalog
}

func NewProductHandler(cat *catalog.Catalog) *ProductHandler {
	return &ProductHandler{catalog: cat}
}

// GET /products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products := h.catalog.List()

	views := make([]map[string]interface{}, 0, len(products))
	for _, product := range products {
		views = append(views, product.PublicView())
	}

	utils.SuccessResponse(c, gin.H{"products": views})
}

// GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, ok := h.catalog.Get(c.Param("id"))
	if !ok {
		utils.NotFoundResponse(c, "Product")
		return
	}

	utils.SuccessResponse(c, product.PublicView())
}
