package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/painel-dev/painel/internal/catalog"
	"github.com/painel-dev/painel/internal/models"
)

const dateLayout = "2006-01-02"

// HistoryRecord is one movement period of a product
type HistoryRecord struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	OpeningStock    int    `json:"opening_stock"`
	InboundQuantity int    `json:"inbound_quantity"`
	SoldQuantity    int    `json:"sold_quantity"`
	ClosingStock    int    `json:"closing_stock"`
}

// ProductDetail is a product with its full history, oldest first
type ProductDetail struct {
	ID          string          `json:"id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	CreatedAt   time.Time       `json:"created_at"`
	History     []HistoryRecord `json:"history"`
}

func newProductDetail(p *models.Product) ProductDetail {
	history := make([]HistoryRecord, len(p.History))
	for i, h := range p.History {
		history[i] = HistoryRecord{
			ID:              h.ID,
			Date:            h.Date.UTC().Format(dateLayout),
			OpeningStock:    h.OpeningStock,
			InboundQuantity: h.InboundQuantity,
			SoldQuantity:    h.SoldQuantity,
			ClosingStock:    h.ClosingStock,
		}
	}

	return ProductDetail{
		ID:          p.ID,
		ProductCode: p.ProductCode,
		ProductName: p.ProductName,
		CreatedAt:   p.CreatedAt,
		History:     history,
	}
}

// @Summary Get product
// @Description Product with its movement history ordered by date
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param code path string true "Product code"
// @Success 200 {object} ProductDetail
// @Failure 404 {object} map[string]interface{}
// @Router /api/products/{code} [get]
func (s *Server) getProduct(c *gin.Context) {
	product, err := s.catalog.GetProductByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Produto não encontrado"})
			return
		}
		s.logger.Error().Err(err).Str("product_code", c.Param("code")).Msg("Failed to load product")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, newProductDetail(product))
}

// @Summary General KPIs
// @Description Sales of the newest month with data, the sales target and the product count
// @Tags kpis
// @Produce json
// @Security BearerAuth
// @Success 200 {object} catalog.KPIs
// @Router /api/kpis/gerais [get]
func (s *Server) getGeneralKPIs(c *gin.Context) {
	kpis, err := s.catalog.GeneralKPIs(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute KPIs")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, kpis)
}
