package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetStockLevel(c *gin.Context) {
	level, warehouseStocks, err := s.inventorySvc.GetStockLevel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"stock_level":        level,
		"available_quantity": level.AvailableQuantity(),
		"warehouse_stocks":   warehouseStocks,
	}})
}

// GetStockStatus serves the derived status through a short TTL cache; the
// dashboards poll it per material and the derivation hits three tables.
func (s *Server) GetStockStatus(c *gin.Context) {
	materialID := strings.TrimSpace(c.Param("id"))

	if status, ok := s.stockCache.GetStatus(materialID); ok {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"material_id": materialID, "status": status}})
		return
	}

	status, err := s.inventorySvc.StockStatusFor(c.Request.Context(), materialID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.stockCache.SetStatus(materialID, status)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"material_id": materialID, "status": status}})
}

func (s *Server) CheckAvailability(c *gin.Context) {
	required, err := parseQuantity(c.Query("quantity"))
	if err != nil {
		AbortWithError(c, newValidationError("quantity", "invalid_quantity", "invalid quantity"))
		return
	}

	resp, err := s.inventorySvc.CheckAvailability(c.Request.Context(), strings.TrimSpace(c.Param("id")), required)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
