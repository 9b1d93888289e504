package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	stockadjustmentdomain "github.com/sitelane/materialflow/internal/stockadjustment/domain"
)

type submitStockAdjustmentRequest struct {
	MaterialID     string          `json:"material_id"`
	WarehouseID    string          `json:"warehouse_id"`
	AdjustmentType string          `json:"adjustment_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	Reason         string          `json:"reason"`
}

func (s *Server) SubmitStockAdjustment(c *gin.Context) {
	var req submitStockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.stockAdjustmentSvc.Submit(c.Request.Context(), stockadjustmentdomain.SubmitAdjustmentRequest{
		MaterialID:     strings.TrimSpace(req.MaterialID),
		WarehouseID:    strings.TrimSpace(req.WarehouseID),
		AdjustmentType: stockadjustmentdomain.AdjustmentType(strings.TrimSpace(req.AdjustmentType)),
		Quantity:       req.Quantity,
		Reason:         strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStockAdjustments(c *gin.Context) {
	resp, err := s.stockAdjustmentSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStockAdjustment(c *gin.Context) {
	resp, err := s.stockAdjustmentSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApproveStockAdjustment(c *gin.Context) {
	resp, err := s.stockAdjustmentSvc.Approve(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type rejectStockAdjustmentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RejectStockAdjustment(c *gin.Context) {
	var req rejectStockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		AbortWithError(c, newValidationError("reason", "missing_reject_reason", "reject reason is required"))
		return
	}

	resp, err := s.stockAdjustmentSvc.Reject(c.Request.Context(), strings.TrimSpace(c.Param("id")), reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyStockAdjustment(c *gin.Context) {
	resp, err := s.stockAdjustmentSvc.Apply(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
