package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	reallocationdomain "github.com/sitelane/materialflow/internal/reallocation/domain"
)

type requestReallocationRequest struct {
	MaterialID      string          `json:"material_id"`
	FromWorkOrderID string          `json:"from_work_order_id"`
	ToWorkOrderID   string          `json:"to_work_order_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	Reason          string          `json:"reason"`
}

func (s *Server) RequestReallocation(c *gin.Context) {
	var req requestReallocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reallocationSvc.Request(c.Request.Context(), reallocationdomain.RequestReallocation{
		MaterialID:      strings.TrimSpace(req.MaterialID),
		FromWorkOrderID: strings.TrimSpace(req.FromWorkOrderID),
		ToWorkOrderID:   strings.TrimSpace(req.ToWorkOrderID),
		Quantity:        req.Quantity,
		Reason:          strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReallocations(c *gin.Context) {
	resp, err := s.reallocationSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReallocation(c *gin.Context) {
	reallocation, trail, err := s.reallocationSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"reallocation": reallocation,
		"audit_trail":  trail,
	}})
}

type approveReallocationRequest struct {
	Note string `json:"note"`
}

func (s *Server) ApproveReallocation(c *gin.Context) {
	var req approveReallocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reallocationSvc.Approve(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.Note))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type rejectReallocationRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RejectReallocation(c *gin.Context) {
	var req rejectReallocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		AbortWithError(c, newValidationError("reason", "missing_reject_reason", "reject reason is required"))
		return
	}

	resp, err := s.reallocationSvc.Reject(c.Request.Context(), strings.TrimSpace(c.Param("id")), reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExecuteReallocation(c *gin.Context) {
	resp, err := s.reallocationSvc.Execute(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
