package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
)

type createAssignmentRequest struct {
	WorkOrderID string           `json:"work_order_id"`
	MaterialID  string           `json:"material_id"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
	Currency    string           `json:"currency"`
	Notes       string           `json:"notes"`
}

func (s *Server) CreateAssignment(c *gin.Context) {
	var req createAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.assignmentSvc.Create(c.Request.Context(), assignmentdomain.CreateAssignmentRequest{
		WorkOrderID: strings.TrimSpace(req.WorkOrderID),
		MaterialID:  strings.TrimSpace(req.MaterialID),
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		Currency:    strings.TrimSpace(req.Currency),
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAssignment(c *gin.Context) {
	resp, err := s.assignmentSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type transitionAssignmentRequest struct {
	Status           string           `json:"status"`
	SupplierName     string           `json:"supplier_name"`
	OrderReference   string           `json:"order_reference"`
	ExpectedDelivery string           `json:"expected_delivery"`
	WarehouseID      string           `json:"warehouse_id"`
	DirectToSite     bool             `json:"direct_to_site"`
	BinLocation      string           `json:"bin_location"`
	DeliveryNote     string           `json:"delivery_note"`
	ReceivedQuantity *decimal.Decimal `json:"received_quantity"`
}

func (s *Server) TransitionAssignment(c *gin.Context) {
	var req transitionAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var expectedDelivery *time.Time
	if trimmed := strings.TrimSpace(req.ExpectedDelivery); trimmed != "" {
		parsed, err := parseOptionalTime(trimmed, false)
		if err != nil {
			AbortWithError(c, newValidationError("expected_delivery", "invalid_expected_delivery", "invalid expected_delivery"))
			return
		}
		expectedDelivery = parsed
	}

	target := assignmentdomain.Status(strings.TrimSpace(req.Status))
	resp, err := s.assignmentSvc.Transition(c.Request.Context(), strings.TrimSpace(c.Param("id")), target, assignmentdomain.TransitionPayload{
		SupplierName:     strings.TrimSpace(req.SupplierName),
		OrderReference:   strings.TrimSpace(req.OrderReference),
		ExpectedDelivery: expectedDelivery,
		WarehouseID:      strings.TrimSpace(req.WarehouseID),
		DirectToSite:     req.DirectToSite,
		BinLocation:      strings.TrimSpace(req.BinLocation),
		DeliveryNote:     strings.TrimSpace(req.DeliveryNote),
		ReceivedQuantity: req.ReceivedQuantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type overrideAssignmentRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (s *Server) OverrideAssignmentStatus(c *gin.Context) {
	var req overrideAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		AbortWithError(c, newValidationError("reason", "missing_override_reason", "override reason is required"))
		return
	}

	target := assignmentdomain.Status(strings.TrimSpace(req.Status))
	resp, err := s.assignmentSvc.Override(c.Request.Context(), strings.TrimSpace(c.Param("id")), target, reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAssignmentProgress(c *gin.Context) {
	resp, err := s.usageSvc.Progress(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
