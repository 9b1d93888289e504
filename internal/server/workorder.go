package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	workorderdomain "github.com/sitelane/materialflow/internal/workorder/domain"
)

type createWorkOrderRequest struct {
	Number     string `json:"number"`
	Title      string `json:"title"`
	ClientName string `json:"client_name"`
	ClientType string `json:"client_type"`
}

func (s *Server) CreateWorkOrder(c *gin.Context) {
	var req createWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.workOrderSvc.Create(c.Request.Context(), workorderdomain.CreateWorkOrderRequest{
		Number:     strings.TrimSpace(req.Number),
		Title:      strings.TrimSpace(req.Title),
		ClientName: strings.TrimSpace(req.ClientName),
		ClientType: strings.TrimSpace(req.ClientType),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWorkOrders(c *gin.Context) {
	resp, err := s.workOrderSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetWorkOrder(c *gin.Context) {
	resp, err := s.workOrderSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setWorkOrderStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) SetWorkOrderStatus(c *gin.Context) {
	var req setWorkOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := workorderdomain.WorkOrderStatus(strings.TrimSpace(req.Status))
	resp, err := s.workOrderSvc.SetStatus(c.Request.Context(), strings.TrimSpace(c.Param("id")), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAssignmentsByWorkOrder(c *gin.Context) {
	resp, err := s.assignmentSvc.ListByWorkOrder(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
