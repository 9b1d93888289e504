package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	warehousedomain "github.com/sitelane/materialflow/internal/warehouse/domain"
)

type createWarehouseRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

func (s *Server) CreateWarehouse(c *gin.Context) {
	var req createWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.warehouseSvc.Create(c.Request.Context(), warehousedomain.CreateWarehouseRequest{
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
		City:    strings.TrimSpace(req.City),
		Country: strings.TrimSpace(req.Country),
		Phone:   strings.TrimSpace(req.Phone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWarehouses(c *gin.Context) {
	resp, err := s.warehouseSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetWarehouse(c *gin.Context) {
	resp, err := s.warehouseSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateWarehouseRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	City    *string `json:"city"`
	Country *string `json:"country"`
	Phone   *string `json:"phone"`
}

func (s *Server) UpdateWarehouse(c *gin.Context) {
	var req updateWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.warehouseSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), warehousedomain.UpdateWarehouseRequest{
		Name:    req.Name,
		Address: req.Address,
		City:    req.City,
		Country: req.Country,
		Phone:   req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateWarehouse(c *gin.Context) {
	resp, err := s.warehouseSvc.Deactivate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
