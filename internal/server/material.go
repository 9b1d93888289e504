package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	"github.com/sitelane/materialflow/pkg/db/pagination"
)

type createMaterialRequest struct {
	Code         string           `json:"code"`
	Description  string           `json:"description"`
	Unit         string           `json:"unit"`
	MaterialType string           `json:"material_type"`
	ClientType   string           `json:"client_type"`
	UnitCost     decimal.Decimal  `json:"unit_cost"`
	Currency     string           `json:"currency"`
	MinimumStock decimal.Decimal  `json:"minimum_stock"`
	ReorderPoint decimal.Decimal  `json:"reorder_point"`
}

func (s *Server) CreateMaterial(c *gin.Context) {
	var req createMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.materialSvc.Create(c.Request.Context(), materialdomain.CreateMaterialRequest{
		Code:         strings.TrimSpace(req.Code),
		Description:  strings.TrimSpace(req.Description),
		Unit:         strings.TrimSpace(req.Unit),
		MaterialType: materialdomain.MaterialType(strings.TrimSpace(req.MaterialType)),
		ClientType:   strings.TrimSpace(req.ClientType),
		UnitCost:     req.UnitCost,
		Currency:     strings.TrimSpace(req.Currency),
		MinimumStock: req.MinimumStock,
		ReorderPoint: req.ReorderPoint,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMaterials(c *gin.Context) {
	var query struct {
		pagination.Pagination
		MaterialType    string `form:"material_type"`
		Search          string `form:"search"`
		IncludeInactive string `form:"include_inactive"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	includeInactive, err := parseOptionalBool(query.IncludeInactive)
	if err != nil {
		AbortWithError(c, newValidationError("include_inactive", "invalid_include_inactive", "invalid include_inactive"))
		return
	}

	resp, err := s.materialSvc.List(c.Request.Context(), materialdomain.ListMaterialRequest{
		Pagination:      query.Pagination,
		MaterialType:    strings.TrimSpace(query.MaterialType),
		Search:          strings.TrimSpace(query.Search),
		IncludeInactive: includeInactive != nil && *includeInactive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetMaterial accepts either the numeric id or the catalog code. Code
// lookups go through the read cache since the catalog changes rarely.
func (s *Server) GetMaterial(c *gin.Context) {
	key := strings.TrimSpace(c.Param("id"))

	if _, err := snowflake.ParseString(key); err == nil {
		resp, err := s.materialSvc.GetByID(c.Request.Context(), key)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": resp})
		return
	}

	if cached, ok := s.stockCache.GetMaterialByCode(key); ok {
		c.JSON(http.StatusOK, gin.H{"data": cached})
		return
	}

	resp, err := s.materialSvc.GetByCode(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.stockCache.SetMaterialByCode(key, resp)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateMaterialRequest struct {
	Description  *string          `json:"description"`
	Unit         *string          `json:"unit"`
	ClientType   *string          `json:"client_type"`
	UnitCost     *decimal.Decimal `json:"unit_cost"`
	Currency     *string          `json:"currency"`
	MinimumStock *decimal.Decimal `json:"minimum_stock"`
	ReorderPoint *decimal.Decimal `json:"reorder_point"`
}

func (s *Server) UpdateMaterial(c *gin.Context) {
	var req updateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.materialSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), materialdomain.UpdateMaterialRequest{
		Description:  req.Description,
		Unit:         req.Unit,
		ClientType:   req.ClientType,
		UnitCost:     req.UnitCost,
		Currency:     req.Currency,
		MinimumStock: req.MinimumStock,
		ReorderPoint: req.ReorderPoint,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateMaterial(c *gin.Context) {
	resp, err := s.materialSvc.Deactivate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
