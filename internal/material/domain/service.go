package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sitelane/materialflow/pkg/db/pagination"
)

type CreateMaterialRequest struct {
	Code         string
	Description  string
	Unit         string
	MaterialType MaterialType
	ClientType   string
	UnitCost     decimal.Decimal
	Currency     string
	MinimumStock decimal.Decimal
	ReorderPoint decimal.Decimal
}

type UpdateMaterialRequest struct {
	Description  *string
	Unit         *string
	ClientType   *string
	UnitCost     *decimal.Decimal
	Currency     *string
	MinimumStock *decimal.Decimal
	ReorderPoint *decimal.Decimal
}

type ListMaterialRequest struct {
	pagination.Pagination
	MaterialType    string
	Search          string
	IncludeInactive bool
}

type ListMaterialResponse struct {
	pagination.PageInfo
	Materials []Material `json:"materials"`
}

type Service interface {
	Create(ctx context.Context, req CreateMaterialRequest) (Material, error)
	Update(ctx context.Context, id string, req UpdateMaterialRequest) (Material, error)
	Deactivate(ctx context.Context, id string) (Material, error)
	GetByID(ctx context.Context, id string) (Material, error)
	GetByCode(ctx context.Context, code string) (Material, error)
	List(ctx context.Context, req ListMaterialRequest) (ListMaterialResponse, error)
}

var (
	ErrInvalidID        = errors.New("invalid_material_id")
	ErrInvalidCode      = errors.New("invalid_material_code")
	ErrCodeTaken        = errors.New("material_code_taken")
	ErrInvalidType      = errors.New("invalid_material_type")
	ErrInvalidUnit      = errors.New("invalid_material_unit")
	ErrInvalidCost      = errors.New("invalid_material_cost")
	ErrInvalidThreshold = errors.New("invalid_stock_threshold")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("material_not_found")
	ErrInactive         = errors.New("material_inactive")
)
