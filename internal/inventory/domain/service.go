package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service owns every stock mutation. Deliveries, issues, adjustments and
// reallocation restocks all funnel through here.
type Service interface {
	CheckAvailability(ctx context.Context, materialID string, required decimal.Decimal) (AvailabilityResult, error)
	GetStockLevel(ctx context.Context, materialID string) (StockLevel, []WarehouseStock, error)
	StockStatusFor(ctx context.Context, materialID string) (StockStatus, error)

	ApplyDelivery(ctx context.Context, materialID, warehouseID snowflake.ID, quantity decimal.Decimal, binLocation string) error
	ApplyIssue(ctx context.Context, materialID, warehouseID snowflake.ID, quantity decimal.Decimal) error
	Reserve(ctx context.Context, materialID snowflake.ID, quantity decimal.Decimal) error
	Release(ctx context.Context, materialID snowflake.ID, quantity decimal.Decimal) error

	// Tx variants run inside a caller-owned transaction so multi-entity
	// operations (reallocation execute, adjustment apply) stay atomic.
	ApplyDeliveryTx(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID, quantity decimal.Decimal, binLocation string) error
	ApplyIssueTx(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID, quantity decimal.Decimal) error
	SetWarehouseQuantityTx(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID, quantity decimal.Decimal) error
}

var (
	ErrInvalidMaterialID  = errors.New("invalid_material_id")
	ErrInvalidWarehouseID = errors.New("invalid_warehouse_id")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInsufficientStock  = errors.New("insufficient_stock")
	ErrReservationTooHigh = errors.New("reservation_exceeds_stock")
	ErrReleaseTooHigh     = errors.New("release_exceeds_reservation")
	ErrConcurrentUpdate   = errors.New("stock_level_concurrent_update")
	ErrNotFound           = errors.New("stock_level_not_found")
)
