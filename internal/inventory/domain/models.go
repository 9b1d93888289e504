// Package domain contains the inventory ledger models. Stock numbers are
// never edited by other components directly; every mutation path funnels
// through the inventory service so the availability invariants hold.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// StockStatus is derived from stock levels against catalog thresholds.
type StockStatus string

const (
	StockStatusInStock      StockStatus = "in_stock"
	StockStatusLowStock     StockStatus = "low_stock"
	StockStatusOutOfStock   StockStatus = "out_of_stock"
	StockStatusOrdered      StockStatus = "ordered"
	StockStatusDiscontinued StockStatus = "discontinued"
)

// StockLevel aggregates one material's stock across warehouses.
// Invariants: available = total − reserved; total = Σ warehouse stocks.
// AvailableQuantity is computed on read, never stored.
type StockLevel struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	MaterialID       snowflake.ID    `gorm:"not null;uniqueIndex:ux_stock_levels_material" json:"material_id"`
	TotalQuantity    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_quantity"`
	ReservedQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"reserved_quantity"`
	Version          int64           `gorm:"not null;default:0" json:"version"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (StockLevel) TableName() string { return "stock_levels" }

// AvailableQuantity derives uncommitted stock.
func (s StockLevel) AvailableQuantity() decimal.Decimal {
	return s.TotalQuantity.Sub(s.ReservedQuantity)
}

// WarehouseStock holds one material's quantity at one warehouse.
type WarehouseStock struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	MaterialID  snowflake.ID    `gorm:"not null;uniqueIndex:ux_warehouse_stocks_material_warehouse,priority:1" json:"material_id"`
	WarehouseID snowflake.ID    `gorm:"not null;uniqueIndex:ux_warehouse_stocks_material_warehouse,priority:2;index" json:"warehouse_id"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	BinLocation string          `gorm:"type:text" json:"bin_location"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (WarehouseStock) TableName() string { return "warehouse_stocks" }

// WarehouseAvailability is one line of an availability answer.
type WarehouseAvailability struct {
	WarehouseID snowflake.ID    `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	BinLocation string          `json:"bin_location"`
}

// AvailabilityResult answers an availability query. Pure read; no mutation.
type AvailabilityResult struct {
	MaterialID            snowflake.ID            `json:"material_id"`
	IsAvailable           bool                    `json:"is_available"`
	RequiredQuantity      decimal.Decimal         `json:"required_quantity"`
	TotalAvailable        decimal.Decimal         `json:"total_available"`
	WarehouseAvailability []WarehouseAvailability `json:"warehouse_availability"`
}

// DeriveStockStatus derives the display status for a material.
// Discontinued wins over everything; an open purchasable order turns an empty
// shelf into "ordered" rather than "out_of_stock".
func DeriveStockStatus(active bool, total, minimumStock, reorderPoint decimal.Decimal, hasOpenOrders bool) StockStatus {
	if !active {
		return StockStatusDiscontinued
	}
	if total.IsZero() {
		if hasOpenOrders {
			return StockStatusOrdered
		}
		return StockStatusOutOfStock
	}
	if total.LessThanOrEqual(minimumStock) || total.LessThanOrEqual(reorderPoint) {
		return StockStatusLowStock
	}
	return StockStatusInStock
}
