// Package domain models low-stock alerts raised by the reconciliation loop.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
)

type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

// StockAlert flags a material sitting at or below its threshold. At most
// one active alert exists per material; repeat observations refresh it
// instead of stacking duplicates.
type StockAlert struct {
	ID             snowflake.ID                `gorm:"primaryKey" json:"id"`
	MaterialID     snowflake.ID                `gorm:"not null;index:idx_stock_alerts_material" json:"material_id"`
	Status         AlertStatus                 `gorm:"type:varchar(16);not null;default:active" json:"status"`
	StockStatus    inventorydomain.StockStatus `gorm:"type:varchar(16);not null" json:"stock_status"`
	TotalQuantity  decimal.Decimal             `gorm:"type:decimal(20,4);not null" json:"total_quantity"`
	Threshold      decimal.Decimal             `gorm:"type:decimal(20,4);not null" json:"threshold"`
	Message        string                      `gorm:"type:text" json:"message"`
	LastObservedAt time.Time                   `gorm:"not null" json:"last_observed_at"`
	ResolvedAt     *time.Time                  `json:"resolved_at,omitempty"`
	CreatedAt      time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (StockAlert) TableName() string { return "stock_alerts" }
