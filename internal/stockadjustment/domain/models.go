// Package domain models manual corrections to recorded inventory.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AdjustmentType selects how the quantity is applied to the ledger.
type AdjustmentType string

const (
	// AdjustmentIncrease adds quantity to the warehouse stock.
	AdjustmentIncrease AdjustmentType = "increase"
	// AdjustmentDecrease removes quantity from the warehouse stock.
	AdjustmentDecrease AdjustmentType = "decrease"
	// AdjustmentSetAbsolute overwrites the warehouse quantity, as after a
	// physical count.
	AdjustmentSetAbsolute AdjustmentType = "set_absolute"
)

// Valid reports whether t is a known adjustment type.
func (t AdjustmentType) Valid() bool {
	return t == AdjustmentIncrease || t == AdjustmentDecrease || t == AdjustmentSetAbsolute
}

// Status is the review position of an adjustment. Approval is optional;
// a pending adjustment may be applied directly.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// StockAdjustment is one manual ledger correction. AppliedAt enforces
// exactly-once application.
type StockAdjustment struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	MaterialID     snowflake.ID    `gorm:"not null;index" json:"material_id"`
	WarehouseID    snowflake.ID    `gorm:"not null;index" json:"warehouse_id"`
	AdjustmentType AdjustmentType  `gorm:"type:varchar(16);not null" json:"adjustment_type"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Reason         string          `gorm:"type:text;not null" json:"reason"`
	Status         Status          `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	SubmittedBy    string          `gorm:"type:text;not null" json:"submitted_by"`
	ApprovedBy     string          `gorm:"type:text" json:"approved_by,omitempty"`
	RejectedBy     string          `gorm:"type:text" json:"rejected_by,omitempty"`
	AppliedBy      string          `gorm:"type:text" json:"applied_by,omitempty"`
	AppliedAt      *time.Time      `json:"applied_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (StockAdjustment) TableName() string { return "stock_adjustments" }

// Applied reports whether the adjustment already hit the ledger.
func (a StockAdjustment) Applied() bool { return a.AppliedAt != nil }
