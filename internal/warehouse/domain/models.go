// Package domain contains persistence models for the warehouse registry.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Warehouse is a physical stock location referenced by the inventory ledger,
// deliveries and adjustments.
type Warehouse struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_warehouses_name" json:"name"`
	Address   string       `gorm:"type:text" json:"address"`
	City      string       `gorm:"type:text" json:"city"`
	Country   string       `gorm:"type:text" json:"country"`
	Phone     string       `gorm:"type:text" json:"phone"`
	Active    bool         `gorm:"not null;default:true;index" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Warehouse) TableName() string { return "warehouses" }
