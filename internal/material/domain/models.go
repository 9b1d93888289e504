// Package domain contains persistence models for the material catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MaterialType distinguishes who procures the material.
type MaterialType string

const (
	// MaterialTypePurchasable is bought and installed by the contractor.
	MaterialTypePurchasable MaterialType = "purchasable"
	// MaterialTypeReceivable is supplied by the client, tracked but not purchased.
	MaterialTypeReceivable MaterialType = "receivable"
)

func (t MaterialType) Valid() bool {
	return t == MaterialTypePurchasable || t == MaterialTypeReceivable
}

// Material is a catalog entry. Identity (ID, code) is immutable; descriptive
// and cost attributes are mutable. Entries are soft-deactivated, never deleted.
type Material struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	Code         string          `gorm:"type:text;not null;uniqueIndex:ux_materials_code" json:"code"`
	Description  string          `gorm:"type:text;not null" json:"description"`
	Unit         string          `gorm:"type:text;not null" json:"unit"`
	MaterialType MaterialType    `gorm:"type:text;not null;index" json:"material_type"`
	ClientType   string          `gorm:"type:text" json:"client_type"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_cost"`
	Currency     string          `gorm:"type:text;not null;default:'USD'" json:"currency"`
	MinimumStock decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"minimum_stock"`
	ReorderPoint decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"reorder_point"`
	Active       bool            `gorm:"not null;default:true;index" json:"active"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Material) TableName() string { return "materials" }
