// Package domain contains the minimal work-order aggregate the material core
// reads. Scheduling, costing and crew management live elsewhere.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type WorkOrderStatus string

const (
	WorkOrderStatusOpen      WorkOrderStatus = "open"
	WorkOrderStatusActive    WorkOrderStatus = "active"
	WorkOrderStatusCompleted WorkOrderStatus = "completed"
	WorkOrderStatusCancelled WorkOrderStatus = "cancelled"
)

// WorkOrder is the job a material gets assigned to.
type WorkOrder struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	Number     string          `gorm:"type:text;not null;uniqueIndex:ux_work_orders_number" json:"number"`
	Title      string          `gorm:"type:text;not null" json:"title"`
	ClientName string          `gorm:"type:text" json:"client_name"`
	ClientType string          `gorm:"type:text" json:"client_type"`
	Status     WorkOrderStatus `gorm:"type:text;not null;default:'open';index" json:"status"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (WorkOrder) TableName() string { return "work_orders" }

// AcceptsAssignments reports whether new material can still be committed.
func (w WorkOrder) AcceptsAssignments() bool {
	return w.Status == WorkOrderStatusOpen || w.Status == WorkOrderStatusActive
}
