// Package domain models moving unused assigned quantity between work
// orders through an approval workflow.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status is the reallocation workflow position.
// pending → approved → completed; pending → rejected.
// rejected and completed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// MaterialReallocation moves quantity from one work order's assignment to
// another work order.
type MaterialReallocation struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	MaterialID       snowflake.ID    `gorm:"not null;index" json:"material_id"`
	FromWorkOrderID  snowflake.ID    `gorm:"not null;index" json:"from_work_order_id"`
	ToWorkOrderID    snowflake.ID    `gorm:"not null;index" json:"to_work_order_id"`
	FromAssignmentID snowflake.ID    `gorm:"not null;index" json:"from_assignment_id"`
	ToAssignmentID   *snowflake.ID   `json:"to_assignment_id,omitempty"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Reason           string          `gorm:"type:text" json:"reason"`
	Status           Status          `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	RequestedBy      string          `gorm:"type:text;not null" json:"requested_by"`
	ApprovedBy       string          `gorm:"type:text" json:"approved_by,omitempty"`
	RejectedBy       string          `gorm:"type:text" json:"rejected_by,omitempty"`
	RejectReason     string          `gorm:"type:text" json:"reject_reason,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (MaterialReallocation) TableName() string { return "material_reallocations" }

// AuditEvent tags one audit trail entry.
type AuditEvent string

const (
	AuditEventRequested AuditEvent = "requested"
	AuditEventApproved  AuditEvent = "approved"
	AuditEventRejected  AuditEvent = "rejected"
	AuditEventCompleted AuditEvent = "completed"
	// AuditEventError records a failed execution attempt. The reallocation
	// itself stays approved so the execution can be retried.
	AuditEventError AuditEvent = "error"
)

// ReallocationAudit is one append-only trail entry, one per transition or
// failed execution.
type ReallocationAudit struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	ReallocationID snowflake.ID `gorm:"not null;index:idx_reallocation_audits_reallocation" json:"reallocation_id"`
	Event          AuditEvent   `gorm:"type:varchar(16);not null" json:"event"`
	Detail         string       `gorm:"type:text" json:"detail"`
	ActorName      string       `gorm:"type:text" json:"actor_name"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ReallocationAudit) TableName() string { return "reallocation_audits" }
