// Package domain models the binding of a catalog material to a work order.
// An assignment carries exactly one detail variant, purchasable or
// receivable, selected by the material type.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
)

// Status is the sub-lifecycle position of an assignment detail.
// Purchasable: pending → ordered → delivered → in_use → used.
// Receivable: pending → ordered → received → used, where ordered may be
// skipped. Strictly forward; in_use and used are reached through usage
// records, not through the plain transition path.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOrdered   Status = "ordered"
	StatusDelivered Status = "delivered"
	StatusReceived  Status = "received"
	StatusInUse     Status = "in_use"
	StatusUsed      Status = "used"
)

// MaterialAssignment is the persistent core shared by both variants.
type MaterialAssignment struct {
	ID           snowflake.ID                `gorm:"primaryKey" json:"id"`
	WorkOrderID  snowflake.ID                `gorm:"not null;index:idx_material_assignments_work_order" json:"work_order_id"`
	MaterialID   snowflake.ID                `gorm:"not null;index:idx_material_assignments_material" json:"material_id"`
	MaterialType materialdomain.MaterialType `gorm:"type:varchar(16);not null" json:"material_type"`
	Unit         string                      `gorm:"type:varchar(16);not null" json:"unit"`
	AssignedBy   string                      `gorm:"type:text;not null" json:"assigned_by"`
	AssignDate   time.Time                   `gorm:"not null" json:"assign_date"`
	Notes        string                      `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (MaterialAssignment) TableName() string { return "material_assignments" }

// PurchasableDetail is the variant for material the contractor buys.
// Delivery fields are set once, on the transition into delivered.
type PurchasableDetail struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	AssignmentID     snowflake.ID    `gorm:"not null;uniqueIndex:ux_purchasable_details_assignment" json:"assignment_id"`
	Status           Status          `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_cost"`
	Currency         string          `gorm:"type:varchar(8);not null;default:USD" json:"currency"`
	SupplierName     string          `gorm:"type:text" json:"supplier_name"`
	OrderReference   string          `gorm:"type:text" json:"order_reference"`
	OrderedAt        *time.Time      `json:"ordered_at,omitempty"`
	ExpectedDelivery *time.Time      `json:"expected_delivery,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	WarehouseID      *snowflake.ID   `json:"warehouse_id,omitempty"`
	DirectToSite     bool            `gorm:"not null;default:false" json:"direct_to_site"`
	DeliveryNote     string          `gorm:"type:text" json:"delivery_note"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PurchasableDetail) TableName() string { return "purchasable_details" }

// ReceivableDetail is the variant for client-supplied material.
// ReceivedQuantity is set once, on the transition into received.
type ReceivableDetail struct {
	ID                snowflake.ID     `gorm:"primaryKey" json:"id"`
	AssignmentID      snowflake.ID     `gorm:"not null;uniqueIndex:ux_receivable_details_assignment" json:"assignment_id"`
	Status            Status           `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	EstimatedQuantity decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"estimated_quantity"`
	ReceivedQuantity  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"received_quantity,omitempty"`
	ReceivedAt        *time.Time       `json:"received_at,omitempty"`
	ReceivedBy        string           `gorm:"type:text" json:"received_by"`
	UpdatedAt         time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ReceivableDetail) TableName() string { return "receivable_details" }

// Detail is the assignment's variant payload. Exactly one concrete type
// backs it at any time; the marker method keeps the set closed.
type Detail interface {
	Kind() materialdomain.MaterialType
	CurrentStatus() Status
}

func (PurchasableDetail) Kind() materialdomain.MaterialType { return materialdomain.MaterialTypePurchasable }
func (d PurchasableDetail) CurrentStatus() Status           { return d.Status }

func (ReceivableDetail) Kind() materialdomain.MaterialType { return materialdomain.MaterialTypeReceivable }
func (d ReceivableDetail) CurrentStatus() Status           { return d.Status }

// Assignment is the loaded aggregate: the core row plus its single detail.
type Assignment struct {
	MaterialAssignment
	Detail Detail `json:"detail"`
}

// Status reports the detail's lifecycle position.
func (a Assignment) Status() Status {
	if a.Detail == nil {
		return StatusPending
	}
	return a.Detail.CurrentStatus()
}

// TotalQuantity is the conservation base for usage records. Receivables use
// the received quantity once known, falling back to the estimate.
func (a Assignment) TotalQuantity() decimal.Decimal {
	switch d := a.Detail.(type) {
	case PurchasableDetail:
		return d.Quantity
	case ReceivableDetail:
		if d.ReceivedQuantity != nil {
			return *d.ReceivedQuantity
		}
		return d.EstimatedQuantity
	default:
		return decimal.Zero
	}
}

// NextStatuses lists the legal one-step targets from a status for a given
// material type. Receivables may skip ordered.
func NextStatuses(materialType materialdomain.MaterialType, from Status) []Status {
	switch materialType {
	case materialdomain.MaterialTypePurchasable:
		switch from {
		case StatusPending:
			return []Status{StatusOrdered}
		case StatusOrdered:
			return []Status{StatusDelivered}
		case StatusDelivered:
			return []Status{StatusInUse}
		case StatusInUse:
			return []Status{StatusUsed}
		}
	case materialdomain.MaterialTypeReceivable:
		switch from {
		case StatusPending:
			return []Status{StatusOrdered, StatusReceived}
		case StatusOrdered:
			return []Status{StatusReceived}
		case StatusReceived:
			return []Status{StatusUsed}
		}
	}
	return nil
}

// CanTransition reports whether target is a legal single step from from.
func CanTransition(materialType materialdomain.MaterialType, from, target Status) bool {
	for _, next := range NextStatuses(materialType, from) {
		if next == target {
			return true
		}
	}
	return false
}

// statusRank orders statuses so overrides stay strictly forward.
func statusRank(materialType materialdomain.MaterialType, status Status) int {
	purchasable := materialType == materialdomain.MaterialTypePurchasable
	switch status {
	case StatusPending:
		return 0
	case StatusOrdered:
		return 1
	case StatusDelivered:
		if purchasable {
			return 2
		}
	case StatusReceived:
		if !purchasable {
			return 2
		}
	case StatusInUse:
		if purchasable {
			return 3
		}
	case StatusUsed:
		return 4
	}
	return -1
}

// IsForward reports whether target is ahead of from in the variant's
// lifecycle. Overrides may jump steps but never regress.
func IsForward(materialType materialdomain.MaterialType, from, target Status) bool {
	fromRank := statusRank(materialType, from)
	targetRank := statusRank(materialType, target)
	return fromRank >= 0 && targetRank > fromRank
}
