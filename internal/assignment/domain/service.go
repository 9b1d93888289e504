package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateAssignmentRequest binds one material to one work order. Quantity is
// the ordered quantity for purchasables and the estimate for receivables.
type CreateAssignmentRequest struct {
	WorkOrderID string
	MaterialID  string
	Quantity    decimal.Decimal
	UnitCost    *decimal.Decimal
	Currency    string
	Notes       string
}

// TransitionPayload carries the auxiliary data some transitions require.
// ordered wants supplier info; delivered wants a warehouse or the direct
// to site flag; received wants the counted quantity.
type TransitionPayload struct {
	SupplierName     string
	OrderReference   string
	ExpectedDelivery *time.Time
	WarehouseID      string
	DirectToSite     bool
	BinLocation      string
	DeliveryNote     string
	ReceivedQuantity *decimal.Decimal
}

type Service interface {
	Create(ctx context.Context, req CreateAssignmentRequest) (Assignment, error)
	Transition(ctx context.Context, id string, target Status, payload TransitionPayload) (Assignment, error)
	// Override jumps the status forward without the usual step and
	// precondition checks. Every call is audit-logged with the reason.
	Override(ctx context.Context, id string, target Status, reason string) (Assignment, error)
	GetByID(ctx context.Context, id string) (Assignment, error)
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]Assignment, error)

	// GetForUpdateTx loads the aggregate under a row lock inside the
	// caller's transaction. Usage and reallocation flows use it.
	GetForUpdateTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Assignment, error)
	// SetStatusTx moves the detail status inside the caller's transaction.
	// The step must still be a legal forward transition.
	SetStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, target Status) error
	// CreateForReallocationTx creates a pending assignment on a target work
	// order carrying quantity moved from another assignment.
	CreateForReallocationTx(ctx context.Context, tx *gorm.DB, source Assignment, targetWorkOrderID snowflake.ID, quantity decimal.Decimal) (Assignment, error)
}

var (
	ErrInvalidID           = errors.New("invalid_assignment_id")
	ErrInvalidQuantity     = errors.New("invalid_assignment_quantity")
	ErrTypeMismatch        = errors.New("material_type_mismatch")
	ErrInvalidStatus       = errors.New("invalid_assignment_status")
	ErrInvalidTransition   = errors.New("invalid_status_transition")
	ErrStatusNotReachable  = errors.New("status_requires_usage_records")
	ErrMissingDeliveryInfo = errors.New("missing_delivery_info")
	ErrMissingReceiptInfo  = errors.New("missing_receipt_info")
	ErrDetailCorrupt       = errors.New("assignment_detail_corrupt")
	ErrNotFound            = errors.New("assignment_not_found")
)
