package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type SubmitAdjustmentRequest struct {
	MaterialID     string
	WarehouseID    string
	AdjustmentType AdjustmentType
	Quantity       decimal.Decimal
	Reason         string
}

type Service interface {
	Submit(ctx context.Context, req SubmitAdjustmentRequest) (StockAdjustment, error)
	Approve(ctx context.Context, id string) (StockAdjustment, error)
	Reject(ctx context.Context, id string, reason string) (StockAdjustment, error)
	// Apply pushes the correction into the ledger exactly once. A second
	// attempt fails and leaves the ledger unchanged.
	Apply(ctx context.Context, id string) (StockAdjustment, error)
	GetByID(ctx context.Context, id string) (StockAdjustment, error)
	List(ctx context.Context) ([]StockAdjustment, error)
}

var (
	ErrInvalidID       = errors.New("invalid_adjustment_id")
	ErrInvalidType     = errors.New("invalid_adjustment_type")
	ErrInvalidQuantity = errors.New("invalid_adjustment_quantity")
	ErrMissingReason   = errors.New("missing_adjustment_reason")
	ErrInvalidStatus   = errors.New("invalid_adjustment_status")
	// ErrApprovalRequired fires when the stock policy demands a review
	// before pending adjustments may apply.
	ErrApprovalRequired = errors.New("adjustment_approval_required")
	ErrAlreadyApplied   = errors.New("adjustment_already_applied")
	ErrNotFound         = errors.New("adjustment_not_found")
)
