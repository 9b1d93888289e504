package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type RequestReallocation struct {
	MaterialID      string
	FromWorkOrderID string
	ToWorkOrderID   string
	Quantity        decimal.Decimal
	Reason          string
}

type Service interface {
	Request(ctx context.Context, req RequestReallocation) (MaterialReallocation, error)
	// Approve re-validates the quantity against the source assignment's
	// current remaining quantity, not the figure at request time.
	Approve(ctx context.Context, id string, note string) (MaterialReallocation, error)
	Reject(ctx context.Context, id string, reason string) (MaterialReallocation, error)
	// Execute atomically moves the quantity: a return-type usage record on
	// the source and a fresh assignment on the target work order. Any
	// failure rolls the whole move back and leaves an error trail entry.
	Execute(ctx context.Context, id string) (MaterialReallocation, error)
	GetByID(ctx context.Context, id string) (MaterialReallocation, []ReallocationAudit, error)
	List(ctx context.Context) ([]MaterialReallocation, error)
}

var (
	ErrInvalidID            = errors.New("invalid_reallocation_id")
	ErrInvalidQuantity      = errors.New("invalid_reallocation_quantity")
	ErrSameWorkOrder        = errors.New("same_work_order")
	ErrInvalidStatus        = errors.New("invalid_reallocation_status")
	ErrInsufficientQuantity = errors.New("insufficient_remaining_quantity")
	ErrNoSourceAssignment   = errors.New("no_source_assignment")
	ErrNotFound             = errors.New("reallocation_not_found")
)
