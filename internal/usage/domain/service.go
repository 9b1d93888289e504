package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DispositionAction closes out or parks the leftover quantity of an
// assignment after consumption stopped.
type DispositionAction string

const (
	// ActionReturn restocks leftover purchasable quantity to its warehouse.
	ActionReturn DispositionAction = "return"
	// ActionWaste writes leftover quantity off.
	ActionWaste DispositionAction = "waste"
	// ActionReturnToClient hands leftover receivable quantity back.
	ActionReturnToClient DispositionAction = "return_to_client"
	// ActionReserveForLater parks leftover quantity on the same work order.
	ActionReserveForLater DispositionAction = "reserve_for_later"
)

type RecordUsageRequest struct {
	AssignmentID string
	QuantityUsed decimal.Decimal
	Notes        string
	PhotoIDs     []string
}

type RecordSiteIssueRequest struct {
	AssignmentID   string
	ReleasedBy     string
	ReceivedBySite string
	PhotoIDs       []string
}

type DispositionRequest struct {
	AssignmentID string
	Action       DispositionAction
	Reason       string
}

type Service interface {
	RecordUsage(ctx context.Context, req RecordUsageRequest) (UsageRecord, Progress, error)
	RecordSiteIssue(ctx context.Context, req RecordSiteIssueRequest) (UsageRecord, error)
	RecordReturnOrWaste(ctx context.Context, req DispositionRequest) (UsageRecord, Progress, error)
	ListRecords(ctx context.Context, assignmentID string) ([]UsageRecord, error)
	Progress(ctx context.Context, assignmentID string) (Progress, error)

	// ProgressTx derives progress under the caller's transaction, after the
	// caller locked the assignment. Reallocation approval re-validates
	// remaining quantity through this.
	ProgressTx(ctx context.Context, tx *gorm.DB, assignmentID snowflake.ID, total decimal.Decimal) (Progress, error)
	// AppendReallocationReturnTx moves quantity out of the assignment's
	// ledger as part of a reallocation execution.
	AppendReallocationReturnTx(ctx context.Context, tx *gorm.DB, assignmentID snowflake.ID, quantity decimal.Decimal, reallocationID snowflake.ID) (UsageRecord, error)
}

var (
	ErrInvalidQuantity     = errors.New("invalid_usage_quantity")
	ErrInvalidAction       = errors.New("invalid_disposition_action")
	ErrOverconsumption     = errors.New("overconsumption")
	ErrAssignmentNotOpen   = errors.New("assignment_not_open_for_usage")
	ErrSiteIssueRequired   = errors.New("site_issue_required")
	ErrSiteIssueDuplicate  = errors.New("site_issue_already_recorded")
	ErrSiteIssueTooLate    = errors.New("site_issue_after_usage")
	ErrNothingRemaining    = errors.New("nothing_remaining")
	ErrDispositionTooEarly = errors.New("disposition_requires_usage")
	ErrActionTypeMismatch  = errors.New("action_not_valid_for_material_type")
)
