// Package domain holds the append-only usage ledger. Records are immutable
// once written; corrections are new records. Cumulative and remaining
// figures are derived from the ledger on read, never stored.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RecordType tags one ledger entry.
type RecordType string

const (
	// RecordTypeSiteIssue marks the handoff to the site crew. Purchasable
	// only, at most once, before any usage update.
	RecordTypeSiteIssue RecordType = "site_issue"
	// RecordTypeUsageUpdate consumes quantity against the assignment.
	RecordTypeUsageUpdate RecordType = "usage_update"
	// RecordTypeReturn sends leftover purchasable stock back to the warehouse.
	RecordTypeReturn RecordType = "return"
	// RecordTypeWaste writes leftover quantity off as unusable.
	RecordTypeWaste RecordType = "waste"
	// RecordTypeReturnToClient hands leftover receivable stock back.
	RecordTypeReturnToClient RecordType = "return_to_client"
	// RecordTypeReserveForLater keeps leftover quantity parked on the same
	// work order without closing the assignment.
	RecordTypeReserveForLater RecordType = "reserve_for_later"
)

// UsageRecord is one immutable ledger entry. Only the fields matching the
// record type are populated.
type UsageRecord struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	AssignmentID     snowflake.ID     `gorm:"not null;index:idx_usage_records_assignment" json:"assignment_id"`
	RecordType       RecordType       `gorm:"type:varchar(24);not null" json:"record_type"`
	QuantityUsed     *decimal.Decimal `gorm:"type:decimal(20,4)" json:"quantity_used,omitempty"`
	QuantityReturned *decimal.Decimal `gorm:"type:decimal(20,4)" json:"quantity_returned,omitempty"`
	QuantityWasted   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"quantity_wasted,omitempty"`
	WasteReason      string           `gorm:"type:text" json:"waste_reason,omitempty"`
	ReleasedBy       string           `gorm:"type:text" json:"released_by,omitempty"`
	ReceivedBySite   string           `gorm:"type:text" json:"received_by_site,omitempty"`
	ReallocationID   *snowflake.ID    `gorm:"index" json:"reallocation_id,omitempty"`
	Notes            string           `gorm:"type:text" json:"notes,omitempty"`
	PhotoIDs         datatypes.JSON   `json:"photo_ids,omitempty"`
	RecordedBy       string           `gorm:"type:text;not null" json:"recorded_by"`
	RecordDate       time.Time        `gorm:"not null" json:"record_date"`
	CreatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// Progress is the derived view over one assignment's ledger.
// Remaining = total − used − returned − wasted; reserved quantity stays
// attached to the work order and does not reduce it.
type Progress struct {
	AssignmentID   snowflake.ID    `json:"assignment_id"`
	TotalQuantity  decimal.Decimal `json:"total_quantity"`
	CumulativeUsed decimal.Decimal `json:"cumulative_used"`
	Returned       decimal.Decimal `json:"returned"`
	Wasted         decimal.Decimal `json:"wasted"`
	Remaining      decimal.Decimal `json:"remaining"`
	// UsedPercentage is round-half-up for display. Conservation checks
	// always compare raw decimals, never this figure.
	UsedPercentage int        `json:"used_percentage"`
	RecordCount    int        `json:"record_count"`
	SiteIssued     bool       `json:"site_issued"`
	LastRecordAt   *time.Time `json:"last_record_at,omitempty"`
}

// DeriveProgress folds the ledger into the derived aggregate.
func DeriveProgress(assignmentID snowflake.ID, total decimal.Decimal, records []UsageRecord) Progress {
	p := Progress{
		AssignmentID:  assignmentID,
		TotalQuantity: total,
	}
	for _, record := range records {
		p.RecordCount++
		recordDate := record.RecordDate
		if p.LastRecordAt == nil || recordDate.After(*p.LastRecordAt) {
			p.LastRecordAt = &recordDate
		}
		switch record.RecordType {
		case RecordTypeSiteIssue:
			p.SiteIssued = true
		case RecordTypeUsageUpdate:
			if record.QuantityUsed != nil {
				p.CumulativeUsed = p.CumulativeUsed.Add(*record.QuantityUsed)
			}
		case RecordTypeReturn, RecordTypeReturnToClient:
			if record.QuantityReturned != nil {
				p.Returned = p.Returned.Add(*record.QuantityReturned)
			}
		case RecordTypeWaste:
			if record.QuantityWasted != nil {
				p.Wasted = p.Wasted.Add(*record.QuantityWasted)
			}
		}
	}
	p.Remaining = total.Sub(p.CumulativeUsed).Sub(p.Returned).Sub(p.Wasted)
	if total.IsPositive() {
		p.UsedPercentage = int(p.CumulativeUsed.Div(total).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	return p
}
