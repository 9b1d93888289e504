package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/identity"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	"github.com/sitelane/materialflow/internal/observability/metrics"
	"github.com/sitelane/materialflow/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	AssignmentSvc assignmentdomain.Service
	InventorySvc  inventorydomain.Service
	AuditSvc      auditdomain.Service
	Metrics       *metrics.Metrics
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	assignmentSvc assignmentdomain.Service
	inventorySvc  inventorydomain.Service
	auditSvc      auditdomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("usage.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		assignmentSvc: p.AssignmentSvc,
		inventorySvc:  p.InventorySvc,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
	}
}

// RecordUsage appends a consumption event. The conservation check runs on
// raw decimals before anything is written; a violation leaves the ledger
// untouched.
func (s *Service) RecordUsage(ctx context.Context, req domain.RecordUsageRequest) (domain.UsageRecord, domain.Progress, error) {
	if !req.QuantityUsed.IsPositive() {
		return domain.UsageRecord{}, domain.Progress{}, domain.ErrInvalidQuantity
	}
	assignmentID, err := parseAssignmentID(req.AssignmentID)
	if err != nil {
		return domain.UsageRecord{}, domain.Progress{}, err
	}

	var (
		record   domain.UsageRecord
		progress domain.Progress
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err := s.assignmentSvc.GetForUpdateTx(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if !acceptsUsage(assignment) {
			return domain.ErrAssignmentNotOpen
		}

		total := assignment.TotalQuantity()
		progress, err = s.ProgressTx(ctx, tx, assignmentID, total)
		if err != nil {
			return err
		}
		if assignment.MaterialType == materialdomain.MaterialTypePurchasable && !progress.SiteIssued {
			return domain.ErrSiteIssueRequired
		}

		cumulative := progress.CumulativeUsed.Add(req.QuantityUsed)
		if cumulative.GreaterThan(total.Sub(progress.Returned).Sub(progress.Wasted)) {
			return domain.ErrOverconsumption
		}

		record, err = s.appendRecord(ctx, tx, domain.UsageRecord{
			AssignmentID: assignmentID,
			RecordType:   domain.RecordTypeUsageUpdate,
			QuantityUsed: &req.QuantityUsed,
			Notes:        strings.TrimSpace(req.Notes),
		}, req.PhotoIDs)
		if err != nil {
			return err
		}

		progress = applyRecord(progress, record)
		if progress.Remaining.IsZero() {
			if err := s.assignmentSvc.SetStatusTx(ctx, tx, assignmentID, assignmentdomain.StatusUsed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.UsageRecord{}, domain.Progress{}, err
	}

	s.metrics.RecordUsageRecord(ctx, string(domain.RecordTypeUsageUpdate))
	targetID := assignmentID.String()
	_ = s.auditSvc.AuditLog(ctx, "usage.record", "material_assignment", &targetID, map[string]any{
		"quantity_used": req.QuantityUsed.String(),
		"remaining":     progress.Remaining.String(),
	})

	return record, progress, nil
}

// RecordSiteIssue marks the warehouse-to-site handoff. Valid once per
// purchasable assignment, before any usage update.
func (s *Service) RecordSiteIssue(ctx context.Context, req domain.RecordSiteIssueRequest) (domain.UsageRecord, error) {
	assignmentID, err := parseAssignmentID(req.AssignmentID)
	if err != nil {
		return domain.UsageRecord{}, err
	}

	var record domain.UsageRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err := s.assignmentSvc.GetForUpdateTx(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if assignment.MaterialType != materialdomain.MaterialTypePurchasable {
			return domain.ErrActionTypeMismatch
		}
		if assignment.Status() != assignmentdomain.StatusDelivered {
			return domain.ErrAssignmentNotOpen
		}

		progress, err := s.ProgressTx(ctx, tx, assignmentID, assignment.TotalQuantity())
		if err != nil {
			return err
		}
		if progress.SiteIssued {
			return domain.ErrSiteIssueDuplicate
		}
		if progress.CumulativeUsed.IsPositive() {
			return domain.ErrSiteIssueTooLate
		}

		record, err = s.appendRecord(ctx, tx, domain.UsageRecord{
			AssignmentID:   assignmentID,
			RecordType:     domain.RecordTypeSiteIssue,
			ReleasedBy:     strings.TrimSpace(req.ReleasedBy),
			ReceivedBySite: strings.TrimSpace(req.ReceivedBySite),
		}, req.PhotoIDs)
		if err != nil {
			return err
		}

		return s.assignmentSvc.SetStatusTx(ctx, tx, assignmentID, assignmentdomain.StatusInUse)
	})
	if err != nil {
		return domain.UsageRecord{}, err
	}

	s.metrics.RecordUsageRecord(ctx, string(domain.RecordTypeSiteIssue))
	targetID := assignmentID.String()
	_ = s.auditSvc.AuditLog(ctx, "usage.site_issue", "material_assignment", &targetID, map[string]any{
		"released_by":      record.ReleasedBy,
		"received_by_site": record.ReceivedBySite,
	})

	return record, nil
}

// RecordReturnOrWaste disposes of the leftover quantity after consumption
// stopped. Waste and both return variants close the assignment; reserving
// for later keeps it open on the same work order.
func (s *Service) RecordReturnOrWaste(ctx context.Context, req domain.DispositionRequest) (domain.UsageRecord, domain.Progress, error) {
	assignmentID, err := parseAssignmentID(req.AssignmentID)
	if err != nil {
		return domain.UsageRecord{}, domain.Progress{}, err
	}

	var (
		record   domain.UsageRecord
		progress domain.Progress
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err := s.assignmentSvc.GetForUpdateTx(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if err := validateAction(assignment.MaterialType, req.Action); err != nil {
			return err
		}
		if !acceptsUsage(assignment) {
			return domain.ErrAssignmentNotOpen
		}

		total := assignment.TotalQuantity()
		progress, err = s.ProgressTx(ctx, tx, assignmentID, total)
		if err != nil {
			return err
		}
		if progress.CumulativeUsed.IsZero() {
			return domain.ErrDispositionTooEarly
		}
		if !progress.Remaining.IsPositive() {
			return domain.ErrNothingRemaining
		}

		leftover := progress.Remaining
		entry := domain.UsageRecord{
			AssignmentID: assignmentID,
			Notes:        strings.TrimSpace(req.Reason),
		}
		switch req.Action {
		case domain.ActionReturn:
			entry.RecordType = domain.RecordTypeReturn
			entry.QuantityReturned = &leftover
			detail, ok := assignment.Detail.(assignmentdomain.PurchasableDetail)
			if !ok {
				return domain.ErrActionTypeMismatch
			}
			// Leftovers delivered straight to site have no warehouse to
			// restock into; the return record alone closes the loop.
			if detail.WarehouseID != nil {
				if err := s.inventorySvc.ApplyDeliveryTx(ctx, tx, assignment.MaterialID, *detail.WarehouseID, leftover, ""); err != nil {
					return err
				}
			}
		case domain.ActionWaste:
			entry.RecordType = domain.RecordTypeWaste
			entry.QuantityWasted = &leftover
			entry.WasteReason = strings.TrimSpace(req.Reason)
		case domain.ActionReturnToClient:
			entry.RecordType = domain.RecordTypeReturnToClient
			entry.QuantityReturned = &leftover
		case domain.ActionReserveForLater:
			entry.RecordType = domain.RecordTypeReserveForLater
		default:
			return domain.ErrInvalidAction
		}

		record, err = s.appendRecord(ctx, tx, entry, nil)
		if err != nil {
			return err
		}
		progress = applyRecord(progress, record)

		if req.Action != domain.ActionReserveForLater {
			if err := s.assignmentSvc.SetStatusTx(ctx, tx, assignmentID, assignmentdomain.StatusUsed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.UsageRecord{}, domain.Progress{}, err
	}

	s.metrics.RecordUsageRecord(ctx, string(record.RecordType))
	targetID := assignmentID.String()
	_ = s.auditSvc.AuditLog(ctx, "usage.disposition", "material_assignment", &targetID, map[string]any{
		"action": string(req.Action),
		"reason": req.Reason,
	})

	return record, progress, nil
}

func (s *Service) ListRecords(ctx context.Context, assignmentID string) ([]domain.UsageRecord, error) {
	id, err := parseAssignmentID(assignmentID)
	if err != nil {
		return nil, err
	}
	var records []domain.UsageRecord
	if err := s.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) Progress(ctx context.Context, assignmentID string) (domain.Progress, error) {
	id, err := parseAssignmentID(assignmentID)
	if err != nil {
		return domain.Progress{}, err
	}
	assignment, err := s.assignmentSvc.GetByID(ctx, assignmentID)
	if err != nil {
		return domain.Progress{}, err
	}
	return s.ProgressTx(ctx, s.db, id, assignment.TotalQuantity())
}

func (s *Service) ProgressTx(ctx context.Context, tx *gorm.DB, assignmentID snowflake.ID, total decimal.Decimal) (domain.Progress, error) {
	var records []domain.UsageRecord
	if err := tx.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return domain.Progress{}, err
	}
	return domain.DeriveProgress(assignmentID, total, records), nil
}

// AppendReallocationReturnTx pulls quantity out of the source ledger during
// a reallocation execution. The caller holds the assignment lock.
func (s *Service) AppendReallocationReturnTx(ctx context.Context, tx *gorm.DB, assignmentID snowflake.ID, quantity decimal.Decimal, reallocationID snowflake.ID) (domain.UsageRecord, error) {
	if !quantity.IsPositive() {
		return domain.UsageRecord{}, domain.ErrInvalidQuantity
	}
	return s.appendRecord(ctx, tx, domain.UsageRecord{
		AssignmentID:     assignmentID,
		RecordType:       domain.RecordTypeReturn,
		QuantityReturned: &quantity,
		ReallocationID:   &reallocationID,
		Notes:            "reallocation " + reallocationID.String(),
	}, nil)
}

func (s *Service) appendRecord(ctx context.Context, tx *gorm.DB, record domain.UsageRecord, photoIDs []string) (domain.UsageRecord, error) {
	actor, _ := identity.ActorFromContext(ctx)
	now := s.clock.Now()

	record.ID = s.genID.Generate()
	record.RecordedBy = actor.Name
	record.RecordDate = now
	record.CreatedAt = now
	if len(photoIDs) > 0 {
		raw, err := json.Marshal(photoIDs)
		if err != nil {
			return domain.UsageRecord{}, err
		}
		record.PhotoIDs = datatypes.JSON(raw)
	}

	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return domain.UsageRecord{}, err
	}
	return record, nil
}

// acceptsUsage reports whether the assignment's status admits ledger writes.
func acceptsUsage(assignment assignmentdomain.Assignment) bool {
	switch assignment.Status() {
	case assignmentdomain.StatusInUse:
		return assignment.MaterialType == materialdomain.MaterialTypePurchasable
	case assignmentdomain.StatusReceived:
		return assignment.MaterialType == materialdomain.MaterialTypeReceivable
	default:
		return false
	}
}

func validateAction(materialType materialdomain.MaterialType, action domain.DispositionAction) error {
	switch action {
	case domain.ActionReturn, domain.ActionWaste:
		if materialType != materialdomain.MaterialTypePurchasable {
			return domain.ErrActionTypeMismatch
		}
	case domain.ActionReturnToClient, domain.ActionReserveForLater:
		if materialType != materialdomain.MaterialTypeReceivable {
			return domain.ErrActionTypeMismatch
		}
	default:
		return domain.ErrInvalidAction
	}
	return nil
}

// applyRecord folds one new record into an already-derived progress so the
// caller sees the post-append state without a second ledger scan.
func applyRecord(p domain.Progress, record domain.UsageRecord) domain.Progress {
	switch record.RecordType {
	case domain.RecordTypeSiteIssue:
		p.SiteIssued = true
	case domain.RecordTypeUsageUpdate:
		if record.QuantityUsed != nil {
			p.CumulativeUsed = p.CumulativeUsed.Add(*record.QuantityUsed)
		}
	case domain.RecordTypeReturn, domain.RecordTypeReturnToClient:
		if record.QuantityReturned != nil {
			p.Returned = p.Returned.Add(*record.QuantityReturned)
		}
	case domain.RecordTypeWaste:
		if record.QuantityWasted != nil {
			p.Wasted = p.Wasted.Add(*record.QuantityWasted)
		}
	}
	p.RecordCount++
	recordDate := record.RecordDate
	p.LastRecordAt = &recordDate
	p.Remaining = p.TotalQuantity.Sub(p.CumulativeUsed).Sub(p.Returned).Sub(p.Wasted)
	if p.TotalQuantity.IsPositive() {
		p.UsedPercentage = int(p.CumulativeUsed.Div(p.TotalQuantity).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	return p
}

func parseAssignmentID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, assignmentdomain.ErrInvalidID
	}
	return id, nil
}
