package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/identity"
	"github.com/sitelane/materialflow/internal/observability/metrics"
	"github.com/sitelane/materialflow/internal/reallocation/domain"
	usagedomain "github.com/sitelane/materialflow/internal/usage/domain"
	workorderdomain "github.com/sitelane/materialflow/internal/workorder/domain"
	pkgdb "github.com/sitelane/materialflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	AssignmentSvc assignmentdomain.Service
	UsageSvc      usagedomain.Service
	WorkOrderSvc  workorderdomain.Service
	AuditSvc      auditdomain.Service
	Metrics       *metrics.Metrics
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	assignmentSvc assignmentdomain.Service
	usageSvc      usagedomain.Service
	workOrderSvc  workorderdomain.Service
	auditSvc      auditdomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("reallocation.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		assignmentSvc: p.AssignmentSvc,
		usageSvc:      p.UsageSvc,
		workOrderSvc:  p.WorkOrderSvc,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
	}
}

func (s *Service) Request(ctx context.Context, req domain.RequestReallocation) (domain.MaterialReallocation, error) {
	if !req.Quantity.IsPositive() {
		return domain.MaterialReallocation{}, domain.ErrInvalidQuantity
	}
	if strings.TrimSpace(req.FromWorkOrderID) == strings.TrimSpace(req.ToWorkOrderID) {
		return domain.MaterialReallocation{}, domain.ErrSameWorkOrder
	}
	materialID, err := parseID(req.MaterialID)
	if err != nil {
		return domain.MaterialReallocation{}, err
	}

	fromWorkOrder, err := s.workOrderSvc.GetByID(ctx, req.FromWorkOrderID)
	if err != nil {
		return domain.MaterialReallocation{}, err
	}
	toWorkOrder, err := s.workOrderSvc.GetByID(ctx, req.ToWorkOrderID)
	if err != nil {
		return domain.MaterialReallocation{}, err
	}
	if !toWorkOrder.AcceptsAssignments() {
		return domain.MaterialReallocation{}, workorderdomain.ErrClosed
	}

	source, err := s.findSourceAssignment(ctx, req.FromWorkOrderID, materialID)
	if err != nil {
		return domain.MaterialReallocation{}, err
	}

	actor, _ := identity.ActorFromContext(ctx)
	now := s.clock.Now()
	reallocation := domain.MaterialReallocation{
		ID:               s.genID.Generate(),
		MaterialID:       source.MaterialID,
		FromWorkOrderID:  fromWorkOrder.ID,
		ToWorkOrderID:    toWorkOrder.ID,
		FromAssignmentID: source.ID,
		Quantity:         req.Quantity,
		Reason:           strings.TrimSpace(req.Reason),
		Status:           domain.StatusPending,
		RequestedBy:      actor.Name,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reallocation).Error; err != nil {
			return err
		}
		return s.appendTrail(ctx, tx, reallocation.ID, domain.AuditEventRequested, reallocation.Reason)
	})
	if err != nil {
		return domain.MaterialReallocation{}, err
	}

	s.metrics.RecordReallocation(ctx, "requested")
	s.auditTransition(ctx, reallocation, "reallocation.request")
	return reallocation, nil
}

func (s *Service) Approve(ctx context.Context, id string, note string) (domain.MaterialReallocation, error) {
	reallocationID, err := parseID(id)
	if err != nil {
		return domain.MaterialReallocation{}, err
	}

	actor, _ := identity.ActorFromContext(ctx)
	var reallocation domain.MaterialReallocation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reallocation, err = lockReallocation(ctx, tx, reallocationID)
		if err != nil {
			return err
		}
		if reallocation.Status != domain.StatusPending {
			return domain.ErrInvalidStatus
		}

		// The source ledger may have moved since the request; re-validate
		// against the current remaining quantity under the row lock.
		source, err := s.assignmentSvc.GetForUpdateTx(ctx, tx, reallocation.FromAssignmentID)
		if err != nil {
			return err
		}
		progress, err := s.usageSvc.ProgressTx(ctx, tx, source.ID, source.TotalQuantity())
		if err != nil {
			return err
		}
		if reallocation.Quantity.GreaterThan(progress.Remaining) {
			return domain.ErrInsufficientQuantity
		}

		reallocation.Status = domain.StatusApproved
		reallocation.ApprovedBy = actor.Name
		reallocation.UpdatedAt = s.clock.Now()
		if err := tx.Save(&reallocation).Error; err != nil {
			return err
		}
		return s.appendTrail(ctx, tx, reallocation.ID, domain.AuditEventApproved, strings.TrimSpace(note))
	})
	if err != nil {
		return domain.MaterialReallocation{}, err
	}

	s.metrics.RecordReallocation(ctx, "approved")
	s.auditTransition(ctx, reallocation, "reallocation.approve")
	return reallocation, nil
}

func (s *Service) Reject(ctx context.Context, id string, reason string) (domain.MaterialReallocation, error) {
	reallocationID, err := parseID(id)
	if err != nil {
		return domain.MaterialReallocation{}, err
	}

	actor, _ := identity.ActorFromContext(ctx)
	var reallocation domain.MaterialReallocation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reallocation, err = lockReallocation(ctx, tx, reallocationID)
		if err != nil {
			return err
		}
		if reallocation.Status != domain.StatusPending {
			return domain.ErrInvalidStatus
		}

		reallocation.Status = domain.StatusRejected
		reallocation.RejectedBy = actor.Name
		reallocation.RejectReason = strings.TrimSpace(reason)
		reallocation.UpdatedAt = s.clock.Now()
		if err := tx.Save(&reallocation).Error; err != nil {
			return err
		}
		return s.appendTrail(ctx, tx, reallocation.ID, domain.AuditEventRejected, reallocation.RejectReason)
	})
	if err != nil {
		return domain.MaterialReallocation{}, err
	}

	s.metrics.RecordReallocation(ctx, "rejected")
	s.auditTransition(ctx, reallocation, "reallocation.reject")
	return reallocation, nil
}

// Execute moves the quantity in one transaction. When anything inside
// fails, the transaction rolls back, the reallocation stays approved, and
// an error entry is written to the trail outside the failed transaction.
func (s *Service) Execute(ctx context.Context, id string) (domain.MaterialReallocation, error) {
	reallocationID, err := parseID(id)
	if err != nil {
		return domain.MaterialReallocation{}, err
	}

	var reallocation domain.MaterialReallocation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reallocation, err = lockReallocation(ctx, tx, reallocationID)
		if err != nil {
			return err
		}
		if reallocation.Status != domain.StatusApproved {
			return domain.ErrInvalidStatus
		}

		source, err := s.assignmentSvc.GetForUpdateTx(ctx, tx, reallocation.FromAssignmentID)
		if err != nil {
			return err
		}
		progress, err := s.usageSvc.ProgressTx(ctx, tx, source.ID, source.TotalQuantity())
		if err != nil {
			return err
		}
		if reallocation.Quantity.GreaterThan(progress.Remaining) {
			return domain.ErrInsufficientQuantity
		}

		if _, err := s.usageSvc.AppendReallocationReturnTx(ctx, tx, source.ID, reallocation.Quantity, reallocation.ID); err != nil {
			return err
		}

		// A full-quantity move drains the source; close it so it stops
		// accepting usage records.
		if reallocation.Quantity.Equal(progress.Remaining) {
			if err := s.closeSource(ctx, tx, source); err != nil {
				return err
			}
		}

		target, err := s.assignmentSvc.CreateForReallocationTx(ctx, tx, source, reallocation.ToWorkOrderID, reallocation.Quantity)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		targetID := target.ID
		reallocation.Status = domain.StatusCompleted
		reallocation.ToAssignmentID = &targetID
		reallocation.CompletedAt = &now
		reallocation.UpdatedAt = now
		if err := tx.Save(&reallocation).Error; err != nil {
			return err
		}
		return s.appendTrail(ctx, tx, reallocation.ID, domain.AuditEventCompleted, "moved to assignment "+targetID.String())
	})
	if err != nil {
		s.recordExecutionFailure(ctx, reallocationID, err)
		return domain.MaterialReallocation{}, err
	}

	s.metrics.RecordReallocation(ctx, "completed")
	s.auditTransition(ctx, reallocation, "reallocation.execute")
	return reallocation, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.MaterialReallocation, []domain.ReallocationAudit, error) {
	reallocationID, err := parseID(id)
	if err != nil {
		return domain.MaterialReallocation{}, nil, err
	}

	var reallocation domain.MaterialReallocation
	if err := s.db.WithContext(ctx).First(&reallocation, "id = ?", reallocationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MaterialReallocation{}, nil, domain.ErrNotFound
		}
		return domain.MaterialReallocation{}, nil, err
	}

	var trail []domain.ReallocationAudit
	if err := s.db.WithContext(ctx).
		Where("reallocation_id = ?", reallocationID).
		Order("id ASC").
		Find(&trail).Error; err != nil {
		return domain.MaterialReallocation{}, nil, err
	}
	return reallocation, trail, nil
}

func (s *Service) List(ctx context.Context) ([]domain.MaterialReallocation, error) {
	var reallocations []domain.MaterialReallocation
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&reallocations).Error; err != nil {
		return nil, err
	}
	return reallocations, nil
}

// findSourceAssignment picks the newest assignment of the material on the
// source work order that still has an open ledger.
func (s *Service) findSourceAssignment(ctx context.Context, workOrderID string, materialID snowflake.ID) (assignmentdomain.Assignment, error) {
	assignments, err := s.assignmentSvc.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return assignmentdomain.Assignment{}, err
	}
	for _, assignment := range assignments {
		if assignment.MaterialID == materialID && assignment.Status() != assignmentdomain.StatusUsed {
			return assignment, nil
		}
	}
	return assignmentdomain.Assignment{}, domain.ErrNoSourceAssignment
}

// closeSource walks the drained source forward to used, one valid step at
// a time.
func (s *Service) closeSource(ctx context.Context, tx *gorm.DB, source assignmentdomain.Assignment) error {
	current := source.Status()
	for current != assignmentdomain.StatusUsed {
		steps := assignmentdomain.NextStatuses(source.MaterialType, current)
		if len(steps) == 0 {
			return assignmentdomain.ErrStatusNotReachable
		}
		next := steps[len(steps)-1]
		if err := s.assignmentSvc.SetStatusTx(ctx, tx, source.ID, next); err != nil {
			return err
		}
		current = next
	}
	return nil
}

// recordExecutionFailure appends the error trail entry after the execution
// transaction rolled back. Business rejections keep their sentinel errors
// out of the trail write path.
func (s *Service) recordExecutionFailure(ctx context.Context, reallocationID snowflake.ID, cause error) {
	if errors.Is(cause, domain.ErrInvalidStatus) || errors.Is(cause, domain.ErrNotFound) {
		return
	}
	s.metrics.RecordReallocation(ctx, "error")
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.appendTrail(ctx, tx, reallocationID, domain.AuditEventError, cause.Error())
	})
	if err != nil {
		s.log.Error("failed to record execution failure",
			zap.String("reallocation_id", reallocationID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) appendTrail(ctx context.Context, tx *gorm.DB, reallocationID snowflake.ID, event domain.AuditEvent, detail string) error {
	actor, _ := identity.ActorFromContext(ctx)
	entry := domain.ReallocationAudit{
		ID:             s.genID.Generate(),
		ReallocationID: reallocationID,
		Event:          event,
		Detail:         detail,
		ActorName:      actor.Name,
		CreatedAt:      s.clock.Now(),
	}
	return tx.WithContext(ctx).Create(&entry).Error
}

func (s *Service) auditTransition(ctx context.Context, reallocation domain.MaterialReallocation, action string) {
	targetID := reallocation.ID.String()
	_ = s.auditSvc.AuditLog(ctx, action, "material_reallocation", &targetID, map[string]any{
		"status":   string(reallocation.Status),
		"quantity": reallocation.Quantity.String(),
	})
}

func lockReallocation(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.MaterialReallocation, error) {
	var reallocation domain.MaterialReallocation
	err := pkgdb.LockForUpdate(tx.WithContext(ctx)).
		First(&reallocation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MaterialReallocation{}, domain.ErrNotFound
		}
		return domain.MaterialReallocation{}, err
	}
	return reallocation, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
