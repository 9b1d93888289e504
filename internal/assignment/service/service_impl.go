package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sitelane/materialflow/internal/assignment/domain"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/identity"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	workorderdomain "github.com/sitelane/materialflow/internal/workorder/domain"
	pkgdb "github.com/sitelane/materialflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	MaterialSvc  materialdomain.Service
	WorkOrderSvc workorderdomain.Service
	InventorySvc inventorydomain.Service
	AuditSvc     auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	materialSvc  materialdomain.Service
	workOrderSvc workorderdomain.Service
	inventorySvc inventorydomain.Service
	auditSvc     auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("assignment.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		materialSvc:  p.MaterialSvc,
		workOrderSvc: p.WorkOrderSvc,
		inventorySvc: p.InventorySvc,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAssignmentRequest) (domain.Assignment, error) {
	if !req.Quantity.IsPositive() {
		return domain.Assignment{}, domain.ErrInvalidQuantity
	}

	material, err := s.materialSvc.GetByID(ctx, req.MaterialID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !material.Active {
		return domain.Assignment{}, materialdomain.ErrInactive
	}

	workOrder, err := s.workOrderSvc.GetByID(ctx, req.WorkOrderID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !workOrder.AcceptsAssignments() {
		return domain.Assignment{}, workorderdomain.ErrClosed
	}

	actor, _ := identity.ActorFromContext(ctx)
	now := s.clock.Now()

	core := domain.MaterialAssignment{
		ID:           s.genID.Generate(),
		WorkOrderID:  workOrder.ID,
		MaterialID:   material.ID,
		MaterialType: material.MaterialType,
		Unit:         material.Unit,
		AssignedBy:   actor.Name,
		AssignDate:   now,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var assignment domain.Assignment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&core).Error; err != nil {
			return err
		}

		switch material.MaterialType {
		case materialdomain.MaterialTypePurchasable:
			unitCost := material.UnitCost
			if req.UnitCost != nil {
				unitCost = *req.UnitCost
			}
			currency := material.Currency
			if req.Currency != "" {
				currency = req.Currency
			}
			detail := domain.PurchasableDetail{
				ID:           s.genID.Generate(),
				AssignmentID: core.ID,
				Status:       domain.StatusPending,
				Quantity:     req.Quantity,
				UnitCost:     unitCost,
				Currency:     currency,
				UpdatedAt:    now,
			}
			if err := tx.Create(&detail).Error; err != nil {
				return err
			}
			assignment = domain.Assignment{MaterialAssignment: core, Detail: detail}
		case materialdomain.MaterialTypeReceivable:
			detail := domain.ReceivableDetail{
				ID:                s.genID.Generate(),
				AssignmentID:      core.ID,
				Status:            domain.StatusPending,
				EstimatedQuantity: req.Quantity,
				UpdatedAt:         now,
			}
			if err := tx.Create(&detail).Error; err != nil {
				return err
			}
			assignment = domain.Assignment{MaterialAssignment: core, Detail: detail}
		default:
			return domain.ErrTypeMismatch
		}
		return nil
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	targetID := core.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "assignment.create", "material_assignment", &targetID, map[string]any{
		"work_order_id": workOrder.ID.String(),
		"material_id":   material.ID.String(),
		"material_type": string(material.MaterialType),
		"quantity":      req.Quantity.String(),
	})

	return assignment, nil
}

func (s *Service) Transition(ctx context.Context, id string, target domain.Status, payload domain.TransitionPayload) (domain.Assignment, error) {
	assignmentID, err := parseID(id)
	if err != nil {
		return domain.Assignment{}, err
	}

	var assignment domain.Assignment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err = s.GetForUpdateTx(ctx, tx, assignmentID)
		if err != nil {
			return err
		}

		from := assignment.Status()
		if !domain.CanTransition(assignment.MaterialType, from, target) {
			return domain.ErrInvalidTransition
		}
		// in_use needs a site-issue record and used a zeroed remainder.
		// Both come through the usage recorder, or an explicit override.
		if target == domain.StatusInUse || target == domain.StatusUsed {
			return domain.ErrStatusNotReachable
		}

		switch detail := assignment.Detail.(type) {
		case domain.PurchasableDetail:
			updated, err := s.transitionPurchasable(ctx, tx, assignment, detail, target, payload)
			if err != nil {
				return err
			}
			assignment.Detail = updated
		case domain.ReceivableDetail:
			updated, err := s.transitionReceivable(tx, detail, target, payload)
			if err != nil {
				return err
			}
			assignment.Detail = updated
		default:
			return domain.ErrDetailCorrupt
		}
		return s.touchCore(tx, assignment.ID)
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	targetID := assignment.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "assignment.transition", "material_assignment", &targetID, map[string]any{
		"status": string(target),
	})

	return assignment, nil
}

func (s *Service) transitionPurchasable(ctx context.Context, tx *gorm.DB, assignment domain.Assignment, detail domain.PurchasableDetail, target domain.Status, payload domain.TransitionPayload) (domain.PurchasableDetail, error) {
	now := s.clock.Now()

	switch target {
	case domain.StatusOrdered:
		detail.SupplierName = strings.TrimSpace(payload.SupplierName)
		detail.OrderReference = strings.TrimSpace(payload.OrderReference)
		detail.ExpectedDelivery = payload.ExpectedDelivery
		detail.OrderedAt = &now
	case domain.StatusDelivered:
		if payload.DirectToSite {
			detail.DirectToSite = true
		} else {
			warehouseID, err := snowflake.ParseString(strings.TrimSpace(payload.WarehouseID))
			if err != nil || warehouseID == 0 {
				return domain.PurchasableDetail{}, domain.ErrMissingDeliveryInfo
			}
			if err := s.inventorySvc.ApplyDeliveryTx(ctx, tx, assignment.MaterialID, warehouseID, detail.Quantity, payload.BinLocation); err != nil {
				return domain.PurchasableDetail{}, err
			}
			detail.WarehouseID = &warehouseID
		}
		detail.DeliveryNote = strings.TrimSpace(payload.DeliveryNote)
		detail.DeliveredAt = &now
	default:
		return domain.PurchasableDetail{}, domain.ErrInvalidTransition
	}

	detail.Status = target
	detail.UpdatedAt = now
	if err := tx.Save(&detail).Error; err != nil {
		return domain.PurchasableDetail{}, err
	}
	return detail, nil
}

func (s *Service) transitionReceivable(tx *gorm.DB, detail domain.ReceivableDetail, target domain.Status, payload domain.TransitionPayload) (domain.ReceivableDetail, error) {
	now := s.clock.Now()

	switch target {
	case domain.StatusOrdered:
	case domain.StatusReceived:
		if payload.ReceivedQuantity == nil || !payload.ReceivedQuantity.IsPositive() {
			return domain.ReceivableDetail{}, domain.ErrMissingReceiptInfo
		}
		received := *payload.ReceivedQuantity
		detail.ReceivedQuantity = &received
		detail.ReceivedAt = &now
	default:
		return domain.ReceivableDetail{}, domain.ErrInvalidTransition
	}

	detail.Status = target
	detail.UpdatedAt = now
	if err := tx.Save(&detail).Error; err != nil {
		return domain.ReceivableDetail{}, err
	}
	return detail, nil
}

// Override jumps the status forward past the normal step and precondition
// checks. Intended for administrative fixes; regression is still refused.
func (s *Service) Override(ctx context.Context, id string, target domain.Status, reason string) (domain.Assignment, error) {
	assignmentID, err := parseID(id)
	if err != nil {
		return domain.Assignment{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Assignment{}, domain.ErrInvalidStatus
	}

	var assignment domain.Assignment
	var from domain.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, err = s.GetForUpdateTx(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		from = assignment.Status()
		if !domain.IsForward(assignment.MaterialType, from, target) {
			return domain.ErrInvalidTransition
		}
		if err := s.setDetailStatus(tx, &assignment, target); err != nil {
			return err
		}
		return s.touchCore(tx, assignment.ID)
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	targetID := assignment.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "assignment.override", "material_assignment", &targetID, map[string]any{
		"from":   string(from),
		"to":     string(target),
		"reason": reason,
	})
	s.log.Warn("status override applied",
		zap.String("assignment_id", targetID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)

	return assignment, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Assignment, error) {
	assignmentID, err := parseID(id)
	if err != nil {
		return domain.Assignment{}, err
	}
	return s.load(ctx, s.db, assignmentID, false)
}

func (s *Service) ListByWorkOrder(ctx context.Context, workOrderID string) ([]domain.Assignment, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(workOrderID))
	if err != nil || id == 0 {
		return nil, workorderdomain.ErrInvalidID
	}

	var cores []domain.MaterialAssignment
	if err := s.db.WithContext(ctx).
		Where("work_order_id = ?", id).
		Order("created_at DESC").
		Find(&cores).Error; err != nil {
		return nil, err
	}

	assignments := make([]domain.Assignment, 0, len(cores))
	for _, core := range cores {
		detail, err := s.loadDetail(ctx, s.db, core, false)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, domain.Assignment{MaterialAssignment: core, Detail: detail})
	}
	return assignments, nil
}

func (s *Service) GetForUpdateTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Assignment, error) {
	return s.load(ctx, tx, id, true)
}

// SetStatusTx is the usage recorder's path into the status machine. The
// step check still applies; only the payload preconditions are waived.
func (s *Service) SetStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, target domain.Status) error {
	assignment, err := s.load(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if !domain.CanTransition(assignment.MaterialType, assignment.Status(), target) {
		return domain.ErrInvalidTransition
	}
	if err := s.setDetailStatus(tx, &assignment, target); err != nil {
		return err
	}
	return s.touchCore(tx, assignment.ID)
}

func (s *Service) CreateForReallocationTx(ctx context.Context, tx *gorm.DB, source domain.Assignment, targetWorkOrderID snowflake.ID, quantity decimal.Decimal) (domain.Assignment, error) {
	if !quantity.IsPositive() {
		return domain.Assignment{}, domain.ErrInvalidQuantity
	}

	actor, _ := identity.ActorFromContext(ctx)
	now := s.clock.Now()

	core := domain.MaterialAssignment{
		ID:           s.genID.Generate(),
		WorkOrderID:  targetWorkOrderID,
		MaterialID:   source.MaterialID,
		MaterialType: source.MaterialType,
		Unit:         source.Unit,
		AssignedBy:   actor.Name,
		AssignDate:   now,
		Notes:        "reallocated from assignment " + source.ID.String(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&core).Error; err != nil {
		return domain.Assignment{}, err
	}

	// The moved quantity is already on hand, so the new detail starts in
	// the post-receipt status for its variant.
	switch detail := source.Detail.(type) {
	case domain.PurchasableDetail:
		newDetail := domain.PurchasableDetail{
			ID:           s.genID.Generate(),
			AssignmentID: core.ID,
			Status:       domain.StatusDelivered,
			Quantity:     quantity,
			UnitCost:     detail.UnitCost,
			Currency:     detail.Currency,
			WarehouseID:  detail.WarehouseID,
			DirectToSite: detail.DirectToSite,
			DeliveredAt:  &now,
			UpdatedAt:    now,
		}
		if err := tx.WithContext(ctx).Create(&newDetail).Error; err != nil {
			return domain.Assignment{}, err
		}
		return domain.Assignment{MaterialAssignment: core, Detail: newDetail}, nil
	case domain.ReceivableDetail:
		received := quantity
		newDetail := domain.ReceivableDetail{
			ID:                s.genID.Generate(),
			AssignmentID:      core.ID,
			Status:            domain.StatusReceived,
			EstimatedQuantity: quantity,
			ReceivedQuantity:  &received,
			ReceivedAt:        &now,
			ReceivedBy:        actor.Name,
			UpdatedAt:         now,
		}
		if err := tx.WithContext(ctx).Create(&newDetail).Error; err != nil {
			return domain.Assignment{}, err
		}
		return domain.Assignment{MaterialAssignment: core, Detail: newDetail}, nil
	default:
		return domain.Assignment{}, domain.ErrDetailCorrupt
	}
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID, forUpdate bool) (domain.Assignment, error) {
	q := tx.WithContext(ctx)
	if forUpdate {
		q = pkgdb.LockForUpdate(q)
	}

	var core domain.MaterialAssignment
	if err := q.First(&core, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Assignment{}, domain.ErrNotFound
		}
		return domain.Assignment{}, err
	}

	detail, err := s.loadDetail(ctx, tx, core, forUpdate)
	if err != nil {
		return domain.Assignment{}, err
	}
	return domain.Assignment{MaterialAssignment: core, Detail: detail}, nil
}

func (s *Service) loadDetail(ctx context.Context, tx *gorm.DB, core domain.MaterialAssignment, forUpdate bool) (domain.Detail, error) {
	q := tx.WithContext(ctx)
	if forUpdate {
		q = pkgdb.LockForUpdate(q)
	}

	switch core.MaterialType {
	case materialdomain.MaterialTypePurchasable:
		var detail domain.PurchasableDetail
		if err := q.First(&detail, "assignment_id = ?", core.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrDetailCorrupt
			}
			return nil, err
		}
		return detail, nil
	case materialdomain.MaterialTypeReceivable:
		var detail domain.ReceivableDetail
		if err := q.First(&detail, "assignment_id = ?", core.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrDetailCorrupt
			}
			return nil, err
		}
		return detail, nil
	default:
		return nil, domain.ErrDetailCorrupt
	}
}

func (s *Service) setDetailStatus(tx *gorm.DB, assignment *domain.Assignment, target domain.Status) error {
	now := s.clock.Now()
	switch detail := assignment.Detail.(type) {
	case domain.PurchasableDetail:
		detail.Status = target
		detail.UpdatedAt = now
		if err := tx.Save(&detail).Error; err != nil {
			return err
		}
		assignment.Detail = detail
	case domain.ReceivableDetail:
		detail.Status = target
		detail.UpdatedAt = now
		if err := tx.Save(&detail).Error; err != nil {
			return err
		}
		assignment.Detail = detail
	default:
		return domain.ErrDetailCorrupt
	}
	return nil
}

func (s *Service) touchCore(tx *gorm.DB, id snowflake.ID) error {
	return tx.Model(&domain.MaterialAssignment{}).
		Where("id = ?", id).
		Update("updated_at", s.clock.Now()).Error
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
