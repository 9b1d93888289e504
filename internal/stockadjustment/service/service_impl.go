package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/config"
	"github.com/sitelane/materialflow/internal/identity"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	"github.com/sitelane/materialflow/internal/observability/metrics"
	"github.com/sitelane/materialflow/internal/stockadjustment/domain"
	warehousedomain "github.com/sitelane/materialflow/internal/warehouse/domain"
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
	Policy       *config.StockPolicyHolder
	MaterialSvc  materialdomain.Service
	WarehouseSvc warehousedomain.Service
	InventorySvc inventorydomain.Service
	AuditSvc     auditdomain.Service
	Metrics      *metrics.Metrics
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	policy       *config.StockPolicyHolder
	materialSvc  materialdomain.Service
	warehouseSvc warehousedomain.Service
	inventorySvc inventorydomain.Service
	auditSvc     auditdomain.Service
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("stockadjustment.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		policy:       p.Policy,
		materialSvc:  p.MaterialSvc,
		warehouseSvc: p.WarehouseSvc,
		inventorySvc: p.InventorySvc,
		auditSvc:     p.AuditSvc,
		metrics:      p.Metrics,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitAdjustmentRequest) (domain.StockAdjustment, error) {
	if !req.AdjustmentType.Valid() {
		return domain.StockAdjustment{}, domain.ErrInvalidType
	}
	if req.Quantity.IsNegative() || (req.Quantity.IsZero() && req.AdjustmentType != domain.AdjustmentSetAbsolute) {
		return domain.StockAdjustment{}, domain.ErrInvalidQuantity
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.StockAdjustment{}, domain.ErrMissingReason
	}

	material, err := s.materialSvc.GetByID(ctx, req.MaterialID)
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	warehouse, err := s.warehouseSvc.GetByID(ctx, req.WarehouseID)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	actor, _ := identity.ActorFromContext(ctx)
	now := s.clock.Now()
	adjustment := domain.StockAdjustment{
		ID:             s.genID.Generate(),
		MaterialID:     material.ID,
		WarehouseID:    warehouse.ID,
		AdjustmentType: req.AdjustmentType,
		Quantity:       req.Quantity,
		Reason:         reason,
		Status:         domain.StatusPending,
		SubmittedBy:    actor.Name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(&adjustment).Error; err != nil {
		return domain.StockAdjustment{}, err
	}

	targetID := adjustment.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "stockadjustment.submit", "stock_adjustment", &targetID, map[string]any{
		"adjustment_type": string(req.AdjustmentType),
		"quantity":        req.Quantity.String(),
		"reason":          reason,
	})

	return adjustment, nil
}

func (s *Service) Approve(ctx context.Context, id string) (domain.StockAdjustment, error) {
	return s.review(ctx, id, domain.StatusApproved, "")
}

func (s *Service) Reject(ctx context.Context, id string, reason string) (domain.StockAdjustment, error) {
	return s.review(ctx, id, domain.StatusRejected, strings.TrimSpace(reason))
}

func (s *Service) review(ctx context.Context, id string, target domain.Status, rejectReason string) (domain.StockAdjustment, error) {
	adjustmentID, err := parseID(id)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	actor, _ := identity.ActorFromContext(ctx)
	var adjustment domain.StockAdjustment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		adjustment, err = lockAdjustment(ctx, tx, adjustmentID)
		if err != nil {
			return err
		}
		if adjustment.Status != domain.StatusPending {
			return domain.ErrInvalidStatus
		}

		adjustment.Status = target
		switch target {
		case domain.StatusApproved:
			adjustment.ApprovedBy = actor.Name
		case domain.StatusRejected:
			adjustment.RejectedBy = actor.Name
			if rejectReason != "" {
				adjustment.Reason = adjustment.Reason + " (rejected: " + rejectReason + ")"
			}
		}
		adjustment.UpdatedAt = s.clock.Now()
		return tx.Save(&adjustment).Error
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	targetID := adjustment.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "stockadjustment."+string(target), "stock_adjustment", &targetID, map[string]any{
		"status": string(target),
	})

	return adjustment, nil
}

// Apply hits the ledger exactly once. The row lock plus the applied_at
// stamp make a concurrent or repeated apply fail without touching stock.
func (s *Service) Apply(ctx context.Context, id string) (domain.StockAdjustment, error) {
	adjustmentID, err := parseID(id)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	actor, _ := identity.ActorFromContext(ctx)
	var adjustment domain.StockAdjustment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		adjustment, err = lockAdjustment(ctx, tx, adjustmentID)
		if err != nil {
			return err
		}
		if adjustment.Applied() {
			return domain.ErrAlreadyApplied
		}
		if adjustment.Status == domain.StatusRejected {
			return domain.ErrInvalidStatus
		}
		if s.policy.Current().RequireAdjustmentApproval && adjustment.Status != domain.StatusApproved {
			return domain.ErrApprovalRequired
		}

		switch adjustment.AdjustmentType {
		case domain.AdjustmentIncrease:
			if err := s.inventorySvc.ApplyDeliveryTx(ctx, tx, adjustment.MaterialID, adjustment.WarehouseID, adjustment.Quantity, ""); err != nil {
				return err
			}
		case domain.AdjustmentDecrease:
			if err := s.inventorySvc.ApplyIssueTx(ctx, tx, adjustment.MaterialID, adjustment.WarehouseID, adjustment.Quantity); err != nil {
				return err
			}
		case domain.AdjustmentSetAbsolute:
			if err := s.inventorySvc.SetWarehouseQuantityTx(ctx, tx, adjustment.MaterialID, adjustment.WarehouseID, adjustment.Quantity); err != nil {
				return err
			}
		default:
			return domain.ErrInvalidType
		}

		now := s.clock.Now()
		adjustment.AppliedAt = &now
		adjustment.AppliedBy = actor.Name
		adjustment.UpdatedAt = now
		return tx.Save(&adjustment).Error
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	s.metrics.RecordStockAdjustment(ctx, string(adjustment.AdjustmentType))
	targetID := adjustment.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "stockadjustment.apply", "stock_adjustment", &targetID, map[string]any{
		"adjustment_type": string(adjustment.AdjustmentType),
		"quantity":        adjustment.Quantity.String(),
	})

	return adjustment, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.StockAdjustment, error) {
	adjustmentID, err := parseID(id)
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	var adjustment domain.StockAdjustment
	if err := s.db.WithContext(ctx).First(&adjustment, "id = ?", adjustmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StockAdjustment{}, domain.ErrNotFound
		}
		return domain.StockAdjustment{}, err
	}
	return adjustment, nil
}

func (s *Service) List(ctx context.Context) ([]domain.StockAdjustment, error) {
	var adjustments []domain.StockAdjustment
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&adjustments).Error; err != nil {
		return nil, err
	}
	return adjustments, nil
}

func lockAdjustment(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.StockAdjustment, error) {
	var adjustment domain.StockAdjustment
	err := pkgdb.LockForUpdate(tx.WithContext(ctx)).
		First(&adjustment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StockAdjustment{}, domain.ErrNotFound
		}
		return domain.StockAdjustment{}, err
	}
	return adjustment, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
