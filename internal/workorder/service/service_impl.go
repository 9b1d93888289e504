package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/workorder/domain"
	"github.com/sitelane/materialflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("workorder.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateWorkOrderRequest) (domain.WorkOrder, error) {
	number := strings.TrimSpace(req.Number)
	if number == "" {
		return domain.WorkOrder{}, domain.ErrInvalidNumber
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.WorkOrder{}, domain.ErrInvalidTitle
	}

	now := s.clock.Now()
	workOrder := domain.WorkOrder{
		ID:         s.genID.Generate(),
		Number:     number,
		Title:      title,
		ClientName: strings.TrimSpace(req.ClientName),
		ClientType: strings.TrimSpace(req.ClientType),
		Status:     domain.WorkOrderStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.WithContext(ctx).Create(&workOrder).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.WorkOrder{}, domain.ErrNumberTaken
		}
		return domain.WorkOrder{}, err
	}

	targetID := workOrder.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "workorder.create", "work_order", &targetID, map[string]any{
		"number": workOrder.Number,
	})

	return workOrder, nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status domain.WorkOrderStatus) (domain.WorkOrder, error) {
	switch status {
	case domain.WorkOrderStatusOpen, domain.WorkOrderStatusActive,
		domain.WorkOrderStatusCompleted, domain.WorkOrderStatusCancelled:
	default:
		return domain.WorkOrder{}, domain.ErrInvalidStatus
	}

	workOrderID, err := s.parseID(id)
	if err != nil {
		return domain.WorkOrder{}, err
	}

	var workOrder domain.WorkOrder
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&workOrder, "id = ?", workOrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		workOrder.Status = status
		workOrder.UpdatedAt = s.clock.Now()
		return tx.Save(&workOrder).Error
	})
	if err != nil {
		return domain.WorkOrder{}, err
	}

	targetID := workOrder.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "workorder.set_status", "work_order", &targetID, map[string]any{
		"status": string(status),
	})

	return workOrder, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.WorkOrder, error) {
	workOrderID, err := s.parseID(id)
	if err != nil {
		return domain.WorkOrder{}, err
	}

	var workOrder domain.WorkOrder
	if err := s.db.WithContext(ctx).First(&workOrder, "id = ?", workOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.WorkOrder{}, domain.ErrNotFound
		}
		return domain.WorkOrder{}, err
	}
	return workOrder, nil
}

func (s *Service) List(ctx context.Context) ([]domain.WorkOrder, error) {
	var workOrders []domain.WorkOrder
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&workOrders).Error; err != nil {
		return nil, err
	}
	return workOrders, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
