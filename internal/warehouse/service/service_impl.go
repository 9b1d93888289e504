package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/warehouse/domain"
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
		log:      p.Log.Named("warehouse.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateWarehouseRequest) (domain.Warehouse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Warehouse{}, domain.ErrInvalidName
	}

	now := s.clock.Now()
	warehouse := domain.Warehouse{
		ID:        s.genID.Generate(),
		Name:      name,
		Address:   strings.TrimSpace(req.Address),
		City:      strings.TrimSpace(req.City),
		Country:   strings.TrimSpace(req.Country),
		Phone:     strings.TrimSpace(req.Phone),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Warehouse{}, domain.ErrNameTaken
		}
		return domain.Warehouse{}, err
	}

	targetID := warehouse.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "warehouse.create", "warehouse", &targetID, map[string]any{
		"name": warehouse.Name,
	})

	return warehouse, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateWarehouseRequest) (domain.Warehouse, error) {
	warehouseID, err := s.parseID(id)
	if err != nil {
		return domain.Warehouse{}, err
	}

	var warehouse domain.Warehouse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&warehouse, "id = ?", warehouseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			warehouse.Name = name
		}
		if req.Address != nil {
			warehouse.Address = strings.TrimSpace(*req.Address)
		}
		if req.City != nil {
			warehouse.City = strings.TrimSpace(*req.City)
		}
		if req.Country != nil {
			warehouse.Country = strings.TrimSpace(*req.Country)
		}
		if req.Phone != nil {
			warehouse.Phone = strings.TrimSpace(*req.Phone)
		}
		warehouse.UpdatedAt = s.clock.Now()

		if err := tx.Save(&warehouse).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrNameTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Warehouse{}, err
	}

	targetID := warehouse.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "warehouse.update", "warehouse", &targetID, nil)

	return warehouse, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) (domain.Warehouse, error) {
	warehouseID, err := s.parseID(id)
	if err != nil {
		return domain.Warehouse{}, err
	}

	var warehouse domain.Warehouse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&warehouse, "id = ?", warehouseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if !warehouse.Active {
			return nil
		}
		warehouse.Active = false
		warehouse.UpdatedAt = s.clock.Now()
		return tx.Save(&warehouse).Error
	})
	if err != nil {
		return domain.Warehouse{}, err
	}

	targetID := warehouse.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "warehouse.deactivate", "warehouse", &targetID, nil)

	return warehouse, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Warehouse, error) {
	warehouseID, err := s.parseID(id)
	if err != nil {
		return domain.Warehouse{}, err
	}

	var warehouse domain.Warehouse
	if err := s.db.WithContext(ctx).First(&warehouse, "id = ?", warehouseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Warehouse{}, domain.ErrNotFound
		}
		return domain.Warehouse{}, err
	}
	return warehouse, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Warehouse, error) {
	var warehouses []domain.Warehouse
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&warehouses).Error; err != nil {
		return nil, err
	}
	return warehouses, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
