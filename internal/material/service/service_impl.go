package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/material/domain"
	"github.com/sitelane/materialflow/pkg/db"
	"github.com/sitelane/materialflow/pkg/db/pagination"
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
		log:      p.Log.Named("material.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMaterialRequest) (domain.Material, error) {
	code := normalizeCode(req.Code)
	if code == "" {
		return domain.Material{}, domain.ErrInvalidCode
	}
	if !req.MaterialType.Valid() {
		return domain.Material{}, domain.ErrInvalidType
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		return domain.Material{}, domain.ErrInvalidUnit
	}
	if req.UnitCost.IsNegative() {
		return domain.Material{}, domain.ErrInvalidCost
	}
	if req.MinimumStock.IsNegative() || req.ReorderPoint.IsNegative() {
		return domain.Material{}, domain.ErrInvalidThreshold
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := s.clock.Now()
	material := domain.Material{
		ID:           s.genID.Generate(),
		Code:         code,
		Description:  strings.TrimSpace(req.Description),
		Unit:         unit,
		MaterialType: req.MaterialType,
		ClientType:   strings.TrimSpace(req.ClientType),
		UnitCost:     req.UnitCost,
		Currency:     currency,
		MinimumStock: req.MinimumStock,
		ReorderPoint: req.ReorderPoint,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.WithContext(ctx).Create(&material).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Material{}, domain.ErrCodeTaken
		}
		return domain.Material{}, err
	}

	targetID := material.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "material.create", "material", &targetID, map[string]any{
		"code":          material.Code,
		"material_type": string(material.MaterialType),
	})

	return material, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateMaterialRequest) (domain.Material, error) {
	materialID, err := s.parseID(id)
	if err != nil {
		return domain.Material{}, err
	}

	var material domain.Material
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&material, "id = ?", materialID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		if req.Description != nil {
			material.Description = strings.TrimSpace(*req.Description)
		}
		if req.Unit != nil {
			unit := strings.TrimSpace(*req.Unit)
			if unit == "" {
				return domain.ErrInvalidUnit
			}
			material.Unit = unit
		}
		if req.ClientType != nil {
			material.ClientType = strings.TrimSpace(*req.ClientType)
		}
		if req.UnitCost != nil {
			if req.UnitCost.IsNegative() {
				return domain.ErrInvalidCost
			}
			material.UnitCost = *req.UnitCost
		}
		if req.Currency != nil {
			currency := strings.ToUpper(strings.TrimSpace(*req.Currency))
			if currency == "" {
				return domain.ErrInvalidCost
			}
			material.Currency = currency
		}
		if req.MinimumStock != nil {
			if req.MinimumStock.IsNegative() {
				return domain.ErrInvalidThreshold
			}
			material.MinimumStock = *req.MinimumStock
		}
		if req.ReorderPoint != nil {
			if req.ReorderPoint.IsNegative() {
				return domain.ErrInvalidThreshold
			}
			material.ReorderPoint = *req.ReorderPoint
		}
		material.UpdatedAt = s.clock.Now()

		return tx.Save(&material).Error
	})
	if err != nil {
		return domain.Material{}, err
	}

	targetID := material.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "material.update", "material", &targetID, nil)

	return material, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) (domain.Material, error) {
	materialID, err := s.parseID(id)
	if err != nil {
		return domain.Material{}, err
	}

	var material domain.Material
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&material, "id = ?", materialID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if !material.Active {
			return nil
		}
		material.Active = false
		material.UpdatedAt = s.clock.Now()
		return tx.Save(&material).Error
	})
	if err != nil {
		return domain.Material{}, err
	}

	targetID := material.ID.String()
	_ = s.auditSvc.AuditLog(ctx, "material.deactivate", "material", &targetID, map[string]any{
		"code": material.Code,
	})

	return material, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Material, error) {
	materialID, err := s.parseID(id)
	if err != nil {
		return domain.Material{}, err
	}

	var material domain.Material
	if err := s.db.WithContext(ctx).First(&material, "id = ?", materialID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Material{}, domain.ErrNotFound
		}
		return domain.Material{}, err
	}
	return material, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (domain.Material, error) {
	code = normalizeCode(code)
	if code == "" {
		return domain.Material{}, domain.ErrInvalidCode
	}

	var material domain.Material
	if err := s.db.WithContext(ctx).First(&material, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Material{}, domain.ErrNotFound
		}
		return domain.Material{}, err
	}
	return material, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMaterialRequest) (domain.ListMaterialResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	stmt := s.db.WithContext(ctx).Model(&domain.Material{})
	if materialType := strings.TrimSpace(req.MaterialType); materialType != "" {
		if !domain.MaterialType(materialType).Valid() {
			return domain.ListMaterialResponse{}, domain.ErrInvalidType
		}
		stmt = stmt.Where("material_type = ?", materialType)
	}
	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		stmt = stmt.Where("LOWER(code) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if !req.IncludeInactive {
		stmt = stmt.Where("active = ?", true)
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListMaterialResponse{}, domain.ErrInvalidPageToken
		}
		stmt = stmt.Where("id > ?", cursor.ID)
	}

	var items []*domain.Material
	if err := stmt.Order("id ASC").Limit(pageSize + 1).Find(&items).Error; err != nil {
		return domain.ListMaterialResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(material *domain.Material) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        material.ID.String(),
			CreatedAt: material.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	materials := make([]domain.Material, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		materials = append(materials, *item)
	}

	resp := domain.ListMaterialResponse{Materials: materials}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// normalizeCode slugs user-entered codes so "Rebar #5 / 12m" and
// "rebar-5-12m" collide instead of drifting apart.
func normalizeCode(code string) string {
	return slug.Make(strings.TrimSpace(code))
}
