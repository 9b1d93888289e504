package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	pkgdb "github.com/sitelane/materialflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	MaterialSvc materialdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	materialSvc materialdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("inventory.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		materialSvc: p.MaterialSvc,
	}
}

func (s *Service) CheckAvailability(ctx context.Context, materialID string, required decimal.Decimal) (domain.AvailabilityResult, error) {
	id, err := parseID(materialID, domain.ErrInvalidMaterialID)
	if err != nil {
		return domain.AvailabilityResult{}, err
	}
	if required.IsNegative() {
		return domain.AvailabilityResult{}, domain.ErrInvalidQuantity
	}

	level, stocks, err := s.loadLevel(ctx, s.db, id, false)
	if err != nil {
		return domain.AvailabilityResult{}, err
	}

	result := domain.AvailabilityResult{
		MaterialID:       id,
		RequiredQuantity: required,
		TotalAvailable:   level.AvailableQuantity(),
	}
	result.IsAvailable = result.TotalAvailable.GreaterThanOrEqual(required)
	for _, ws := range stocks {
		result.WarehouseAvailability = append(result.WarehouseAvailability, domain.WarehouseAvailability{
			WarehouseID: ws.WarehouseID,
			Quantity:    ws.Quantity,
			BinLocation: ws.BinLocation,
		})
	}
	return result, nil
}

func (s *Service) GetStockLevel(ctx context.Context, materialID string) (domain.StockLevel, []domain.WarehouseStock, error) {
	id, err := parseID(materialID, domain.ErrInvalidMaterialID)
	if err != nil {
		return domain.StockLevel{}, nil, err
	}
	return s.loadLevel(ctx, s.db, id, false)
}

// StockStatusFor derives the display status for a material. A material with
// no stock but an open purchasable order shows as "ordered".
func (s *Service) StockStatusFor(ctx context.Context, materialID string) (domain.StockStatus, error) {
	material, err := s.materialSvc.GetByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, materialdomain.ErrInvalidID) {
			return "", domain.ErrInvalidMaterialID
		}
		return "", err
	}

	total := decimal.Zero
	var level domain.StockLevel
	err = s.db.WithContext(ctx).First(&level, "material_id = ?", material.ID).Error
	switch {
	case err == nil:
		total = level.TotalQuantity
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No ledger row yet means nothing was ever delivered.
	default:
		return "", err
	}

	var openOrders int64
	err = s.db.WithContext(ctx).
		Table("material_assignments AS a").
		Joins("JOIN purchasable_details AS d ON d.assignment_id = a.id").
		Where("a.material_id = ? AND d.status IN ?", material.ID, []string{"pending", "ordered"}).
		Count(&openOrders).Error
	if err != nil {
		return "", err
	}

	return domain.DeriveStockStatus(material.Active, total, material.MinimumStock, material.ReorderPoint, openOrders > 0), nil
}

func (s *Service) ApplyDelivery(ctx context.Context, materialID, warehouseID snowflake.ID, quantity decimal.Decimal, binLocation string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ApplyDeliveryTx(ctx, tx, materialID, warehouseID, quantity, binLocation)
	})
}

func (s *Service) ApplyIssue(ctx context.Context, materialID, warehouseID snowflake.ID, quantity decimal.Decimal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ApplyIssueTx(ctx, tx, materialID, warehouseID, quantity)
	})
}

// ApplyDeliveryTx increases warehouse and total stock. Creates the ledger
// rows on first delivery of a material.
func (s *Service) ApplyDeliveryTx(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID, quantity decimal.Decimal, binLocation string) error {
	if materialID == 0 {
		return domain.ErrInvalidMaterialID
	}
	if warehouseID == 0 {
		return domain.ErrInvalidWarehouseID
	}
	if !quantity.IsPositive() {
		return domain.ErrInvalidQuantity
	}

	level, err := s.lockOrCreateLevel(ctx, tx, materialID)
	if err != nil {
		return err
	}

	ws, err := s.lockOrCreateWarehouseStock(ctx, tx, materialID, warehouseID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	ws.Quantity = ws.Quantity.Add(quantity)
	if binLocation != "" {
		ws.BinLocation = binLocation
	}
	ws.UpdatedAt = now
	if err := tx.Save(&ws).Error; err != nil {
		return err
	}

	level.TotalQuantity = level.TotalQuantity.Add(quantity)
	return s.saveLevel(ctx, tx, level, now)
}

// ApplyIssueTx decreases stock at one warehouse. Fails when the warehouse
// does not hold enough.
func (s *Service) ApplyIssueTx(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID, quantity decimal.Decimal) error {
	if materialID == 0 {
		return domain.ErrInvalidMaterialID
	}
	if warehouseID == 0 {
		return domain.ErrInvalidWarehouseID
	}
	if !quantity.IsPositive() {
		return domain.ErrInvalidQuantity
	}

	level, err := s.lockLevel(ctx, tx, materialID)
	if err != nil {
		return err
	}

	var ws domain.WarehouseStock
	err = pkgdb.LockForUpdate(tx).
		First(&ws, "material_id = ? AND warehouse_id = ?", materialID, warehouseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrInsufficientStock
		}
		return err
	}
	if ws.Quantity.LessThan(quantity) {
		return domain.ErrInsufficientStock
	}

	now := s.clock.Now()
	ws.Quantity = ws.Quantity.Sub(quantity)
	ws.UpdatedAt = now
	if err := tx.Save(&ws).Error; err != nil {
		return err
	}

	level.TotalQuantity = level.TotalQuantity.Sub(quantity)
	return s.saveLevel(ctx, tx, level, now)
}

// SetWarehouseQuantityTx sets an absolute quantity at one warehouse, moving
// the material total by the difference. Physical-count corrections use this.
func (s *Service) SetWarehouseQuantityTx(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID, quantity decimal.Decimal) error {
	if materialID == 0 {
		return domain.ErrInvalidMaterialID
	}
	if warehouseID == 0 {
		return domain.ErrInvalidWarehouseID
	}
	if quantity.IsNegative() {
		return domain.ErrInvalidQuantity
	}

	level, err := s.lockOrCreateLevel(ctx, tx, materialID)
	if err != nil {
		return err
	}
	ws, err := s.lockOrCreateWarehouseStock(ctx, tx, materialID, warehouseID)
	if err != nil {
		return err
	}

	delta := quantity.Sub(ws.Quantity)
	now := s.clock.Now()
	ws.Quantity = quantity
	ws.UpdatedAt = now
	if err := tx.Save(&ws).Error; err != nil {
		return err
	}

	level.TotalQuantity = level.TotalQuantity.Add(delta)
	if level.TotalQuantity.IsNegative() {
		return domain.ErrInsufficientStock
	}
	return s.saveLevel(ctx, tx, level, now)
}

func (s *Service) Reserve(ctx context.Context, materialID snowflake.ID, quantity decimal.Decimal) error {
	if materialID == 0 {
		return domain.ErrInvalidMaterialID
	}
	if !quantity.IsPositive() {
		return domain.ErrInvalidQuantity
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		level, err := s.lockLevel(ctx, tx, materialID)
		if err != nil {
			return err
		}
		if level.AvailableQuantity().LessThan(quantity) {
			return domain.ErrReservationTooHigh
		}
		level.ReservedQuantity = level.ReservedQuantity.Add(quantity)
		return s.saveLevel(ctx, tx, level, s.clock.Now())
	})
}

func (s *Service) Release(ctx context.Context, materialID snowflake.ID, quantity decimal.Decimal) error {
	if materialID == 0 {
		return domain.ErrInvalidMaterialID
	}
	if !quantity.IsPositive() {
		return domain.ErrInvalidQuantity
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		level, err := s.lockLevel(ctx, tx, materialID)
		if err != nil {
			return err
		}
		if level.ReservedQuantity.LessThan(quantity) {
			return domain.ErrReleaseTooHigh
		}
		level.ReservedQuantity = level.ReservedQuantity.Sub(quantity)
		return s.saveLevel(ctx, tx, level, s.clock.Now())
	})
}

func (s *Service) loadLevel(ctx context.Context, tx *gorm.DB, materialID snowflake.ID, forUpdate bool) (domain.StockLevel, []domain.WarehouseStock, error) {
	q := tx.WithContext(ctx)
	if forUpdate {
		q = pkgdb.LockForUpdate(q)
	}

	var level domain.StockLevel
	if err := q.First(&level, "material_id = ?", materialID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StockLevel{}, nil, domain.ErrNotFound
		}
		return domain.StockLevel{}, nil, err
	}

	var stocks []domain.WarehouseStock
	if err := tx.WithContext(ctx).
		Where("material_id = ?", materialID).
		Order("warehouse_id ASC").
		Find(&stocks).Error; err != nil {
		return domain.StockLevel{}, nil, err
	}
	return level, stocks, nil
}

func (s *Service) lockLevel(ctx context.Context, tx *gorm.DB, materialID snowflake.ID) (domain.StockLevel, error) {
	var level domain.StockLevel
	err := pkgdb.LockForUpdate(tx.WithContext(ctx)).
		First(&level, "material_id = ?", materialID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StockLevel{}, domain.ErrNotFound
		}
		return domain.StockLevel{}, err
	}
	return level, nil
}

func (s *Service) lockOrCreateLevel(ctx context.Context, tx *gorm.DB, materialID snowflake.ID) (domain.StockLevel, error) {
	level, err := s.lockLevel(ctx, tx, materialID)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.StockLevel{}, err
	}

	now := s.clock.Now()
	level = domain.StockLevel{
		ID:               s.genID.Generate(),
		MaterialID:       materialID,
		TotalQuantity:    decimal.Zero,
		ReservedQuantity: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(&level).Error; err != nil {
		return domain.StockLevel{}, err
	}
	return level, nil
}

func (s *Service) lockOrCreateWarehouseStock(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID) (domain.WarehouseStock, error) {
	var ws domain.WarehouseStock
	err := pkgdb.LockForUpdate(tx.WithContext(ctx)).
		First(&ws, "material_id = ? AND warehouse_id = ?", materialID, warehouseID).Error
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.WarehouseStock{}, err
	}

	now := s.clock.Now()
	ws = domain.WarehouseStock{
		ID:          s.genID.Generate(),
		MaterialID:  materialID,
		WarehouseID: warehouseID,
		Quantity:    decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&ws).Error; err != nil {
		return domain.WarehouseStock{}, err
	}
	return ws, nil
}

// saveLevel bumps the optimistic version on every write. The version guard
// catches writers that bypassed the row lock.
func (s *Service) saveLevel(ctx context.Context, tx *gorm.DB, level domain.StockLevel, now time.Time) error {
	res := tx.WithContext(ctx).Model(&domain.StockLevel{}).
		Where("id = ? AND version = ?", level.ID, level.Version).
		Updates(map[string]any{
			"total_quantity":    level.TotalQuantity,
			"reserved_quantity": level.ReservedQuantity,
			"version":           level.Version + 1,
			"updated_at":        now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
