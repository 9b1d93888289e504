// Package seed fills an empty database with a small demo dataset for local
// development. Production deployments leave SEED_DEMO_DATA off.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	warehousedomain "github.com/sitelane/materialflow/internal/warehouse/domain"
	workorderdomain "github.com/sitelane/materialflow/internal/workorder/domain"
	"gorm.io/gorm"
)

// EnsureDemoData seeds a warehouse, a handful of catalog materials with
// starting stock, and an open work order. Idempotent per natural key.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		warehouse, err := ensureWarehouseTx(ctx, tx, node, "Central Yard")
		if err != nil {
			return err
		}
		if err := ensureMaterialsTx(ctx, tx, node, warehouse.ID); err != nil {
			return err
		}
		return ensureWorkOrderTx(ctx, tx, node)
	})
}

func ensureWarehouseTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, name string) (warehousedomain.Warehouse, error) {
	var warehouse warehousedomain.Warehouse
	err := tx.WithContext(ctx).Where("name = ?", name).First(&warehouse).Error
	if err == nil {
		return warehouse, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return warehouse, err
	}

	now := time.Now().UTC()
	warehouse = warehousedomain.Warehouse{
		ID:        node.Generate(),
		Name:      name,
		Address:   "14 Industriestrasse",
		City:      "Zurich",
		Country:   "CH",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&warehouse).Error; err != nil {
		return warehouse, err
	}
	return warehouse, nil
}

func ensureMaterialsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, warehouseID snowflake.ID) error {
	type entry struct {
		code         string
		description  string
		unit         string
		materialType materialdomain.MaterialType
		unitCost     string
		minimum      string
		reorder      string
		startStock   string
	}

	entries := []entry{
		{"CEM-425", "Portland cement 42.5", "bag", materialdomain.MaterialTypePurchasable, "12.50", "40", "80", "200"},
		{"REB-12", "Rebar 12mm", "pc", materialdomain.MaterialTypePurchasable, "8.90", "100", "150", "600"},
		{"CAB-5X16", "Power cable 5x16", "m", materialdomain.MaterialTypePurchasable, "4.20", "50", "100", "0"},
		{"CLT-TILE", "Client supplied floor tile", "m2", materialdomain.MaterialTypeReceivable, "0", "0", "0", "0"},
	}

	now := time.Now().UTC()
	for _, e := range entries {
		var material materialdomain.Material
		err := tx.WithContext(ctx).Where("code = ?", e.code).First(&material).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		material = materialdomain.Material{
			ID:           node.Generate(),
			Code:         e.code,
			Description:  e.description,
			Unit:         e.unit,
			MaterialType: e.materialType,
			UnitCost:     decimal.RequireFromString(e.unitCost),
			Currency:     "USD",
			MinimumStock: decimal.RequireFromString(e.minimum),
			ReorderPoint: decimal.RequireFromString(e.reorder),
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.WithContext(ctx).Create(&material).Error; err != nil {
			return err
		}

		stock := decimal.RequireFromString(e.startStock)
		if stock.IsZero() {
			continue
		}
		level := inventorydomain.StockLevel{
			ID:            node.Generate(),
			MaterialID:    material.ID,
			TotalQuantity: stock,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.WithContext(ctx).Create(&level).Error; err != nil {
			return err
		}
		warehouseStock := inventorydomain.WarehouseStock{
			ID:          node.Generate(),
			MaterialID:  material.ID,
			WarehouseID: warehouseID,
			Quantity:    stock,
			BinLocation: "A-01",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.WithContext(ctx).Create(&warehouseStock).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureWorkOrderTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	const number = "WO-2025-001"

	var workOrder workorderdomain.WorkOrder
	err := tx.WithContext(ctx).Where("number = ?", number).First(&workOrder).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	workOrder = workorderdomain.WorkOrder{
		ID:         node.Generate(),
		Number:     number,
		Title:      "Office block refurbishment",
		ClientName: "Hallenbau AG",
		ClientType: "commercial",
		Status:     workorderdomain.WorkOrderStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return tx.WithContext(ctx).Create(&workOrder).Error
}
