package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubMaterialSvc struct {
	material materialdomain.Material
}

func (s *stubMaterialSvc) Create(ctx context.Context, req materialdomain.CreateMaterialRequest) (materialdomain.Material, error) {
	panic("not used")
}

func (s *stubMaterialSvc) Update(ctx context.Context, id string, req materialdomain.UpdateMaterialRequest) (materialdomain.Material, error) {
	panic("not used")
}

func (s *stubMaterialSvc) Deactivate(ctx context.Context, id string) (materialdomain.Material, error) {
	panic("not used")
}

func (s *stubMaterialSvc) GetByID(ctx context.Context, id string) (materialdomain.Material, error) {
	if id != s.material.ID.String() {
		return materialdomain.Material{}, materialdomain.ErrNotFound
	}
	return s.material, nil
}

func (s *stubMaterialSvc) GetByCode(ctx context.Context, code string) (materialdomain.Material, error) {
	panic("not used")
}

func (s *stubMaterialSvc) List(ctx context.Context, req materialdomain.ListMaterialRequest) (materialdomain.ListMaterialResponse, error) {
	panic("not used")
}

type inventoryFixture struct {
	svc      domain.Service
	db       *gorm.DB
	material *stubMaterialSvc
	node     *snowflake.Node
	ctx      context.Context
}

func setupInventory(t *testing.T) inventoryFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&domain.StockLevel{},
		&domain.WarehouseStock{},
		&assignmentdomain.MaterialAssignment{},
		&assignmentdomain.PurchasableDetail{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	materialSvc := &stubMaterialSvc{material: materialdomain.Material{
		ID:           node.Generate(),
		Code:         "REB-12",
		Description:  "Rebar 12mm",
		Unit:         "pc",
		MaterialType: materialdomain.MaterialTypePurchasable,
		MinimumStock: decimal.RequireFromString("100"),
		ReorderPoint: decimal.RequireFromString("150"),
		Active:       true,
	}}

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
		MaterialSvc: materialSvc,
	})

	return inventoryFixture{svc: svc, db: db, material: materialSvc, node: node, ctx: context.Background()}
}

func TestApplyDeliveryCreatesAndAccumulates(t *testing.T) {
	f := setupInventory(t)
	materialID := f.material.material.ID
	warehouseA := f.node.Generate()
	warehouseB := f.node.Generate()

	require.NoError(t, f.svc.ApplyDelivery(f.ctx, materialID, warehouseA, decimal.RequireFromString("300"), "A-01"))
	require.NoError(t, f.svc.ApplyDelivery(f.ctx, materialID, warehouseA, decimal.RequireFromString("200"), ""))
	require.NoError(t, f.svc.ApplyDelivery(f.ctx, materialID, warehouseB, decimal.RequireFromString("100"), "B-02"))

	level, stocks, err := f.svc.GetStockLevel(f.ctx, materialID.String())
	require.NoError(t, err)
	assert.True(t, level.TotalQuantity.Equal(decimal.RequireFromString("600")))
	require.Len(t, stocks, 2)

	// Total stays the sum of the per-warehouse quantities.
	sum := decimal.Zero
	for _, ws := range stocks {
		sum = sum.Add(ws.Quantity)
	}
	assert.True(t, level.TotalQuantity.Equal(sum))

	for _, ws := range stocks {
		if ws.WarehouseID == warehouseA {
			assert.True(t, ws.Quantity.Equal(decimal.RequireFromString("500")))
			assert.Equal(t, "A-01", ws.BinLocation)
		}
	}
}

func TestApplyDeliveryValidation(t *testing.T) {
	f := setupInventory(t)
	materialID := f.material.material.ID
	warehouseID := f.node.Generate()

	require.ErrorIs(t, f.svc.ApplyDelivery(f.ctx, 0, warehouseID, decimal.RequireFromString("1"), ""), domain.ErrInvalidMaterialID)
	require.ErrorIs(t, f.svc.ApplyDelivery(f.ctx, materialID, 0, decimal.RequireFromString("1"), ""), domain.ErrInvalidWarehouseID)
	require.ErrorIs(t, f.svc.ApplyDelivery(f.ctx, materialID, warehouseID, decimal.Zero, ""), domain.ErrInvalidQuantity)
}

func TestApplyIssue(t *testing.T) {
	f := setupInventory(t)
	materialID := f.material.material.ID
	warehouseA := f.node.Generate()
	warehouseB := f.node.Generate()

	require.NoError(t, f.svc.ApplyDelivery(f.ctx, materialID, warehouseA, decimal.RequireFromString("100"), ""))

	require.NoError(t, f.svc.ApplyIssue(f.ctx, materialID, warehouseA, decimal.RequireFromString("40")))

	level, stocks, err := f.svc.GetStockLevel(f.ctx, materialID.String())
	require.NoError(t, err)
	assert.True(t, level.TotalQuantity.Equal(decimal.RequireFromString("60")))
	require.Len(t, stocks, 1)
	assert.True(t, stocks[0].Quantity.Equal(decimal.RequireFromString("60")))

	// More than the warehouse holds.
	require.ErrorIs(t, f.svc.ApplyIssue(f.ctx, materialID, warehouseA, decimal.RequireFromString("61")), domain.ErrInsufficientStock)
	// A warehouse that never held the material.
	require.ErrorIs(t, f.svc.ApplyIssue(f.ctx, materialID, warehouseB, decimal.RequireFromString("1")), domain.ErrInsufficientStock)
}

func TestReserveAndRelease(t *testing.T) {
	f := setupInventory(t)
	materialID := f.material.material.ID
	warehouseID := f.node.Generate()

	require.NoError(t, f.svc.ApplyDelivery(f.ctx, materialID, warehouseID, decimal.RequireFromString("100"), ""))

	require.NoError(t, f.svc.Reserve(f.ctx, materialID, decimal.RequireFromString("70")))

	level, _, err := f.svc.GetStockLevel(f.ctx, materialID.String())
	require.NoError(t, err)
	assert.True(t, level.AvailableQuantity().Equal(decimal.RequireFromString("30")))

	// Reserving past the available remainder must fail even though total
	// stock would cover it.
	require.ErrorIs(t, f.svc.Reserve(f.ctx, materialID, decimal.RequireFromString("31")), domain.ErrReservationTooHigh)

	require.ErrorIs(t, f.svc.Release(f.ctx, materialID, decimal.RequireFromString("71")), domain.ErrReleaseTooHigh)
	require.NoError(t, f.svc.Release(f.ctx, materialID, decimal.RequireFromString("70")))

	level, _, err = f.svc.GetStockLevel(f.ctx, materialID.String())
	require.NoError(t, err)
	assert.True(t, level.AvailableQuantity().Equal(decimal.RequireFromString("100")))
}

func TestCheckAvailability(t *testing.T) {
	f := setupInventory(t)
	materialID := f.material.material.ID
	warehouseID := f.node.Generate()

	require.NoError(t, f.svc.ApplyDelivery(f.ctx, materialID, warehouseID, decimal.RequireFromString("50"), "C-11"))
	require.NoError(t, f.svc.Reserve(f.ctx, materialID, decimal.RequireFromString("20")))

	result, err := f.svc.CheckAvailability(f.ctx, materialID.String(), decimal.RequireFromString("30"))
	require.NoError(t, err)
	assert.True(t, result.IsAvailable)
	assert.True(t, result.TotalAvailable.Equal(decimal.RequireFromString("30")))
	require.Len(t, result.WarehouseAvailability, 1)
	assert.Equal(t, "C-11", result.WarehouseAvailability[0].BinLocation)

	result, err = f.svc.CheckAvailability(f.ctx, materialID.String(), decimal.RequireFromString("31"))
	require.NoError(t, err)
	assert.False(t, result.IsAvailable)
}

func TestSetWarehouseQuantity(t *testing.T) {
	f := setupInventory(t)
	materialID := f.material.material.ID
	warehouseID := f.node.Generate()

	require.NoError(t, f.svc.ApplyDelivery(f.ctx, materialID, warehouseID, decimal.RequireFromString("100"), ""))

	// Physical count found 85; the total moves by the difference.
	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.SetWarehouseQuantityTx(f.ctx, tx, materialID, warehouseID, decimal.RequireFromString("85"))
	})
	require.NoError(t, err)

	level, stocks, err := f.svc.GetStockLevel(f.ctx, materialID.String())
	require.NoError(t, err)
	assert.True(t, level.TotalQuantity.Equal(decimal.RequireFromString("85")))
	require.Len(t, stocks, 1)
	assert.True(t, stocks[0].Quantity.Equal(decimal.RequireFromString("85")))
}

func TestStockStatusFor(t *testing.T) {
	t.Run("in stock", func(t *testing.T) {
		f := setupInventory(t)
		materialID := f.material.material.ID
		require.NoError(t, f.svc.ApplyDelivery(f.ctx, materialID, f.node.Generate(), decimal.RequireFromString("400"), ""))

		status, err := f.svc.StockStatusFor(f.ctx, materialID.String())
		require.NoError(t, err)
		assert.Equal(t, domain.StockStatusInStock, status)
	})

	t.Run("nothing delivered yet", func(t *testing.T) {
		f := setupInventory(t)

		status, err := f.svc.StockStatusFor(f.ctx, f.material.material.ID.String())
		require.NoError(t, err)
		assert.Equal(t, domain.StockStatusOutOfStock, status)
	})

	t.Run("open order turns empty into ordered", func(t *testing.T) {
		f := setupInventory(t)
		materialID := f.material.material.ID

		core := assignmentdomain.MaterialAssignment{
			ID:           f.node.Generate(),
			WorkOrderID:  f.node.Generate(),
			MaterialID:   materialID,
			MaterialType: materialdomain.MaterialTypePurchasable,
			Unit:         "pc",
			AssignedBy:   "seed",
			AssignDate:   time.Now(),
		}
		require.NoError(t, f.db.Create(&core).Error)
		detail := assignmentdomain.PurchasableDetail{
			ID:           f.node.Generate(),
			AssignmentID: core.ID,
			Status:       assignmentdomain.StatusOrdered,
			Quantity:     decimal.RequireFromString("500"),
		}
		require.NoError(t, f.db.Create(&detail).Error)

		status, err := f.svc.StockStatusFor(f.ctx, materialID.String())
		require.NoError(t, err)
		assert.Equal(t, domain.StockStatusOrdered, status)
	})

	t.Run("discontinued", func(t *testing.T) {
		f := setupInventory(t)
		f.material.material.Active = false

		status, err := f.svc.StockStatusFor(f.ctx, f.material.material.ID.String())
		require.NoError(t, err)
		assert.Equal(t, domain.StockStatusDiscontinued, status)
	})
}
