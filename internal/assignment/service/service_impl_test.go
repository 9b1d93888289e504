package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sitelane/materialflow/internal/assignment/domain"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/identity"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	workorderdomain "github.com/sitelane/materialflow/internal/workorder/domain"
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

type stubWorkOrderSvc struct {
	workOrder workorderdomain.WorkOrder
}

func (s *stubWorkOrderSvc) Create(ctx context.Context, req workorderdomain.CreateWorkOrderRequest) (workorderdomain.WorkOrder, error) {
	panic("not used")
}

func (s *stubWorkOrderSvc) SetStatus(ctx context.Context, id string, status workorderdomain.WorkOrderStatus) (workorderdomain.WorkOrder, error) {
	panic("not used")
}

func (s *stubWorkOrderSvc) GetByID(ctx context.Context, id string) (workorderdomain.WorkOrder, error) {
	if id != s.workOrder.ID.String() {
		return workorderdomain.WorkOrder{}, workorderdomain.ErrNotFound
	}
	return s.workOrder, nil
}

func (s *stubWorkOrderSvc) List(ctx context.Context) ([]workorderdomain.WorkOrder, error) {
	return []workorderdomain.WorkOrder{s.workOrder}, nil
}

type recordingInventorySvc struct {
	deliveries []struct {
		warehouseID snowflake.ID
		quantity    decimal.Decimal
	}
}

func (s *recordingInventorySvc) CheckAvailability(ctx context.Context, materialID string, required decimal.Decimal) (inventorydomain.AvailabilityResult, error) {
	panic("not used")
}

func (s *recordingInventorySvc) GetStockLevel(ctx context.Context, materialID string) (inventorydomain.StockLevel, []inventorydomain.WarehouseStock, error) {
	panic("not used")
}

func (s *recordingInventorySvc) StockStatusFor(ctx context.Context, materialID string) (inventorydomain.StockStatus, error) {
	panic("not used")
}

func (s *recordingInventorySvc) ApplyDelivery(ctx context.Context, materialID, warehouseID snowflake.ID, quantity decimal.Decimal, binLocation string) error {
	panic("not used")
}

func (s *recordingInventorySvc) ApplyIssue(ctx context.Context, materialID, warehouseID snowflake.ID, quantity decimal.Decimal) error {
	panic("not used")
}

func (s *recordingInventorySvc) Reserve(ctx context.Context, materialID snowflake.ID, quantity decimal.Decimal) error {
	panic("not used")
}

func (s *recordingInventorySvc) Release(ctx context.Context, materialID snowflake.ID, quantity decimal.Decimal) error {
	panic("not used")
}

func (s *recordingInventorySvc) ApplyDeliveryTx(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID, quantity decimal.Decimal, binLocation string) error {
	s.deliveries = append(s.deliveries, struct {
		warehouseID snowflake.ID
		quantity    decimal.Decimal
	}{warehouseID, quantity})
	return nil
}

func (s *recordingInventorySvc) ApplyIssueTx(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID, quantity decimal.Decimal) error {
	panic("not used")
}

func (s *recordingInventorySvc) SetWarehouseQuantityTx(ctx context.Context, tx *gorm.DB, materialID, warehouseID snowflake.ID, quantity decimal.Decimal) error {
	panic("not used")
}

type noopAuditSvc struct{}

func (noopAuditSvc) AuditLog(ctx context.Context, action, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func (noopAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	panic("not used")
}

type assignmentFixture struct {
	svc       domain.Service
	material  *stubMaterialSvc
	workOrder *stubWorkOrderSvc
	inventory *recordingInventorySvc
	ctx       context.Context
	node      *snowflake.Node
}

func setupAssignments(t *testing.T, materialType materialdomain.MaterialType) assignmentFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&domain.MaterialAssignment{},
		&domain.PurchasableDetail{},
		&domain.ReceivableDetail{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	materialSvc := &stubMaterialSvc{material: materialdomain.Material{
		ID:           node.Generate(),
		Code:         "CEM-425",
		Description:  "Portland cement 42.5",
		Unit:         "bag",
		MaterialType: materialType,
		UnitCost:     decimal.RequireFromString("12.50"),
		Currency:     "USD",
		Active:       true,
	}}
	workOrderSvc := &stubWorkOrderSvc{workOrder: workorderdomain.WorkOrder{
		ID:     node.Generate(),
		Number: "WO-2025-014",
		Title:  "Hall extension",
		Status: workorderdomain.WorkOrderStatusOpen,
	}}
	inventorySvc := &recordingInventorySvc{}

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
		MaterialSvc:  materialSvc,
		WorkOrderSvc: workOrderSvc,
		InventorySvc: inventorySvc,
		AuditSvc:     noopAuditSvc{},
	})

	ctx := identity.WithActor(context.Background(), identity.Actor{ID: "u-7", Name: "Miro Kessler", Role: "project_manager"})
	return assignmentFixture{svc: svc, material: materialSvc, workOrder: workOrderSvc, inventory: inventorySvc, ctx: ctx, node: node}
}

func (f assignmentFixture) create(t *testing.T, quantity string) domain.Assignment {
	t.Helper()
	assignment, err := f.svc.Create(f.ctx, domain.CreateAssignmentRequest{
		WorkOrderID: f.workOrder.workOrder.ID.String(),
		MaterialID:  f.material.material.ID.String(),
		Quantity:    decimal.RequireFromString(quantity),
	})
	require.NoError(t, err)
	return assignment
}

func TestCreateAssignment(t *testing.T) {
	f := setupAssignments(t, materialdomain.MaterialTypePurchasable)

	assignment := f.create(t, "100")
	assert.Equal(t, domain.StatusPending, assignment.Status())
	assert.Equal(t, "Miro Kessler", assignment.AssignedBy)
	assert.Equal(t, "bag", assignment.Unit)

	detail, ok := assignment.Detail.(domain.PurchasableDetail)
	require.True(t, ok)
	assert.True(t, detail.UnitCost.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "USD", detail.Currency)

	loaded, err := f.svc.GetByID(f.ctx, assignment.ID.String())
	require.NoError(t, err)
	assert.Equal(t, assignment.ID, loaded.ID)
	assert.True(t, loaded.TotalQuantity().Equal(decimal.RequireFromString("100")))
}

func TestCreateAssignmentGuards(t *testing.T) {
	t.Run("inactive material", func(t *testing.T) {
		f := setupAssignments(t, materialdomain.MaterialTypePurchasable)
		f.material.material.Active = false

		_, err := f.svc.Create(f.ctx, domain.CreateAssignmentRequest{
			WorkOrderID: f.workOrder.workOrder.ID.String(),
			MaterialID:  f.material.material.ID.String(),
			Quantity:    decimal.RequireFromString("10"),
		})
		require.ErrorIs(t, err, materialdomain.ErrInactive)
	})

	t.Run("closed work order", func(t *testing.T) {
		f := setupAssignments(t, materialdomain.MaterialTypePurchasable)
		f.workOrder.workOrder.Status = workorderdomain.WorkOrderStatusCompleted

		_, err := f.svc.Create(f.ctx, domain.CreateAssignmentRequest{
			WorkOrderID: f.workOrder.workOrder.ID.String(),
			MaterialID:  f.material.material.ID.String(),
			Quantity:    decimal.RequireFromString("10"),
		})
		require.ErrorIs(t, err, workorderdomain.ErrClosed)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		f := setupAssignments(t, materialdomain.MaterialTypePurchasable)

		_, err := f.svc.Create(f.ctx, domain.CreateAssignmentRequest{
			WorkOrderID: f.workOrder.workOrder.ID.String(),
			MaterialID:  f.material.material.ID.String(),
			Quantity:    decimal.Zero,
		})
		require.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})
}

func TestTransitionPurchasableLifecycle(t *testing.T) {
	f := setupAssignments(t, materialdomain.MaterialTypePurchasable)
	assignment := f.create(t, "100")
	id := assignment.ID.String()
	warehouseID := f.node.Generate()

	assignment, err := f.svc.Transition(f.ctx, id, domain.StatusOrdered, domain.TransitionPayload{
		SupplierName:   "Baustoff AG",
		OrderReference: "PO-4711",
	})
	require.NoError(t, err)
	detail := assignment.Detail.(domain.PurchasableDetail)
	assert.Equal(t, domain.StatusOrdered, detail.Status)
	assert.Equal(t, "Baustoff AG", detail.SupplierName)
	require.NotNil(t, detail.OrderedAt)

	assignment, err = f.svc.Transition(f.ctx, id, domain.StatusDelivered, domain.TransitionPayload{
		WarehouseID: warehouseID.String(),
		BinLocation: "B-07",
	})
	require.NoError(t, err)
	detail = assignment.Detail.(domain.PurchasableDetail)
	assert.Equal(t, domain.StatusDelivered, detail.Status)
	require.NotNil(t, detail.WarehouseID)
	assert.Equal(t, warehouseID, *detail.WarehouseID)

	// Warehouse delivery restocks inventory inside the same transaction.
	require.Len(t, f.inventory.deliveries, 1)
	assert.Equal(t, warehouseID, f.inventory.deliveries[0].warehouseID)
	assert.True(t, f.inventory.deliveries[0].quantity.Equal(decimal.RequireFromString("100")))
}

func TestTransitionGuards(t *testing.T) {
	t.Run("skipping a step", func(t *testing.T) {
		f := setupAssignments(t, materialdomain.MaterialTypePurchasable)
		assignment := f.create(t, "100")

		_, err := f.svc.Transition(f.ctx, assignment.ID.String(), domain.StatusDelivered, domain.TransitionPayload{})
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("in_use only via usage records", func(t *testing.T) {
		f := setupAssignments(t, materialdomain.MaterialTypePurchasable)
		assignment := f.create(t, "100")
		id := assignment.ID.String()

		_, err := f.svc.Transition(f.ctx, id, domain.StatusOrdered, domain.TransitionPayload{})
		require.NoError(t, err)
		_, err = f.svc.Transition(f.ctx, id, domain.StatusDelivered, domain.TransitionPayload{DirectToSite: true})
		require.NoError(t, err)

		_, err = f.svc.Transition(f.ctx, id, domain.StatusInUse, domain.TransitionPayload{})
		require.ErrorIs(t, err, domain.ErrStatusNotReachable)
	})

	t.Run("delivered needs warehouse or direct to site", func(t *testing.T) {
		f := setupAssignments(t, materialdomain.MaterialTypePurchasable)
		assignment := f.create(t, "100")
		id := assignment.ID.String()

		_, err := f.svc.Transition(f.ctx, id, domain.StatusOrdered, domain.TransitionPayload{})
		require.NoError(t, err)

		_, err = f.svc.Transition(f.ctx, id, domain.StatusDelivered, domain.TransitionPayload{})
		require.ErrorIs(t, err, domain.ErrMissingDeliveryInfo)
	})

	t.Run("received needs a counted quantity", func(t *testing.T) {
		f := setupAssignments(t, materialdomain.MaterialTypeReceivable)
		assignment := f.create(t, "80")

		_, err := f.svc.Transition(f.ctx, assignment.ID.String(), domain.StatusReceived, domain.TransitionPayload{})
		require.ErrorIs(t, err, domain.ErrMissingReceiptInfo)
	})
}

func TestTransitionReceivableSkipsOrdered(t *testing.T) {
	f := setupAssignments(t, materialdomain.MaterialTypeReceivable)
	assignment := f.create(t, "80")

	received := decimal.RequireFromString("75.5")
	assignment, err := f.svc.Transition(f.ctx, assignment.ID.String(), domain.StatusReceived, domain.TransitionPayload{
		ReceivedQuantity: &received,
	})
	require.NoError(t, err)

	detail := assignment.Detail.(domain.ReceivableDetail)
	assert.Equal(t, domain.StatusReceived, detail.Status)
	require.NotNil(t, detail.ReceivedQuantity)
	assert.True(t, detail.ReceivedQuantity.Equal(received))
	// The counted quantity replaces the estimate as the conservation base.
	assert.True(t, assignment.TotalQuantity().Equal(received))
}

func TestOverride(t *testing.T) {
	f := setupAssignments(t, materialdomain.MaterialTypePurchasable)
	assignment := f.create(t, "100")
	id := assignment.ID.String()

	_, err := f.svc.Override(f.ctx, id, domain.StatusDelivered, "")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	assignment, err = f.svc.Override(f.ctx, id, domain.StatusDelivered, "paper trail caught up after the fact")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, assignment.Status())

	_, err = f.svc.Override(f.ctx, id, domain.StatusOrdered, "roll it back")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestListByWorkOrder(t *testing.T) {
	f := setupAssignments(t, materialdomain.MaterialTypePurchasable)
	first := f.create(t, "100")
	second := f.create(t, "40")

	assignments, err := f.svc.ListByWorkOrder(f.ctx, f.workOrder.workOrder.ID.String())
	require.NoError(t, err)
	require.Len(t, assignments, 2)

	ids := []snowflake.ID{assignments[0].ID, assignments[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}
