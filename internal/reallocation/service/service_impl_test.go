package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/identity"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	"github.com/sitelane/materialflow/internal/reallocation/domain"
	usagedomain "github.com/sitelane/materialflow/internal/usage/domain"
	workorderdomain "github.com/sitelane/materialflow/internal/workorder/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubAssignmentSvc struct {
	source     assignmentdomain.Assignment
	node       *snowflake.Node
	failCreate error
	statusSets []assignmentdomain.Status
}

func (s *stubAssignmentSvc) Create(ctx context.Context, req assignmentdomain.CreateAssignmentRequest) (assignmentdomain.Assignment, error) {
	panic("not used")
}

func (s *stubAssignmentSvc) Transition(ctx context.Context, id string, target assignmentdomain.Status, payload assignmentdomain.TransitionPayload) (assignmentdomain.Assignment, error) {
	panic("not used")
}

func (s *stubAssignmentSvc) Override(ctx context.Context, id string, target assignmentdomain.Status, reason string) (assignmentdomain.Assignment, error) {
	panic("not used")
}

func (s *stubAssignmentSvc) GetByID(ctx context.Context, id string) (assignmentdomain.Assignment, error) {
	return s.source, nil
}

func (s *stubAssignmentSvc) ListByWorkOrder(ctx context.Context, workOrderID string) ([]assignmentdomain.Assignment, error) {
	return []assignmentdomain.Assignment{s.source}, nil
}

func (s *stubAssignmentSvc) GetForUpdateTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (assignmentdomain.Assignment, error) {
	if id != s.source.ID {
		return assignmentdomain.Assignment{}, assignmentdomain.ErrNotFound
	}
	return s.source, nil
}

func (s *stubAssignmentSvc) SetStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, target assignmentdomain.Status) error {
	if id != s.source.ID {
		return assignmentdomain.ErrNotFound
	}
	switch detail := s.source.Detail.(type) {
	case assignmentdomain.PurchasableDetail:
		detail.Status = target
		s.source.Detail = detail
	case assignmentdomain.ReceivableDetail:
		detail.Status = target
		s.source.Detail = detail
	}
	s.statusSets = append(s.statusSets, target)
	return nil
}

func (s *stubAssignmentSvc) CreateForReallocationTx(ctx context.Context, tx *gorm.DB, source assignmentdomain.Assignment, targetWorkOrderID snowflake.ID, quantity decimal.Decimal) (assignmentdomain.Assignment, error) {
	if s.failCreate != nil {
		return assignmentdomain.Assignment{}, s.failCreate
	}
	core := assignmentdomain.MaterialAssignment{
		ID:           s.node.Generate(),
		WorkOrderID:  targetWorkOrderID,
		MaterialID:   source.MaterialID,
		MaterialType: source.MaterialType,
		Unit:         source.Unit,
	}
	return assignmentdomain.Assignment{MaterialAssignment: core, Detail: assignmentdomain.PurchasableDetail{
		AssignmentID: core.ID,
		Status:       assignmentdomain.StatusDelivered,
		Quantity:     quantity,
	}}, nil
}

// ledgerUsageSvc reads and writes real usage_records rows so transaction
// rollbacks are observable from the test.
type ledgerUsageSvc struct {
	node  *snowflake.Node
	clock clock.Clock
}

func (s *ledgerUsageSvc) RecordUsage(ctx context.Context, req usagedomain.RecordUsageRequest) (usagedomain.UsageRecord, usagedomain.Progress, error) {
	panic("not used")
}

func (s *ledgerUsageSvc) RecordSiteIssue(ctx context.Context, req usagedomain.RecordSiteIssueRequest) (usagedomain.UsageRecord, error) {
	panic("not used")
}

func (s *ledgerUsageSvc) RecordReturnOrWaste(ctx context.Context, req usagedomain.DispositionRequest) (usagedomain.UsageRecord, usagedomain.Progress, error) {
	panic("not used")
}

func (s *ledgerUsageSvc) ListRecords(ctx context.Context, assignmentID string) ([]usagedomain.UsageRecord, error) {
	panic("not used")
}

func (s *ledgerUsageSvc) Progress(ctx context.Context, assignmentID string) (usagedomain.Progress, error) {
	panic("not used")
}

func (s *ledgerUsageSvc) ProgressTx(ctx context.Context, tx *gorm.DB, assignmentID snowflake.ID, total decimal.Decimal) (usagedomain.Progress, error) {
	var records []usagedomain.UsageRecord
	if err := tx.WithContext(ctx).Where("assignment_id = ?", assignmentID).Order("id ASC").Find(&records).Error; err != nil {
		return usagedomain.Progress{}, err
	}
	return usagedomain.DeriveProgress(assignmentID, total, records), nil
}

func (s *ledgerUsageSvc) AppendReallocationReturnTx(ctx context.Context, tx *gorm.DB, assignmentID snowflake.ID, quantity decimal.Decimal, reallocationID snowflake.ID) (usagedomain.UsageRecord, error) {
	record := usagedomain.UsageRecord{
		ID:               s.node.Generate(),
		AssignmentID:     assignmentID,
		RecordType:       usagedomain.RecordTypeReturn,
		QuantityReturned: &quantity,
		ReallocationID:   &reallocationID,
		RecordedBy:       "system",
		RecordDate:       s.clock.Now(),
		CreatedAt:        s.clock.Now(),
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return usagedomain.UsageRecord{}, err
	}
	return record, nil
}

type stubWorkOrderSvc struct {
	orders map[string]workorderdomain.WorkOrder
}

func (s *stubWorkOrderSvc) Create(ctx context.Context, req workorderdomain.CreateWorkOrderRequest) (workorderdomain.WorkOrder, error) {
	panic("not used")
}

func (s *stubWorkOrderSvc) SetStatus(ctx context.Context, id string, status workorderdomain.WorkOrderStatus) (workorderdomain.WorkOrder, error) {
	panic("not used")
}

func (s *stubWorkOrderSvc) GetByID(ctx context.Context, id string) (workorderdomain.WorkOrder, error) {
	workOrder, ok := s.orders[id]
	if !ok {
		return workorderdomain.WorkOrder{}, workorderdomain.ErrNotFound
	}
	return workOrder, nil
}

func (s *stubWorkOrderSvc) List(ctx context.Context) ([]workorderdomain.WorkOrder, error) {
	panic("not used")
}

type noopAuditSvc struct{}

func (noopAuditSvc) AuditLog(ctx context.Context, action, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func (noopAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	panic("not used")
}

type reallocationFixture struct {
	svc        domain.Service
	db         *gorm.DB
	assignment *stubAssignmentSvc
	fromOrder  workorderdomain.WorkOrder
	toOrder    workorderdomain.WorkOrder
	workOrders *stubWorkOrderSvc
	ctx        context.Context
}

func setupReallocations(t *testing.T) reallocationFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&domain.MaterialReallocation{},
		&domain.ReallocationAudit{},
		&usagedomain.UsageRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))

	fromOrder := workorderdomain.WorkOrder{ID: node.Generate(), Number: "WO-2025-001", Status: workorderdomain.WorkOrderStatusActive}
	toOrder := workorderdomain.WorkOrder{ID: node.Generate(), Number: "WO-2025-002", Status: workorderdomain.WorkOrderStatusOpen}
	workOrders := &stubWorkOrderSvc{orders: map[string]workorderdomain.WorkOrder{
		fromOrder.ID.String(): fromOrder,
		toOrder.ID.String():   toOrder,
	}}

	source := assignmentdomain.Assignment{
		MaterialAssignment: assignmentdomain.MaterialAssignment{
			ID:           node.Generate(),
			WorkOrderID:  fromOrder.ID,
			MaterialID:   node.Generate(),
			MaterialType: materialdomain.MaterialTypePurchasable,
			Unit:         "bag",
		},
		Detail: assignmentdomain.PurchasableDetail{
			Status:   assignmentdomain.StatusDelivered,
			Quantity: decimal.RequireFromString("100"),
		},
	}
	assignmentSvc := &stubAssignmentSvc{source: source, node: node}

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         fake,
		AssignmentSvc: assignmentSvc,
		UsageSvc:      &ledgerUsageSvc{node: node, clock: fake},
		WorkOrderSvc:  workOrders,
		AuditSvc:      noopAuditSvc{},
		Metrics:       nil,
	})

	ctx := identity.WithActor(context.Background(), identity.Actor{ID: "u-3", Name: "Lea Brunner", Role: "project_manager"})
	return reallocationFixture{svc: svc, db: db, assignment: assignmentSvc, fromOrder: fromOrder, toOrder: toOrder, workOrders: workOrders, ctx: ctx}
}

func (f reallocationFixture) request(t *testing.T, quantity string) domain.MaterialReallocation {
	t.Helper()
	reallocation, err := f.svc.Request(f.ctx, domain.RequestReallocation{
		MaterialID:      f.assignment.source.MaterialID.String(),
		FromWorkOrderID: f.fromOrder.ID.String(),
		ToWorkOrderID:   f.toOrder.ID.String(),
		Quantity:        decimal.RequireFromString(quantity),
		Reason:          "other site ran short",
	})
	require.NoError(t, err)
	return reallocation
}

func (f reallocationFixture) consume(t *testing.T, quantity string) {
	t.Helper()
	used := decimal.RequireFromString(quantity)
	record := usagedomain.UsageRecord{
		AssignmentID: f.assignment.source.ID,
		RecordType:   usagedomain.RecordTypeUsageUpdate,
		QuantityUsed: &used,
		RecordedBy:   "crew",
		RecordDate:   time.Now(),
	}
	require.NoError(t, f.db.Create(&record).Error)
}

func TestRequestReallocation(t *testing.T) {
	f := setupReallocations(t)

	reallocation := f.request(t, "30")
	assert.Equal(t, domain.StatusPending, reallocation.Status)
	assert.Equal(t, "Lea Brunner", reallocation.RequestedBy)
	assert.Equal(t, f.assignment.source.ID, reallocation.FromAssignmentID)

	_, trail, err := f.svc.GetByID(f.ctx, reallocation.ID.String())
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.AuditEventRequested, trail[0].Event)
}

func TestRequestReallocationGuards(t *testing.T) {
	t.Run("same work order", func(t *testing.T) {
		f := setupReallocations(t)

		_, err := f.svc.Request(f.ctx, domain.RequestReallocation{
			MaterialID:      f.assignment.source.MaterialID.String(),
			FromWorkOrderID: f.fromOrder.ID.String(),
			ToWorkOrderID:   f.fromOrder.ID.String(),
			Quantity:        decimal.RequireFromString("10"),
		})
		require.ErrorIs(t, err, domain.ErrSameWorkOrder)
	})

	t.Run("closed target", func(t *testing.T) {
		f := setupReallocations(t)
		closed := f.toOrder
		closed.Status = workorderdomain.WorkOrderStatusCompleted
		f.workOrders.orders[closed.ID.String()] = closed

		_, err := f.svc.Request(f.ctx, domain.RequestReallocation{
			MaterialID:      f.assignment.source.MaterialID.String(),
			FromWorkOrderID: f.fromOrder.ID.String(),
			ToWorkOrderID:   closed.ID.String(),
			Quantity:        decimal.RequireFromString("10"),
		})
		require.ErrorIs(t, err, workorderdomain.ErrClosed)
	})

	t.Run("malformed material id", func(t *testing.T) {
		f := setupReallocations(t)

		_, err := f.svc.Request(f.ctx, domain.RequestReallocation{
			MaterialID:      "not-a-number",
			FromWorkOrderID: f.fromOrder.ID.String(),
			ToWorkOrderID:   f.toOrder.ID.String(),
			Quantity:        decimal.RequireFromString("10"),
		})
		require.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("no source assignment", func(t *testing.T) {
		f := setupReallocations(t)
		otherMaterial := f.assignment.node.Generate()

		_, err := f.svc.Request(f.ctx, domain.RequestReallocation{
			MaterialID:      otherMaterial.String(),
			FromWorkOrderID: f.fromOrder.ID.String(),
			ToWorkOrderID:   f.toOrder.ID.String(),
			Quantity:        decimal.RequireFromString("10"),
		})
		require.ErrorIs(t, err, domain.ErrNoSourceAssignment)
	})
}

func TestApproveRevalidatesRemaining(t *testing.T) {
	f := setupReallocations(t)
	reallocation := f.request(t, "30")

	// 80 of the 100 were consumed after the request went in; only 20 remain.
	f.consume(t, "80")

	_, err := f.svc.Approve(f.ctx, reallocation.ID.String(), "")
	require.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	loaded, _, err := f.svc.GetByID(f.ctx, reallocation.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, loaded.Status)
}

func TestApproveAndReject(t *testing.T) {
	f := setupReallocations(t)

	approved := f.request(t, "30")
	got, err := f.svc.Approve(f.ctx, approved.ID.String(), "go ahead")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.Equal(t, "Lea Brunner", got.ApprovedBy)

	// Terminal and non-pending states refuse further decisions.
	_, err = f.svc.Reject(f.ctx, approved.ID.String(), "too late")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	rejected := f.request(t, "10")
	got, err = f.svc.Reject(f.ctx, rejected.ID.String(), "material needed on site after all")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	assert.Equal(t, "material needed on site after all", got.RejectReason)

	_, err = f.svc.Approve(f.ctx, rejected.ID.String(), "")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestExecuteMovesQuantity(t *testing.T) {
	f := setupReallocations(t)
	reallocation := f.request(t, "30")
	_, err := f.svc.Approve(f.ctx, reallocation.ID.String(), "")
	require.NoError(t, err)

	got, err := f.svc.Execute(f.ctx, reallocation.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.ToAssignmentID)
	require.NotNil(t, got.CompletedAt)

	// The move shows up as a return record against the source ledger.
	var records []usagedomain.UsageRecord
	require.NoError(t, f.db.Where("assignment_id = ?", f.assignment.source.ID).Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, usagedomain.RecordTypeReturn, records[0].RecordType)
	require.NotNil(t, records[0].QuantityReturned)
	assert.True(t, records[0].QuantityReturned.Equal(decimal.RequireFromString("30")))

	_, trail, err := f.svc.GetByID(f.ctx, reallocation.ID.String())
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, domain.AuditEventCompleted, trail[2].Event)

	// A partial move leaves the source open for further usage.
	assert.Empty(t, f.assignment.statusSets)
	assert.Equal(t, assignmentdomain.StatusDelivered, f.assignment.source.Status())

	// Completed is terminal.
	_, err = f.svc.Execute(f.ctx, reallocation.ID.String())
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestExecuteFullQuantityClosesSource(t *testing.T) {
	f := setupReallocations(t)
	reallocation := f.request(t, "100")
	_, err := f.svc.Approve(f.ctx, reallocation.ID.String(), "")
	require.NoError(t, err)

	got, err := f.svc.Execute(f.ctx, reallocation.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	// The drained source walked forward to used inside the move.
	assert.Equal(t, assignmentdomain.StatusUsed, f.assignment.source.Status())
	assert.Equal(t, []assignmentdomain.Status{
		assignmentdomain.StatusInUse,
		assignmentdomain.StatusUsed,
	}, f.assignment.statusSets)
}

func TestExecuteRollsBackOnFailure(t *testing.T) {
	f := setupReallocations(t)
	reallocation := f.request(t, "30")
	_, err := f.svc.Approve(f.ctx, reallocation.ID.String(), "")
	require.NoError(t, err)

	boom := errors.New("target detail write failed")
	f.assignment.failCreate = boom

	_, err = f.svc.Execute(f.ctx, reallocation.ID.String())
	require.ErrorIs(t, err, boom)

	// The whole move rolled back: no return record, still approved.
	var count int64
	require.NoError(t, f.db.Model(&usagedomain.UsageRecord{}).Where("assignment_id = ?", f.assignment.source.ID).Count(&count).Error)
	assert.Zero(t, count)

	loaded, trail, err := f.svc.GetByID(f.ctx, reallocation.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, loaded.Status)
	assert.Nil(t, loaded.ToAssignmentID)

	// The failed attempt leaves an error entry so the retry is traceable.
	require.Len(t, trail, 3)
	assert.Equal(t, domain.AuditEventError, trail[2].Event)
	assert.Contains(t, trail[2].Detail, "target detail write failed")

	// A retry after the underlying fault is fixed succeeds.
	f.assignment.failCreate = nil
	got, err := f.svc.Execute(f.ctx, reallocation.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestExecuteRequiresApproval(t *testing.T) {
	f := setupReallocations(t)
	reallocation := f.request(t, "30")

	_, err := f.svc.Execute(f.ctx, reallocation.ID.String())
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	// Business rejections are not execution failures; no error trail entry.
	_, trail, err := f.svc.GetByID(f.ctx, reallocation.ID.String())
	require.NoError(t, err)
	require.Len(t, trail, 1)
}
