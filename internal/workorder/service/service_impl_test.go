package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/workorder/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopAuditSvc struct{}

func (noopAuditSvc) AuditLog(ctx context.Context, action, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func (noopAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	panic("not used")
}

func setupWorkOrders(t *testing.T) (domain.Service, context.Context) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.WorkOrder{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
		AuditSvc: noopAuditSvc{},
	})
	return svc, context.Background()
}

func TestCreateWorkOrder(t *testing.T) {
	svc, ctx := setupWorkOrders(t)

	workOrder, err := svc.Create(ctx, domain.CreateWorkOrderRequest{
		Number:     " WO-2025-031 ",
		Title:      "Warehouse extension",
		ClientName: "Hallenbau AG",
		ClientType: "commercial",
	})
	require.NoError(t, err)
	assert.Equal(t, "WO-2025-031", workOrder.Number)
	assert.Equal(t, domain.WorkOrderStatusOpen, workOrder.Status)
	assert.True(t, workOrder.AcceptsAssignments())

	_, err = svc.Create(ctx, domain.CreateWorkOrderRequest{Number: "WO-2025-031", Title: "Duplicate"})
	require.ErrorIs(t, err, domain.ErrNumberTaken)

	_, err = svc.Create(ctx, domain.CreateWorkOrderRequest{Number: " ", Title: "No number"})
	require.ErrorIs(t, err, domain.ErrInvalidNumber)

	_, err = svc.Create(ctx, domain.CreateWorkOrderRequest{Number: "WO-2025-032", Title: "  "})
	require.ErrorIs(t, err, domain.ErrInvalidTitle)
}

func TestSetWorkOrderStatus(t *testing.T) {
	svc, ctx := setupWorkOrders(t)
	workOrder, err := svc.Create(ctx, domain.CreateWorkOrderRequest{Number: "WO-2025-040", Title: "Roof repair"})
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, workOrder.ID.String(), domain.WorkOrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderStatusCompleted, updated.Status)
	assert.False(t, updated.AcceptsAssignments())

	_, err = svc.SetStatus(ctx, workOrder.ID.String(), "archived")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, "999999", domain.WorkOrderStatusActive)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetWorkOrderByID(t *testing.T) {
	svc, ctx := setupWorkOrders(t)
	workOrder, err := svc.Create(ctx, domain.CreateWorkOrderRequest{Number: "WO-2025-050", Title: "Site setup"})
	require.NoError(t, err)

	loaded, err := svc.GetByID(ctx, workOrder.ID.String())
	require.NoError(t, err)
	assert.Equal(t, workOrder.ID, loaded.ID)

	_, err = svc.GetByID(ctx, "not-a-number")
	require.ErrorIs(t, err, domain.ErrInvalidID)
}
