package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	alertdomain "github.com/sitelane/materialflow/internal/alert/domain"
	alertservice "github.com/sitelane/materialflow/internal/alert/service"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	auditrepository "github.com/sitelane/materialflow/internal/audit/repository"
	auditservice "github.com/sitelane/materialflow/internal/audit/service"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/config"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	inventoryservice "github.com/sitelane/materialflow/internal/inventory/service"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	materialservice "github.com/sitelane/materialflow/internal/material/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type schedulerFixture struct {
	scheduler   *Scheduler
	db          *gorm.DB
	materialSvc materialdomain.Service
	inventory   inventorydomain.Service
	alerts      alertdomain.Service
	audit       auditdomain.Service
	node        *snowflake.Node
	ctx         context.Context
}

// setupScheduler wires the reconciler against the real services so a pass
// exercises the same queries production runs.
func setupScheduler(t *testing.T) schedulerFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&materialdomain.Material{},
		&inventorydomain.StockLevel{},
		&inventorydomain.WarehouseStock{},
		&assignmentdomain.MaterialAssignment{},
		&assignmentdomain.PurchasableDetail{},
		&alertdomain.StockAlert{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	policy := &config.StockPolicyHolder{}

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: auditrepository.Provide(),
	})
	materialSvc := materialservice.New(materialservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, AuditSvc: auditSvc,
	})
	inventorySvc := inventoryservice.New(inventoryservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, MaterialSvc: materialSvc,
	})
	alertSvc := alertservice.New(alertservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Policy: policy,
	})

	scheduler, err := New(Params{
		DB:           db,
		Log:          log,
		Clock:        fake,
		Policy:       policy,
		InventorySvc: inventorySvc,
		AlertSvc:     alertSvc,
		AuditSvc:     auditSvc,
		Metrics:      nil,
	})
	require.NoError(t, err)

	return schedulerFixture{
		scheduler:   scheduler,
		db:          db,
		materialSvc: materialSvc,
		inventory:   inventorySvc,
		alerts:      alertSvc,
		audit:       auditSvc,
		node:        node,
		ctx:         context.Background(),
	}
}

func (f schedulerFixture) createMaterial(t *testing.T, code, minimum string) materialdomain.Material {
	t.Helper()
	material, err := f.materialSvc.Create(f.ctx, materialdomain.CreateMaterialRequest{
		Code:         code,
		Description:  "test material",
		Unit:         "pc",
		MaterialType: materialdomain.MaterialTypePurchasable,
		MinimumStock: decimal.RequireFromString(minimum),
	})
	require.NoError(t, err)
	return material
}

func TestRunOnceFlagsDriftWithoutRepairing(t *testing.T) {
	f := setupScheduler(t)
	material := f.createMaterial(t, "reb-12", "0")
	warehouseID := f.node.Generate()
	require.NoError(t, f.inventory.ApplyDelivery(f.ctx, material.ID, warehouseID, decimal.RequireFromString("100"), ""))

	// Simulate a manual database edit behind the service's back.
	require.NoError(t, f.db.Model(&inventorydomain.WarehouseStock{}).
		Where("material_id = ?", material.ID).
		Update("quantity", decimal.RequireFromString("90")).Error)

	require.NoError(t, f.scheduler.RunOnce(f.ctx))

	// The drift is reported through the audit log.
	resp, err := f.audit.List(f.ctx, auditdomain.ListAuditLogRequest{Action: "inventory.reconcile_mismatch"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "100", resp.AuditLogs[0].Metadata["stored_total"])
	assert.Equal(t, "90", resp.AuditLogs[0].Metadata["warehouse_sum"])

	// The stored total is left alone for a human to investigate.
	level, _, err := f.inventory.GetStockLevel(f.ctx, material.ID.String())
	require.NoError(t, err)
	assert.True(t, level.TotalQuantity.Equal(decimal.RequireFromString("100")))
}

func TestRunOnceQuietWhenConsistent(t *testing.T) {
	f := setupScheduler(t)
	material := f.createMaterial(t, "reb-12", "0")
	require.NoError(t, f.inventory.ApplyDelivery(f.ctx, material.ID, f.node.Generate(), decimal.RequireFromString("100"), ""))

	require.NoError(t, f.scheduler.RunOnce(f.ctx))

	resp, err := f.audit.List(f.ctx, auditdomain.ListAuditLogRequest{Action: "inventory.reconcile_mismatch"})
	require.NoError(t, err)
	assert.Empty(t, resp.AuditLogs)
}

func TestRunOnceSyncsAlerts(t *testing.T) {
	f := setupScheduler(t)
	material := f.createMaterial(t, "cem-425", "50")
	warehouseID := f.node.Generate()
	require.NoError(t, f.inventory.ApplyDelivery(f.ctx, material.ID, warehouseID, decimal.RequireFromString("30"), ""))

	require.NoError(t, f.scheduler.RunOnce(f.ctx))

	alerts, err := f.alerts.ListActive(f.ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, material.ID, alerts[0].MaterialID)
	assert.Equal(t, inventorydomain.StockStatusLowStock, alerts[0].StockStatus)
	assert.True(t, alerts[0].Threshold.Equal(decimal.RequireFromString("50")))

	// Restocking above the threshold resolves the alert on the next pass.
	require.NoError(t, f.inventory.ApplyDelivery(f.ctx, material.ID, warehouseID, decimal.RequireFromString("200"), ""))
	require.NoError(t, f.scheduler.RunOnce(f.ctx))

	alerts, err = f.alerts.ListActive(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
