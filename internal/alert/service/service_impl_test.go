package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sitelane/materialflow/internal/alert/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/config"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type alertFixture struct {
	svc   domain.Service
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
	ctx   context.Context
}

func setupAlerts(t *testing.T) alertFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.StockAlert{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Policy: &config.StockPolicyHolder{},
	})
	return alertFixture{svc: svc, db: db, clock: fake, node: node, ctx: context.Background()}
}

func lowObservation(materialID snowflake.ID) domain.Observation {
	return domain.Observation{
		MaterialID:   materialID,
		MaterialCode: "cem-425",
		StockStatus:  inventorydomain.StockStatusLowStock,
		Total:        decimal.RequireFromString("30"),
		Threshold:    decimal.RequireFromString("40"),
	}
}

func TestSyncRaisesSingleAlert(t *testing.T) {
	f := setupAlerts(t)
	materialID := f.node.Generate()

	require.NoError(t, f.svc.Sync(f.ctx, lowObservation(materialID)))

	alerts, err := f.svc.ListActive(f.ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertStatusActive, alerts[0].Status)
	assert.Contains(t, alerts[0].Message, "cem-425")

	// A repeat observation refreshes the existing alert, no duplicate.
	f.clock.Advance(10 * time.Minute)
	obs := lowObservation(materialID)
	obs.Total = decimal.RequireFromString("12")
	obs.StockStatus = inventorydomain.StockStatusOutOfStock
	require.NoError(t, f.svc.Sync(f.ctx, obs))

	alerts, err = f.svc.ListActive(f.ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, inventorydomain.StockStatusOutOfStock, alerts[0].StockStatus)
	assert.True(t, alerts[0].TotalQuantity.Equal(decimal.RequireFromString("12")))
	assert.Equal(t, f.clock.Now(), alerts[0].LastObservedAt.UTC())
}

func TestSyncResolvesOnRecovery(t *testing.T) {
	f := setupAlerts(t)
	materialID := f.node.Generate()

	require.NoError(t, f.svc.Sync(f.ctx, lowObservation(materialID)))

	recovered := lowObservation(materialID)
	recovered.StockStatus = inventorydomain.StockStatusInStock
	recovered.Total = decimal.RequireFromString("500")
	f.clock.Advance(time.Hour)
	require.NoError(t, f.svc.Sync(f.ctx, recovered))

	alerts, err := f.svc.ListActive(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	var resolved domain.StockAlert
	require.NoError(t, f.db.First(&resolved, "material_id = ?", materialID).Error)
	assert.Equal(t, domain.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	// A later dip opens a fresh alert rather than reviving the resolved one.
	require.NoError(t, f.svc.Sync(f.ctx, lowObservation(materialID)))
	alerts, err = f.svc.ListActive(f.ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.NotEqual(t, resolved.ID, alerts[0].ID)
}

func TestSyncHealthyWithoutAlertIsNoop(t *testing.T) {
	f := setupAlerts(t)

	obs := lowObservation(f.node.Generate())
	obs.StockStatus = inventorydomain.StockStatusInStock
	require.NoError(t, f.svc.Sync(f.ctx, obs))

	var count int64
	require.NoError(t, f.db.Model(&domain.StockAlert{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSyncRejectsMissingMaterial(t *testing.T) {
	f := setupAlerts(t)
	require.ErrorIs(t, f.svc.Sync(f.ctx, domain.Observation{}), domain.ErrInvalidObservation)
}
