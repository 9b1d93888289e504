package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/material/domain"
	"github.com/sitelane/materialflow/pkg/db/pagination"
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

func setupMaterials(t *testing.T) (domain.Service, context.Context) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Material{}))

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

func createMaterial(t *testing.T, svc domain.Service, ctx context.Context, code string, materialType domain.MaterialType) domain.Material {
	t.Helper()
	material, err := svc.Create(ctx, domain.CreateMaterialRequest{
		Code:         code,
		Description:  "desc for " + code,
		Unit:         "pc",
		MaterialType: materialType,
		UnitCost:     decimal.RequireFromString("9.90"),
		MinimumStock: decimal.RequireFromString("10"),
		ReorderPoint: decimal.RequireFromString("20"),
	})
	require.NoError(t, err)
	return material
}

func TestCreateMaterialNormalizesCode(t *testing.T) {
	svc, ctx := setupMaterials(t)

	material, err := svc.Create(ctx, domain.CreateMaterialRequest{
		Code:         "  Rebar #12 / 6m  ",
		Description:  "Rebar 12mm, 6m bars",
		Unit:         "pc",
		MaterialType: domain.MaterialTypePurchasable,
		UnitCost:     decimal.RequireFromString("8.90"),
	})
	require.NoError(t, err)
	assert.Equal(t, "rebar-12-6m", material.Code)
	assert.Equal(t, "USD", material.Currency)
	assert.True(t, material.Active)

	// Differently written variants of the same code collide.
	_, err = svc.Create(ctx, domain.CreateMaterialRequest{
		Code:         "rebar 12 6M",
		Unit:         "pc",
		MaterialType: domain.MaterialTypePurchasable,
	})
	require.ErrorIs(t, err, domain.ErrCodeTaken)

	loaded, err := svc.GetByCode(ctx, "Rebar #12 / 6m")
	require.NoError(t, err)
	assert.Equal(t, material.ID, loaded.ID)
}

func TestCreateMaterialValidation(t *testing.T) {
	svc, ctx := setupMaterials(t)

	_, err := svc.Create(ctx, domain.CreateMaterialRequest{Code: "  ", Unit: "pc", MaterialType: domain.MaterialTypePurchasable})
	require.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = svc.Create(ctx, domain.CreateMaterialRequest{Code: "x-1", Unit: "pc", MaterialType: "consumable"})
	require.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = svc.Create(ctx, domain.CreateMaterialRequest{Code: "x-1", Unit: " ", MaterialType: domain.MaterialTypePurchasable})
	require.ErrorIs(t, err, domain.ErrInvalidUnit)

	_, err = svc.Create(ctx, domain.CreateMaterialRequest{
		Code: "x-1", Unit: "pc", MaterialType: domain.MaterialTypePurchasable,
		UnitCost: decimal.RequireFromString("-1"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidCost)

	_, err = svc.Create(ctx, domain.CreateMaterialRequest{
		Code: "x-1", Unit: "pc", MaterialType: domain.MaterialTypePurchasable,
		MinimumStock: decimal.RequireFromString("-5"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidThreshold)
}

func TestUpdateMaterial(t *testing.T) {
	svc, ctx := setupMaterials(t)
	material := createMaterial(t, svc, ctx, "cem-425", domain.MaterialTypePurchasable)

	description := "Portland cement 42.5 N"
	cost := decimal.RequireFromString("13.10")
	updated, err := svc.Update(ctx, material.ID.String(), domain.UpdateMaterialRequest{
		Description: &description,
		UnitCost:    &cost,
	})
	require.NoError(t, err)
	assert.Equal(t, description, updated.Description)
	assert.True(t, updated.UnitCost.Equal(cost))
	// Untouched fields keep their values.
	assert.Equal(t, "pc", updated.Unit)

	negative := decimal.RequireFromString("-2")
	_, err = svc.Update(ctx, material.ID.String(), domain.UpdateMaterialRequest{UnitCost: &negative})
	require.ErrorIs(t, err, domain.ErrInvalidCost)

	_, err = svc.Update(ctx, "999999", domain.UpdateMaterialRequest{Description: &description})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeactivateMaterial(t *testing.T) {
	svc, ctx := setupMaterials(t)
	material := createMaterial(t, svc, ctx, "clt-tile", domain.MaterialTypeReceivable)

	deactivated, err := svc.Deactivate(ctx, material.ID.String())
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	// Deactivation is idempotent.
	again, err := svc.Deactivate(ctx, material.ID.String())
	require.NoError(t, err)
	assert.False(t, again.Active)
}

func TestListMaterials(t *testing.T) {
	svc, ctx := setupMaterials(t)
	createMaterial(t, svc, ctx, "cem-425", domain.MaterialTypePurchasable)
	createMaterial(t, svc, ctx, "reb-12", domain.MaterialTypePurchasable)
	tile := createMaterial(t, svc, ctx, "clt-tile", domain.MaterialTypeReceivable)
	_, err := svc.Deactivate(ctx, tile.ID.String())
	require.NoError(t, err)

	resp, err := svc.List(ctx, domain.ListMaterialRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Materials, 2)

	resp, err = svc.List(ctx, domain.ListMaterialRequest{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, resp.Materials, 3)

	resp, err = svc.List(ctx, domain.ListMaterialRequest{MaterialType: string(domain.MaterialTypeReceivable), IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, resp.Materials, 1)
	assert.Equal(t, "clt-tile", resp.Materials[0].Code)

	resp, err = svc.List(ctx, domain.ListMaterialRequest{Search: "REB"})
	require.NoError(t, err)
	require.Len(t, resp.Materials, 1)
	assert.Equal(t, "reb-12", resp.Materials[0].Code)

	_, err = svc.List(ctx, domain.ListMaterialRequest{MaterialType: "consumable"})
	require.ErrorIs(t, err, domain.ErrInvalidType)
}

func TestListMaterialsPagination(t *testing.T) {
	svc, ctx := setupMaterials(t)
	for i := 0; i < 5; i++ {
		createMaterial(t, svc, ctx, fmt.Sprintf("mat-%d", i), domain.MaterialTypePurchasable)
	}

	first, err := svc.List(ctx, domain.ListMaterialRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Materials, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := svc.List(ctx, domain.ListMaterialRequest{Pagination: pagination.Pagination{
		PageSize:  2,
		PageToken: first.NextPageToken,
	}})
	require.NoError(t, err)
	require.Len(t, second.Materials, 2)
	assert.NotEqual(t, first.Materials[0].ID, second.Materials[0].ID)

	_, err = svc.List(ctx, domain.ListMaterialRequest{Pagination: pagination.Pagination{PageToken: "not base64!"}})
	require.ErrorIs(t, err, domain.ErrInvalidPageToken)
}
