// Package scheduler runs the periodic stock reconciliation loop: verify
// the ledger invariants and keep low-stock alerts in sync.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	alertdomain "github.com/sitelane/materialflow/internal/alert/domain"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/config"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	"github.com/sitelane/materialflow/internal/observability/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler dependencies missing")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Policy       *config.StockPolicyHolder
	InventorySvc inventorydomain.Service
	AlertSvc     alertdomain.Service
	AuditSvc     auditdomain.Service
	Metrics      *metrics.Metrics
}

type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	policy       *config.StockPolicyHolder
	inventorySvc inventorydomain.Service
	alertSvc     alertdomain.Service
	auditSvc     auditdomain.Service
	metrics      *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Policy == nil ||
		p.InventorySvc == nil || p.AlertSvc == nil || p.AuditSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		clock:        p.Clock,
		policy:       p.Policy,
		inventorySvc: p.InventorySvc,
		alertSvc:     p.AlertSvc,
		auditSvc:     p.AuditSvc,
		metrics:      p.Metrics,
	}, nil
}

// RunOnce performs a single reconciliation pass.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
	defer cancel()

	start := s.clock.Now()
	var firstErr error
	if err := s.reconcileTotals(ctx); err != nil {
		s.log.Error("total reconciliation failed", zap.Error(err))
		firstErr = err
	}
	if err := s.syncAlerts(ctx); err != nil {
		s.log.Error("alert sync failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	s.log.Debug("reconciliation pass finished",
		zap.Duration("took", s.clock.Now().Sub(start)),
	)
	return firstErr
}

// RunForever loops until the context ends. The interval is re-read every
// pass so stockpolicy.yml changes apply without a restart.
func (s *Scheduler) RunForever(ctx context.Context) {
	for {
		interval := s.policy.Current().ReconcileInterval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("reconciliation pass failed", zap.Error(err))
		}
	}
}

// reconcileTotals checks total = Σ warehouse stocks for every ledger row.
// Drift is reported, never silently repaired: stock only moves through the
// inventory service, so a mismatch means a bug or manual database edit
// worth a human look.
func (s *Scheduler) reconcileTotals(ctx context.Context) error {
	batchSize := s.policy.Current().ReconcileBatchSize

	var lastID snowflake.ID
	for {
		var levels []inventorydomain.StockLevel
		if err := s.db.WithContext(ctx).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(batchSize).
			Find(&levels).Error; err != nil {
			return err
		}
		if len(levels) == 0 {
			return nil
		}

		for _, level := range levels {
			lastID = level.ID

			var sum decimal.NullDecimal
			err := s.db.WithContext(ctx).
				Model(&inventorydomain.WarehouseStock{}).
				Select("SUM(quantity)").
				Where("material_id = ?", level.MaterialID).
				Scan(&sum).Error
			if err != nil {
				return err
			}
			total := decimal.Zero
			if sum.Valid {
				total = sum.Decimal
			}

			if total.Equal(level.TotalQuantity) {
				s.metrics.RecordStockCheck(ctx, "ok")
				continue
			}

			s.metrics.RecordStockCheck(ctx, "mismatch")
			s.log.Error("stock total out of sync with warehouse stocks",
				zap.String("material_id", level.MaterialID.String()),
				zap.String("stored_total", level.TotalQuantity.String()),
				zap.String("warehouse_sum", total.String()),
			)
			targetID := level.MaterialID.String()
			_ = s.auditSvc.AuditLog(ctx, "inventory.reconcile_mismatch", "stock_level", &targetID, map[string]any{
				"stored_total":  level.TotalQuantity.String(),
				"warehouse_sum": total.String(),
			})
		}
	}
}

// syncAlerts recomputes each active material's stock status and lines the
// alert table up with it.
func (s *Scheduler) syncAlerts(ctx context.Context) error {
	policy := s.policy.Current()
	batchSize := policy.ReconcileBatchSize

	var lastID snowflake.ID
	for {
		var materials []materialdomain.Material
		if err := s.db.WithContext(ctx).
			Where("id > ? AND active = ?", lastID, true).
			Order("id ASC").
			Limit(batchSize).
			Find(&materials).Error; err != nil {
			return err
		}
		if len(materials) == 0 {
			return nil
		}

		for _, material := range materials {
			lastID = material.ID

			status, err := s.inventorySvc.StockStatusFor(ctx, material.ID.String())
			if err != nil {
				return fmt.Errorf("stock status for %s: %w", material.Code, err)
			}

			var level inventorydomain.StockLevel
			total := decimal.Zero
			err = s.db.WithContext(ctx).First(&level, "material_id = ?", material.ID).Error
			switch {
			case err == nil:
				total = level.TotalQuantity
			case errors.Is(err, gorm.ErrRecordNotFound):
			default:
				return err
			}

			threshold := material.MinimumStock
			if material.ReorderPoint.GreaterThan(threshold) {
				threshold = material.ReorderPoint
			}
			if threshold.IsZero() {
				threshold = decimal.NewFromFloat(policy.DefaultMinimumStock)
			}

			if err := s.alertSvc.Sync(ctx, alertdomain.Observation{
				MaterialID:   material.ID,
				MaterialCode: material.Code,
				StockStatus:  status,
				Total:        total,
				Threshold:    threshold,
			}); err != nil {
				return err
			}
		}
	}
}
