package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/sitelane/materialflow/internal/alert/domain"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/config"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	pkgdb "github.com/sitelane/materialflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Policy *config.StockPolicyHolder
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	policy *config.StockPolicyHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("alert.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		policy: p.Policy,
	}
}

func (s *Service) Sync(ctx context.Context, obs domain.Observation) error {
	if obs.MaterialID == 0 {
		return domain.ErrInvalidObservation
	}

	alerting := obs.StockStatus == inventorydomain.StockStatusLowStock ||
		obs.StockStatus == inventorydomain.StockStatusOutOfStock

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active domain.StockAlert
		err := pkgdb.LockForUpdate(tx).
			First(&active, "material_id = ? AND status = ?", obs.MaterialID, domain.AlertStatusActive).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := s.clock.Now()

		if !alerting {
			if !found {
				return nil
			}
			active.Status = domain.AlertStatusResolved
			active.ResolvedAt = &now
			active.UpdatedAt = now
			if err := tx.Save(&active).Error; err != nil {
				return err
			}
			s.log.Info("stock alert resolved",
				zap.String("material_id", obs.MaterialID.String()),
				zap.String("material_code", obs.MaterialCode),
			)
			return nil
		}

		if found {
			// Refresh quietly inside the cooldown window; re-log after it.
			cooldown := s.policy.Current().AlertCooldown()
			if now.Sub(active.LastObservedAt) >= cooldown {
				s.log.Warn("stock alert still active",
					zap.String("material_id", obs.MaterialID.String()),
					zap.String("material_code", obs.MaterialCode),
					zap.String("stock_status", string(obs.StockStatus)),
					zap.String("total", obs.Total.String()),
				)
			}
			active.StockStatus = obs.StockStatus
			active.TotalQuantity = obs.Total
			active.Threshold = obs.Threshold
			active.LastObservedAt = now
			active.UpdatedAt = now
			return tx.Save(&active).Error
		}

		alert := domain.StockAlert{
			ID:             s.genID.Generate(),
			MaterialID:     obs.MaterialID,
			Status:         domain.AlertStatusActive,
			StockStatus:    obs.StockStatus,
			TotalQuantity:  obs.Total,
			Threshold:      obs.Threshold,
			Message:        fmt.Sprintf("%s is %s: %s on hand (threshold %s)", obs.MaterialCode, obs.StockStatus, obs.Total, obs.Threshold),
			LastObservedAt: now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&alert).Error; err != nil {
			return err
		}
		s.log.Warn("stock alert raised",
			zap.String("material_id", obs.MaterialID.String()),
			zap.String("material_code", obs.MaterialCode),
			zap.String("stock_status", string(obs.StockStatus)),
			zap.String("total", obs.Total.String()),
		)
		return nil
	})
}

func (s *Service) ListActive(ctx context.Context) ([]domain.StockAlert, error) {
	var alerts []domain.StockAlert
	if err := s.db.WithContext(ctx).
		Where("status = ?", domain.AlertStatusActive).
		Order("created_at DESC").
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
