package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
)

// Observation is one reconciliation pass over a material's stock.
type Observation struct {
	MaterialID   snowflake.ID
	MaterialCode string
	StockStatus  inventorydomain.StockStatus
	Total        decimal.Decimal
	Threshold    decimal.Decimal
}

type Service interface {
	// Sync raises, refreshes, or resolves the material's alert to match
	// the observation. Healthy statuses resolve any active alert.
	Sync(ctx context.Context, obs Observation) error
	ListActive(ctx context.Context) ([]StockAlert, error)
}

var ErrInvalidObservation = errors.New("invalid_alert_observation")
