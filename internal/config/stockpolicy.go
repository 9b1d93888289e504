package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// StockPolicy tunes inventory reconciliation and alerting. It lives in a
// mounted YAML file so operators can change thresholds without a redeploy.
type StockPolicy struct {
	ReconcileIntervalSeconds  int     `mapstructure:"reconcileIntervalSeconds"`
	ReconcileBatchSize        int     `mapstructure:"reconcileBatchSize"`
	AlertCooldownMinutes      int     `mapstructure:"alertCooldownMinutes"`
	DefaultMinimumStock       float64 `mapstructure:"defaultMinimumStock"`
	DefaultReorderPoint       float64 `mapstructure:"defaultReorderPoint"`
	RequireAdjustmentApproval bool    `mapstructure:"requireAdjustmentApproval"`
}

func DefaultStockPolicy() StockPolicy {
	return StockPolicy{
		ReconcileIntervalSeconds: 300,
		ReconcileBatchSize:       200,
		AlertCooldownMinutes:     360,
		DefaultMinimumStock:      0,
		DefaultReorderPoint:      0,
	}
}

type StockPolicyHolder struct {
	current atomic.Value // holds StockPolicy
}

func NewStockPolicyHolder() (*StockPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("stockpolicy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/materialflow/config")
	v.AddConfigPath("/etc/materialflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MATERIALFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultStockPolicy()
		v.SetDefault("stock.reconcileIntervalSeconds", defaults.ReconcileIntervalSeconds)
		v.SetDefault("stock.reconcileBatchSize", defaults.ReconcileBatchSize)
		v.SetDefault("stock.alertCooldownMinutes", defaults.AlertCooldownMinutes)
		v.SetDefault("stock.defaultMinimumStock", defaults.DefaultMinimumStock)
		v.SetDefault("stock.defaultReorderPoint", defaults.DefaultReorderPoint)
		v.SetDefault("stock.requireAdjustmentApproval", defaults.RequireAdjustmentApproval)
	}

	holder := &StockPolicyHolder{}
	if err := holder.reload(v); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := holder.reload(v); err != nil {
			log.Printf("config: stock policy reload failed: %v", err)
		}
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticStockPolicyHolder pins the policy without a config file or
// watcher behind it.
func NewStaticStockPolicyHolder(policy StockPolicy) *StockPolicyHolder {
	holder := &StockPolicyHolder{}
	holder.current.Store(policy.withDefaults())
	return holder
}

func (h *StockPolicyHolder) reload(v *viper.Viper) error {
	var policy StockPolicy
	if err := v.UnmarshalKey("stock", &policy); err != nil {
		return err
	}
	if err := policy.validate(); err != nil {
		return err
	}
	h.current.Store(policy.withDefaults())
	return nil
}

// Current returns the active policy snapshot.
func (h *StockPolicyHolder) Current() StockPolicy {
	if value, ok := h.current.Load().(StockPolicy); ok {
		return value
	}
	return DefaultStockPolicy()
}

// ReconcileInterval is the pause between reconciliation passes.
func (p StockPolicy) ReconcileInterval() time.Duration {
	return time.Duration(p.ReconcileIntervalSeconds) * time.Second
}

// AlertCooldown is how long an active alert stays quiet before it is
// logged again.
func (p StockPolicy) AlertCooldown() time.Duration {
	return time.Duration(p.AlertCooldownMinutes) * time.Minute
}

func (p StockPolicy) validate() error {
	if p.ReconcileIntervalSeconds < 0 || p.ReconcileBatchSize < 0 || p.AlertCooldownMinutes < 0 {
		return errors.New("stock policy values must not be negative")
	}
	if p.DefaultMinimumStock < 0 || p.DefaultReorderPoint < 0 {
		return errors.New("stock thresholds must not be negative")
	}
	return nil
}

func (p StockPolicy) withDefaults() StockPolicy {
	defaults := DefaultStockPolicy()
	if p.ReconcileIntervalSeconds == 0 {
		p.ReconcileIntervalSeconds = defaults.ReconcileIntervalSeconds
	}
	if p.ReconcileBatchSize == 0 {
		p.ReconcileBatchSize = defaults.ReconcileBatchSize
	}
	if p.AlertCooldownMinutes == 0 {
		p.AlertCooldownMinutes = defaults.AlertCooldownMinutes
	}
	return p
}
