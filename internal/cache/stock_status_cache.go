package cache

import (
	"strings"
	"time"

	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
)

const (
	defaultStatusTTL   = 30 * time.Second
	defaultMaterialTTL = 5 * time.Minute
)

// StockReadCache keeps derived stock statuses and catalog lookups warm for
// list endpoints. Mutating services never read through it; a short TTL
// bounds staleness instead of invalidation plumbing.
type StockReadCache interface {
	GetStatus(materialID string) (inventorydomain.StockStatus, bool)
	SetStatus(materialID string, status inventorydomain.StockStatus)
	GetMaterialByCode(code string) (materialdomain.Material, bool)
	SetMaterialByCode(code string, material materialdomain.Material)
}

type stockReadCache struct {
	statuses    Cache[string, inventorydomain.StockStatus]
	materials   Cache[string, materialdomain.Material]
	statusTTL   time.Duration
	materialTTL time.Duration
}

// NewStockReadCache returns an in-memory cache tuned for catalog reads.
func NewStockReadCache() StockReadCache {
	return &stockReadCache{
		statuses:    NewTTLCache[string, inventorydomain.StockStatus](),
		materials:   NewTTLCache[string, materialdomain.Material](),
		statusTTL:   defaultStatusTTL,
		materialTTL: defaultMaterialTTL,
	}
}

func (c *stockReadCache) GetStatus(materialID string) (inventorydomain.StockStatus, bool) {
	return c.statuses.Get(cacheKey(materialID))
}

func (c *stockReadCache) SetStatus(materialID string, status inventorydomain.StockStatus) {
	if status == "" {
		return
	}
	c.statuses.Set(cacheKey(materialID), status, c.statusTTL)
}

func (c *stockReadCache) GetMaterialByCode(code string) (materialdomain.Material, bool) {
	return c.materials.Get(cacheKey(code))
}

func (c *stockReadCache) SetMaterialByCode(code string, material materialdomain.Material) {
	if material.ID == 0 {
		return
	}
	c.materials.Set(cacheKey(code), material, c.materialTTL)
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
