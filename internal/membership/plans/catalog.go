// Package plans serves subscription reference data and the proration
// math derived from it.
package plans

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"membership-checkout/internal/common/logger"
	"membership-checkout/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	catalogCacheKey = "plans:catalog"
	catalogCacheTTL = 5 * time.Minute
)

// Lister fetches the plan catalog from the backend.
type Lister interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
}

// Catalog is a read-through cache over the backend's plan list. Plans
// change rarely, so a short Redis TTL keeps the CLI off the backend for
// repeated lookups. With no Redis configured it degrades to direct
// fetches.
type Catalog struct {
	api   Lister
	redis *redis.Client
	log   logger.Logger
}

func NewCatalog(api Lister, rdb *redis.Client, log logger.Logger) *Catalog {
	return &Catalog{
		api:   api,
		redis: rdb,
		log:   log.WithFields(map[string]interface{}{"component": "plan-catalog"}),
	}
}

// List returns all plans, from cache when fresh.
func (c *Catalog) List(ctx context.Context) ([]models.Plan, error) {
	if cached, ok := c.fromCache(ctx); ok {
		return cached, nil
	}

	plans, err := c.api.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	c.toCache(ctx, plans)
	return plans, nil
}

// Get returns a single plan by code.
func (c *Catalog) Get(ctx context.Context, code string) (*models.Plan, error) {
	plans, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].Code == code {
			return &plans[i], nil
		}
	}
	return nil, fmt.Errorf("unknown plan code: %s", code)
}

// Invalidate drops the cached catalog. Used after operations that may
// have changed plan availability.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, catalogCacheKey).Err(); err != nil {
		c.log.Warn("failed to invalidate plan cache", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Catalog) fromCache(ctx context.Context) ([]models.Plan, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, catalogCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("plan cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}
	var plans []models.Plan
	if err := json.Unmarshal(raw, &plans); err != nil {
		c.log.Warn("plan cache entry corrupt, discarding", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	return plans, true
}

func (c *Catalog) toCache(ctx context.Context, plans []models.Plan) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(plans)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, catalogCacheKey, raw, catalogCacheTTL).Err(); err != nil {
		c.log.Warn("plan cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
