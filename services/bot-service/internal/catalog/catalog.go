package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

// Source loads catalog data from storage.
type Source interface {
	GiftCardProducts(ctx context.Context) ([]types.GiftCardProduct, error)
	DataPlans(ctx context.Context, network string) ([]types.DataPlan, error)
}

const productsKey = "giftcards"

// Cache is a process-wide read-through cache over Source. Entries live
// until Invalidate; concurrent misses for the same key share one load.
type Cache struct {
	source Source
	group  singleflight.Group

	mu       sync.RWMutex
	products []types.GiftCardProduct
	loaded   bool
	plans    map[string][]types.DataPlan
}

func New(source Source) *Cache {
	return &Cache{source: source, plans: make(map[string][]types.DataPlan)}
}

func (c *Cache) GiftCardProducts(ctx context.Context) ([]types.GiftCardProduct, error) {
	c.mu.RLock()
	if c.loaded {
		out := c.products
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(productsKey, func() (any, error) {
		products, err := c.source.GiftCardProducts(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.products = products
		c.loaded = true
		c.mu.Unlock()
		return products, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load gift card products: %w", err)
	}
	return v.([]types.GiftCardProduct), nil
}

func (c *Cache) DataPlans(ctx context.Context, network string) ([]types.DataPlan, error) {
	c.mu.RLock()
	plans, ok := c.plans[network]
	c.mu.RUnlock()
	if ok {
		return plans, nil
	}

	v, err, _ := c.group.Do("plans:"+network, func() (any, error) {
		plans, err := c.source.DataPlans(ctx, network)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.plans[network] = plans
		c.mu.Unlock()
		return plans, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load data plans: %w", err)
	}
	return v.([]types.DataPlan), nil
}

// Product returns the enabled product with code, if any.
func (c *Cache) Product(ctx context.Context, code string) (*types.GiftCardProduct, error) {
	products, err := c.GiftCardProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].Code == code {
			p := products[i]
			return &p, nil
		}
	}
	return nil, nil
}

// Invalidate drops every cached entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.products = nil
	c.loaded = false
	c.plans = make(map[string][]types.DataPlan)
	c.mu.Unlock()

	logger.Info().Msg("Catalog cache invalidated")
}
