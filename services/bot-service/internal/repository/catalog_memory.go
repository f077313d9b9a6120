package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

type MemoryCatalogRepository struct {
	mu       sync.RWMutex
	products []types.GiftCardProduct
	plans    []types.DataPlan
}

func NewMemoryCatalogRepository(products []types.GiftCardProduct, plans []types.DataPlan) *MemoryCatalogRepository {
	return &MemoryCatalogRepository{products: products, plans: plans}
}

func (r *MemoryCatalogRepository) GiftCardProducts(_ context.Context) ([]types.GiftCardProduct, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.GiftCardProduct
	for _, p := range r.products {
		if p.Enabled {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (r *MemoryCatalogRepository) DataPlans(_ context.Context, network string) ([]types.DataPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.DataPlan
	for _, p := range r.plans {
		if p.Network == network && p.Enabled {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

// SetDataPlans replaces the plan list.
func (r *MemoryCatalogRepository) SetDataPlans(plans []types.DataPlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = plans
}

func (r *MemoryCatalogRepository) Seed(context.Context) error { return nil }
