package tenants

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/cache"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

// CachedStore serves tenant profiles, current prompts and providers from a
// TTL cache. Writes invalidate the tenant's entries.
type CachedStore struct {
	Store
	cache *cache.Cache
}

func NewCachedStore(s Store, c *cache.Cache) *CachedStore {
	return &CachedStore{Store: s, cache: c}
}

func (cs *CachedStore) GetTenant(ctx context.Context, tenantID int) (*models.Tenant, error) {
	return cache.GetOrLoad(ctx, cs.cache, tenantID, cache.TenantProfile, nil, func(ctx context.Context) (*models.Tenant, error) {
		return cs.Store.GetTenant(ctx, tenantID)
	})
}

func (cs *CachedStore) GetCurrentPrompt(ctx context.Context, tenantID int) (*models.PromptVersion, error) {
	return cache.GetOrLoad(ctx, cs.cache, tenantID, cache.CurrentPrompt, nil, func(ctx context.Context) (*models.PromptVersion, error) {
		return cs.Store.GetCurrentPrompt(ctx, tenantID)
	})
}

func (cs *CachedStore) GetProvider(ctx context.Context, tenantID, providerID int) (*models.Provider, error) {
	params := cache.Params{"provider_id": providerID}
	return cache.GetOrLoad(ctx, cs.cache, tenantID, cache.ProviderInfo, params, func(ctx context.Context) (*models.Provider, error) {
		return cs.Store.GetProvider(ctx, tenantID, providerID)
	})
}

func (cs *CachedStore) CreatePromptVersion(ctx context.Context, tenantID int, prompt, note string) (*models.PromptVersion, error) {
	v, err := cs.Store.CreatePromptVersion(ctx, tenantID, prompt, note)
	if err != nil {
		return nil, err
	}
	cs.Invalidate(tenantID)
	return v, nil
}

// Invalidate drops every cached entry of a tenant.
func (cs *CachedStore) Invalidate(tenantID int) int {
	n := cs.cache.InvalidateTenant(tenantID)
	log.Info().Int("tenant_id", tenantID).Int("entries", n).Msg("🧹 tenant cache invalidated")
	return n
}

func (cs *CachedStore) InvalidateAll() int {
	n := cs.cache.InvalidateAll()
	log.Info().Int("entries", n).Msg("🧹 cache cleared")
	return n
}

func (cs *CachedStore) CacheStats() cache.Stats {
	return cs.cache.Stats()
}
