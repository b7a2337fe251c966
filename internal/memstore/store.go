package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

const topIntentLimit = 5

// Store is an in-memory tenant store for development and tests.
type Store struct {
	mu        sync.RWMutex
	tenants   map[int]models.Tenant
	prompts   map[int][]models.PromptVersion
	providers map[int]map[int]models.Provider
	docs      map[int][]Document
	logs      []models.QueryLogRecord
	nextID    int64
	now       func() time.Time
}

func New() *Store {
	return &Store{
		tenants:   make(map[int]models.Tenant),
		prompts:   make(map[int][]models.PromptVersion),
		providers: make(map[int]map[int]models.Provider),
		docs:      make(map[int][]Document),
		now:       time.Now,
	}
}

func (s *Store) AddTenant(t models.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
		t.UpdatedAt = t.CreatedAt
	}
	s.tenants[t.ID] = t
}

func (s *Store) AddProvider(p models.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.providers[p.TenantID] == nil {
		s.providers[p.TenantID] = make(map[int]models.Provider)
	}
	s.providers[p.TenantID][p.ID] = p
}

func (s *Store) GetTenant(_ context.Context, tenantID int) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, models.ErrTenantNotFound
	}
	return &t, nil
}

func (s *Store) GetTenantByAPIKey(_ context.Context, apiKey string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if apiKey != "" && t.APIKey == apiKey {
			return &t, nil
		}
	}
	return nil, models.ErrTenantNotFound
}

func (s *Store) GetCurrentPrompt(_ context.Context, tenantID int) (*models.PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.prompts[tenantID]
	if len(versions) == 0 {
		return nil, models.ErrPromptNotFound
	}
	v := versions[len(versions)-1]
	return &v, nil
}

// ListPromptVersions returns the history newest first.
func (s *Store) ListPromptVersions(_ context.Context, tenantID int) ([]models.PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.prompts[tenantID]
	out := make([]models.PromptVersion, len(versions))
	for i, v := range versions {
		out[len(versions)-1-i] = v
	}
	return out, nil
}

func (s *Store) GetPromptVersion(_ context.Context, tenantID, version int) (*models.PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.prompts[tenantID] {
		if v.Version == version {
			return &v, nil
		}
	}
	return nil, models.ErrPromptNotFound
}

func (s *Store) CreatePromptVersion(_ context.Context, tenantID int, prompt, note string) (*models.PromptVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenantID]; !ok {
		return nil, models.ErrTenantNotFound
	}
	s.nextID++
	v := models.PromptVersion{
		ID:        s.nextID,
		TenantID:  tenantID,
		Version:   len(s.prompts[tenantID]) + 1,
		Prompt:    prompt,
		Note:      note,
		CreatedAt: s.now(),
	}
	s.prompts[tenantID] = append(s.prompts[tenantID], v)
	return &v, nil
}

func (s *Store) GetProvider(_ context.Context, tenantID, providerID int) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[tenantID][providerID]
	if !ok {
		return nil, models.ErrProviderNotFound
	}
	return &p, nil
}

func (s *Store) InsertQueryLog(_ context.Context, rec *models.QueryLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *rec
	r.URLsFetched = append([]string(nil), rec.URLsFetched...)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.logs = append(s.logs, r)
	return nil
}

// QueryLogs returns a copy of the tenant's query log.
func (s *Store) QueryLogs(tenantID int) []models.QueryLogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.QueryLogRecord
	for _, r := range s.logs {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) GetQueryAnalytics(_ context.Context, tenantID, daysBack int) (*models.QueryAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := s.now().AddDate(0, 0, -daysBack)
	a := &models.QueryAnalytics{TenantID: tenantID, TopIntents: []models.IntentCount{}}
	var confidence, latency float64
	var hits, web int
	intents := make(map[string]int)

	for _, r := range s.logs {
		if r.TenantID != tenantID || r.CreatedAt.Before(since) {
			continue
		}
		a.TotalQueries++
		confidence += r.FinalConfidence
		latency += float64(r.TotalResponseTimeMs)
		if r.CacheHit {
			hits++
		}
		if r.UsedWebSearch {
			web++
		}
		if r.QueryIntent != "" {
			intents[r.QueryIntent]++
		}
	}
	if a.TotalQueries == 0 {
		return a, nil
	}

	n := float64(a.TotalQueries)
	a.AvgConfidence = confidence / n
	a.AvgResponseTimeMs = latency / n
	a.CacheHitRate = float64(hits) / n
	a.WebSearchRate = float64(web) / n

	for intent, count := range intents {
		a.TopIntents = append(a.TopIntents, models.IntentCount{Intent: intent, Count: count})
	}
	sort.Slice(a.TopIntents, func(i, j int) bool {
		if a.TopIntents[i].Count != a.TopIntents[j].Count {
			return a.TopIntents[i].Count > a.TopIntents[j].Count
		}
		return a.TopIntents[i].Intent < a.TopIntents[j].Intent
	})
	if len(a.TopIntents) > topIntentLimit {
		a.TopIntents = a.TopIntents[:topIntentLimit]
	}
	return a, nil
}
