package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_TenantLookups(t *testing.T) {
	s := New()
	Seed(s, "key-123")
	ctx := context.Background()

	tenant, err := s.GetTenant(ctx, DemoTenantID)
	require.NoError(t, err)
	assert.Equal(t, "Clearview Eye Associates", tenant.Name)

	byKey, err := s.GetTenantByAPIKey(ctx, "key-123")
	require.NoError(t, err)
	assert.Equal(t, DemoTenantID, byKey.ID)

	_, err = s.GetTenantByAPIKey(ctx, "")
	assert.ErrorIs(t, err, models.ErrTenantNotFound)
	_, err = s.GetTenant(ctx, 99)
	assert.ErrorIs(t, err, models.ErrTenantNotFound)

	p, err := s.GetProvider(ctx, DemoTenantID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Maria Alvarez", p.Name)
	_, err = s.GetProvider(ctx, 2, 1)
	assert.ErrorIs(t, err, models.ErrProviderNotFound)
}

func TestStore_PromptVersionsAreAppendOnly(t *testing.T) {
	s := New()
	Seed(s, "k")
	ctx := context.Background()

	_, err := s.GetCurrentPrompt(ctx, DemoTenantID)
	assert.ErrorIs(t, err, models.ErrPromptNotFound)

	v1, err := s.CreatePromptVersion(ctx, DemoTenantID, "first", "")
	require.NoError(t, err)
	v2, err := s.CreatePromptVersion(ctx, DemoTenantID, "second", "edit")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)

	v1.Prompt = "mutated"
	old, err := s.GetPromptVersion(ctx, DemoTenantID, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", old.Prompt)

	current, err := s.GetCurrentPrompt(ctx, DemoTenantID)
	require.NoError(t, err)
	assert.Equal(t, "second", current.Prompt)

	history, err := s.ListPromptVersions(ctx, DemoTenantID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)

	_, err = s.CreatePromptVersion(ctx, 42, "x", "")
	assert.ErrorIs(t, err, models.ErrTenantNotFound)
}

func TestStore_QueryAnalytics(t *testing.T) {
	s := New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	records := []models.QueryLogRecord{
		{TenantID: 1, QueryIntent: "hours", CacheHit: true, FinalConfidence: 0.9, TotalResponseTimeMs: 100},
		{TenantID: 1, QueryIntent: "hours", UsedWebSearch: true, FinalConfidence: 0.7, TotalResponseTimeMs: 300},
		{TenantID: 1, QueryIntent: "insurance", FinalConfidence: 0.3, TotalResponseTimeMs: 200},
		{TenantID: 1, QueryIntent: "hours", CreatedAt: now.AddDate(0, 0, -40)},
		{TenantID: 2, QueryIntent: "forms"},
	}
	for i := range records {
		require.NoError(t, s.InsertQueryLog(ctx, &records[i]))
	}

	a, err := s.GetQueryAnalytics(ctx, 1, 30)
	require.NoError(t, err)
	assert.Equal(t, 3, a.TotalQueries)
	assert.InDelta(t, 0.6333, a.AvgConfidence, 1e-3)
	assert.InDelta(t, 200, a.AvgResponseTimeMs, 1e-9)
	assert.InDelta(t, 1.0/3, a.CacheHitRate, 1e-9)
	assert.InDelta(t, 1.0/3, a.WebSearchRate, 1e-9)
	assert.Equal(t, []models.IntentCount{{Intent: "hours", Count: 2}, {Intent: "insurance", Count: 1}}, a.TopIntents)

	empty, err := s.GetQueryAnalytics(ctx, 7, 30)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalQueries)
	assert.Empty(t, empty.TopIntents)
}

func TestScore_RanksByEmbeddingSimilarity(t *testing.T) {
	s := New()
	Seed(s, "k")
	ctx := context.Background()

	emb, err := HashEmbedder{}.Embed(ctx, "What are your office hours on Saturday?")
	require.NoError(t, err)

	d, err := s.Score(ctx, DemoTenantID, "", emb, 0.1)
	require.NoError(t, err)
	assert.Equal(t, "https://clearview.example/hours", d.BestMatchURL)
	assert.True(t, d.ContentFound)
	assert.Equal(t, "cache", d.Source)
	assert.Len(t, d.RecommendedURLs, 4)
	assert.Equal(t, d.BestMatchURL, d.RecommendedURLs[0])

	strict, err := s.Score(ctx, DemoTenantID, "", emb, 1.01)
	require.NoError(t, err)
	assert.False(t, strict.ContentFound)
	assert.Equal(t, "web_needed", strict.Source)

	none, err := s.Score(ctx, 5, "", emb, 0.5)
	require.NoError(t, err)
	assert.Zero(t, none.ConfidenceScore)
	assert.Empty(t, none.RecommendedURLs)
}

func TestHashEmbedder(t *testing.T) {
	a := hashEmbedding("glaucoma treatment options")
	b := hashEmbedding("Glaucoma TREATMENT options!")
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, cosineSimilarity(a, a), 1e-9)
	assert.Zero(t, cosineSimilarity(hashEmbedding(""), a))
	assert.Zero(t, cosineSimilarity([]float64{1}, []float64{1, 2}))
}
