package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/samibismar/calmclinic.health-sub001/internal/analyzer"
	"github.com/samibismar/calmclinic.health-sub001/internal/auth"
	"github.com/samibismar/calmclinic.health-sub001/internal/cache"
	"github.com/samibismar/calmclinic.health-sub001/internal/memstore"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"github.com/samibismar/calmclinic.health-sub001/internal/prompt"
	"github.com/samibismar/calmclinic.health-sub001/internal/ratelimit"
	"github.com/samibismar/calmclinic.health-sub001/internal/router"
	"github.com/samibismar/calmclinic.health-sub001/internal/tenants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret     = "test-secret"
	testAPIKey     = "demo-key"
	limitedTenant  = 2
	limitedAPIKey  = "limited-key"
	faqQuestion    = "Is there parking at the office?"
	faqDocumentURL = "https://clearview.example/parking"
)

type testServer struct {
	t     *testing.T
	mux   *mux.Router
	mem   *memstore.Store
	store *tenants.CachedStore
	sink  *router.BestEffortSink
}

func newTestServer(t *testing.T, inner tenants.Store, adminToken string) *testServer {
	t.Helper()

	mem := memstore.New()
	memstore.Seed(mem, testAPIKey)
	mem.AddTenant(models.Tenant{ID: limitedTenant, Name: "Tiny Clinic", APIKey: limitedAPIKey, RateLimitPerHour: 1})

	a := analyzer.Default()
	msgs := []models.ChatMessage{{Role: "user", Content: faqQuestion}}
	emb, err := memstore.HashEmbedder{}.Embed(context.Background(), a.BuildContextualQuery(faqQuestion, msgs))
	require.NoError(t, err)
	mem.AddDocument(memstore.DemoTenantID, memstore.Document{
		URL:       faqDocumentURL,
		Title:     "Parking",
		Summary:   "Free parking is available behind the building.",
		Embedding: emb,
	})

	if inner == nil {
		inner = mem
	}
	store := tenants.NewCachedStore(inner, cache.New(cache.DefaultPolicy()))
	sink := router.NewBestEffortSink(mem, time.Second)
	rt := router.New(router.Config{}, router.Deps{
		Config:   store,
		Embedder: memstore.HashEmbedder{},
		Scorer:   mem,
		Sink:     sink,
	})

	mr := miniredis.RunT(t)
	limiter := ratelimit.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	h := NewHandler(store, rt, a, limiter, Options{JWTSecret: testSecret, DefaultRateLimit: 100})
	m := mux.NewRouter()
	h.RegisterRoutes(m, auth.NewMiddleware(testSecret, adminToken))

	return &testServer{t: t, mux: m, mem: mem, store: store, sink: sink}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(apiKey string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/token", "", map[string]string{"api_key": apiKey})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["token"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, "")
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestToken(t *testing.T) {
	s := newTestServer(t, nil, "")

	token := s.token(testAPIKey)
	claims, err := auth.ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, memstore.DemoTenantID, claims.TenantID)

	rec := s.do(http.MethodPost, "/auth/token", "", map[string]string{"api_key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/auth/token", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_RequiresToken(t *testing.T) {
	s := newTestServer(t, nil, "")
	rec := s.do(http.MethodPost, "/api/chat", "", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func decodeChat(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestChat_ConfidentMatch(t *testing.T) {
	s := newTestServer(t, nil, "")
	token := s.token(testAPIKey)

	rec := s.do(http.MethodPost, "/api/chat", token, map[string]any{"message": faqQuestion})
	resp := decodeChat(t, rec)

	assert.Equal(t, "cache_hit", resp["branch"])
	assert.Equal(t, "From Parking: Free parking is available behind the building.", resp["answer"])
	assert.Nil(t, resp["trace"])
	assert.Equal(t, "1000", rec.Header().Get("X-RateLimit-Limit"))

	s.sink.Wait()
	logs := s.mem.QueryLogs(memstore.DemoTenantID)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].CacheHit)
}

func TestChat_SuggestsToolsFromHistory(t *testing.T) {
	s := newTestServer(t, nil, "")
	token := s.token(testAPIKey)

	rec := s.do(http.MethodPost, "/api/chat", token, map[string]any{
		"message": "How much is it?",
		"messages": []models.ChatMessage{
			{Role: "user", Content: "I need a glaucoma exam"},
			{Role: "assistant", Content: "We offer glaucoma exams."},
		},
		"debug": true,
	})
	resp := decodeChat(t, rec)

	assert.Equal(t, "How much is it? glaucoma", resp["contextual_query"])
	assert.Contains(t, resp["suggested_tools"], "get_clinic_services")
	assert.NotNil(t, resp["trace"])

	s.sink.Wait()
	logs := s.mem.QueryLogs(memstore.DemoTenantID)
	require.Len(t, logs, 1)
	assert.Equal(t, "How much is it?", logs[0].QueryText)
}

func TestChat_LowConfidenceFallsBackWithoutFetcher(t *testing.T) {
	s := newTestServer(t, nil, "")
	token := s.token(testAPIKey)

	rec := s.do(http.MethodPost, "/api/chat", token, map[string]any{"message": "Do you validate tickets for the garage downtown?"})
	resp := decodeChat(t, rec)

	assert.Equal(t, "fallback", resp["branch"])
	assert.NotEmpty(t, resp["answer"])

	s.sink.Wait()
	logs := s.mem.QueryLogs(memstore.DemoTenantID)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].UsedWebSearch)
	assert.NotEmpty(t, logs[0].Error)
}

func TestChat_RateLimited(t *testing.T) {
	s := newTestServer(t, nil, "")
	token := s.token(limitedAPIKey)

	rec := s.do(http.MethodPost, "/api/chat", token, map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/chat", token, map[string]any{"message": "hello again"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestChat_EmptyMessage(t *testing.T) {
	s := newTestServer(t, nil, "")
	rec := s.do(http.MethodPost, "/api/chat", s.token(testAPIKey), map[string]any{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type unavailableStore struct {
	*memstore.Store
}

func (unavailableStore) GetTenant(context.Context, int) (*models.Tenant, error) {
	return nil, models.ErrStoreUnavailable
}

func TestChat_StoreUnavailable(t *testing.T) {
	mem := memstore.New()
	memstore.Seed(mem, testAPIKey)
	s := newTestServer(t, unavailableStore{Store: mem}, "")

	token, err := auth.GenerateToken(memstore.DemoTenantID, testSecret, time.Hour)
	require.NoError(t, err)

	rec := s.do(http.MethodPost, "/api/chat", token, map[string]any{"message": "hours?"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(http.MethodGet, "/api/prompt", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPrompt(t *testing.T) {
	s := newTestServer(t, nil, "")
	token := s.token(testAPIKey)

	rec := s.do(http.MethodGet, "/api/prompt?provider_id=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var assembled models.AssembledSystemPrompt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assembled))
	assert.NoError(t, prompt.Validate(assembled.FullPrompt))
	assert.Contains(t, assembled.Components.BasePrompt, "Clearview Eye Associates")
	assert.Contains(t, assembled.FullPrompt, "Maria Alvarez")
}

func TestAdmin_PromptVersions(t *testing.T) {
	s := newTestServer(t, nil, "")
	token := s.token(testAPIKey)

	rec := s.do(http.MethodPost, "/admin/tenants/1/prompts", "", map[string]string{"prompt_text": "You are the Clearview assistant, version one."})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/admin/tenants/1/prompts", "", map[string]string{"prompt_text": "You are the Clearview assistant, version two."})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/prompt", token, nil)
	assert.True(t, strings.HasPrefix(decodePrompt(t, rec), "You are the Clearview assistant, version two."))

	rec = s.do(http.MethodPost, "/admin/tenants/1/prompts/1/restore", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var restored models.PromptVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restored))
	assert.Equal(t, 3, restored.Version)

	rec = s.do(http.MethodGet, "/api/prompt", token, nil)
	assert.True(t, strings.HasPrefix(decodePrompt(t, rec), "You are the Clearview assistant, version one."))

	rec = s.do(http.MethodGet, "/admin/tenants/1/prompts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.PromptVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 3)

	rec = s.do(http.MethodPost, "/admin/tenants/1/prompts/9/restore", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/admin/tenants/1/prompts", "", map[string]string{"prompt_text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func decodePrompt(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var assembled models.AssembledSystemPrompt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assembled))
	return assembled.FullPrompt
}

func TestAdmin_CacheAndAnalytics(t *testing.T) {
	s := newTestServer(t, nil, "")
	token := s.token(testAPIKey)

	decodeChat(t, s.do(http.MethodPost, "/api/chat", token, map[string]any{"message": faqQuestion}))
	s.sink.Wait()

	rec := s.do(http.MethodGet, "/admin/cache/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Positive(t, stats.Size)

	rec = s.do(http.MethodPost, "/admin/tenants/1/cache/invalidate", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.store.CacheStats().Size)

	rec = s.do(http.MethodPost, "/admin/cache/invalidate", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/admin/tenants/1/analytics?days=7", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var a models.QueryAnalytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, 1, a.TotalQueries)
	assert.InDelta(t, 1.0, a.CacheHitRate, 1e-9)

	rec = s.do(http.MethodGet, "/admin/tenants/1/analytics?days=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_TokenGuard(t *testing.T) {
	s := newTestServer(t, nil, "admin-secret")

	rec := s.do(http.MethodGet, "/admin/cache/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/admin/cache/stats", "admin-secret", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
