package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/analyzer"
	"github.com/samibismar/calmclinic.health-sub001/internal/auth"
	"github.com/samibismar/calmclinic.health-sub001/internal/cache"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"github.com/samibismar/calmclinic.health-sub001/internal/prompt"
	"github.com/samibismar/calmclinic.health-sub001/internal/ratelimit"
	"github.com/samibismar/calmclinic.health-sub001/internal/router"
	"github.com/samibismar/calmclinic.health-sub001/internal/tenants"
)

const version = "1.0.0"

// Store is the cached tenant store the handlers read and invalidate.
type Store interface {
	tenants.Store
	Invalidate(tenantID int) int
	InvalidateAll() int
	CacheStats() cache.Stats
}

type Limiter interface {
	Allow(ctx context.Context, tenantID int, limit int) (ratelimit.Decision, error)
}

type Options struct {
	JWTSecret        string
	TokenTTL         time.Duration
	DefaultRateLimit int
}

type Handler struct {
	store     Store
	assembler *prompt.Assembler
	router    *router.Router
	analyzer  *analyzer.Analyzer
	limiter   Limiter
	opts      Options
}

// NewHandler wires the HTTP surface. limiter may be nil to disable rate
// limiting.
func NewHandler(store Store, r *router.Router, a *analyzer.Analyzer, limiter Limiter, opts Options) *Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	return &Handler{
		store:     store,
		assembler: prompt.NewAssembler(store),
		router:    r,
		analyzer:  a,
		limiter:   limiter,
		opts:      opts,
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router, mw *auth.Middleware) {
	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/auth/token", h.Token).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(mw.Authenticate)
	api.HandleFunc("/chat", h.Chat).Methods(http.MethodPost)
	api.HandleFunc("/prompt", h.Prompt).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(mw.RequireAdmin)
	admin.HandleFunc("/tenants/{id}/prompts", h.ListPrompts).Methods(http.MethodGet)
	admin.HandleFunc("/tenants/{id}/prompts", h.CreatePrompt).Methods(http.MethodPost)
	admin.HandleFunc("/tenants/{id}/prompts/{version}/restore", h.RestorePrompt).Methods(http.MethodPost)
	admin.HandleFunc("/tenants/{id}/cache/invalidate", h.InvalidateTenantCache).Methods(http.MethodPost)
	admin.HandleFunc("/tenants/{id}/analytics", h.GetAnalytics).Methods(http.MethodGet)
	admin.HandleFunc("/cache/invalidate", h.InvalidateAllCache).Methods(http.MethodPost)
	admin.HandleFunc("/cache/stats", h.GetCacheStats).Methods(http.MethodGet)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	tenant, err := h.store.GetTenantByAPIKey(r.Context(), req.APIKey)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			writeStoreError(w, err)
			return
		}
		log.Debug().Err(err).Msg("🚫 api key lookup failed")
		http.Error(w, "Invalid API key", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(tenant.ID, h.opts.JWTSecret, h.opts.TokenTTL)
	if err != nil {
		log.Error().Err(err).Int("tenant_id", tenant.ID).Msg("❌ token generation failed")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	log.Info().Int("tenant_id", tenant.ID).Msg("🔑 token issued")
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Prompt returns the assembled system prompt and its components.
func (h *Handler) Prompt(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetTenantFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	providerID, _ := strconv.Atoi(r.URL.Query().Get("provider_id"))
	assembled, err := h.assembler.Assemble(r.Context(), claims.TenantID, prompt.Options{
		BaseOverride: r.URL.Query().Get("base"),
		ProviderID:   providerID,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assembled)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("⚠️ failed to write response")
	}
}

// writeStoreError maps store sentinels to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrStoreUnavailable):
		log.Error().Err(err).Msg("❌ configuration store unavailable")
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, models.ErrTenantNotFound):
		http.Error(w, "Tenant not found", http.StatusNotFound)
	case errors.Is(err, models.ErrPromptNotFound):
		http.Error(w, "Prompt version not found", http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("❌ request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func pathInt(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	return v, err == nil && v > 0
}
