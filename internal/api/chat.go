package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/analyzer"
	"github.com/samibismar/calmclinic.health-sub001/internal/auth"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"github.com/samibismar/calmclinic.health-sub001/internal/prompt"
	"github.com/samibismar/calmclinic.health-sub001/internal/router"
)

type chatRequest struct {
	Message     string               `json:"message"`
	Messages    []models.ChatMessage `json:"messages"`
	Debug       bool                 `json:"debug"`
	ProviderID  int                  `json:"provider_id"`
	MaxWebPages int                  `json:"max_web_pages"`
}

type chatResponse struct {
	*router.Result
	ContextualQuery string                  `json:"contextual_query"`
	SuggestedTools  []analyzer.ToolID       `json:"suggested_tools"`
	ToolPriorities  map[analyzer.ToolID]int `json:"tool_priorities"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetTenantFromContext(r.Context())
	if !ok {
		log.Warn().Msg("❌ unauthorized: no claims in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	logger := log.With().Int("tenant_id", claims.TenantID).Logger()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	tenant, err := h.store.GetTenant(r.Context(), claims.TenantID)
	if err != nil {
		logger.Warn().Err(err).Msg("❌ tenant lookup failed")
		writeStoreError(w, err)
		return
	}

	if !h.allow(w, r, tenant) {
		return
	}

	messages := append(append([]models.ChatMessage{}, req.Messages...), models.ChatMessage{Role: "user", Content: req.Message})
	tools := h.analyzer.AnalyzeContext(messages)
	query := h.analyzer.BuildContextualQuery(req.Message, messages)

	assembled, err := h.assembler.Assemble(r.Context(), tenant.ID, prompt.Options{ProviderID: req.ProviderID})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	logger.Info().Str("query", query).Int("suggested_tools", len(tools)).Msg("📨 chat request")
	result := h.router.Route(r.Context(), router.Query{
		TenantID:     tenant.ID,
		Text:         req.Message,
		SearchText:   query,
		Debug:        req.Debug,
		MaxWebPages:  req.MaxWebPages,
		SystemPrompt: assembled.FullPrompt,
	})
	if !req.Debug {
		result.Trace = nil
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Result:          result,
		ContextualQuery: query,
		SuggestedTools:  tools,
		ToolPriorities:  h.analyzer.ToolPriority(messages),
	})
}

// allow applies the tenant's hourly limit. Limiter failures let the request
// through.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, tenant *models.Tenant) bool {
	if h.limiter == nil {
		return true
	}

	limit := tenant.RateLimitPerHour
	if limit <= 0 {
		limit = h.opts.DefaultRateLimit
	}

	d, err := h.limiter.Allow(r.Context(), tenant.ID, limit)
	if err != nil {
		log.Warn().Err(err).Int("tenant_id", tenant.ID).Msg("⚠️ rate limit check failed, allowing request")
		return true
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		log.Info().Int("tenant_id", tenant.ID).Msg("🚫 rate limit exceeded")
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}
