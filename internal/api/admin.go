package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/tenants"
)

const defaultAnalyticsDays = 30

func (h *Handler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
		return
	}

	versions, err := h.store.ListPromptVersions(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Prompt string `json:"prompt_text"`
		Note   string `json:"version_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "prompt_text is required", http.StatusBadRequest)
		return
	}

	v, err := h.store.CreatePromptVersion(r.Context(), id, strings.TrimSpace(req.Prompt), req.Note)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	log.Info().Int("tenant_id", id).Int("version", v.Version).Msg("📝 prompt version created")
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) RestorePrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
		return
	}
	version, ok := pathInt(r, "version")
	if !ok {
		http.Error(w, "Invalid version", http.StatusBadRequest)
		return
	}

	v, err := tenants.RestorePromptVersion(r.Context(), h.store, id, version)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	log.Info().Int("tenant_id", id).Int("restored", version).Int("version", v.Version).Msg("♻️ prompt version restored")
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) InvalidateTenantCache(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": h.store.Invalidate(id)})
}

func (h *Handler) InvalidateAllCache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": h.store.InvalidateAll()})
}

func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.CacheStats())
}

func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
		return
	}

	days := defaultAnalyticsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid days", http.StatusBadRequest)
			return
		}
		days = n
	}

	stats, err := h.store.GetQueryAnalytics(r.Context(), id, days)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
