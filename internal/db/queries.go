package db

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

const tenantColumns = `id, name, specialty, api_key, rate_limit_per_hour, tone, languages,
        always_include, never_include, phone, interview_responses, fallback_config,
        rag_settings, created_at, updated_at`

func (db *DB) GetTenant(ctx context.Context, tenantID int) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM clinics WHERE id = $1`
	tenant, err := scanTenant(db.Pool.QueryRow(ctx, query, tenantID))
	if err != nil {
		return nil, storeErr("get tenant", err, models.ErrTenantNotFound)
	}
	return tenant, nil
}

func (db *DB) GetTenantByAPIKey(ctx context.Context, apiKey string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM clinics WHERE api_key = $1`
	tenant, err := scanTenant(db.Pool.QueryRow(ctx, query, apiKey))
	if err != nil {
		return nil, storeErr("get tenant by api key", err, models.ErrTenantNotFound)
	}
	return tenant, nil
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var tenant models.Tenant
	var interview, fallback, rag []byte
	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Specialty,
		&tenant.APIKey,
		&tenant.RateLimitPerHour,
		&tenant.Tone,
		&tenant.Languages,
		&tenant.AlwaysInclude,
		&tenant.NeverInclude,
		&tenant.Phone,
		&interview,
		&fallback,
		&rag,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	decodeTenantJSON(&tenant, interview, fallback, rag)
	return &tenant, nil
}

// decodeTenantJSON fills the JSONB-backed tenant fields. A malformed column is
// logged and left empty so defaults apply downstream.
func decodeTenantJSON(tenant *models.Tenant, interview, fallback, rag []byte) {
	if len(interview) > 0 {
		var v models.InterviewResponses
		if decodeColumn(tenant.ID, "interview_responses", interview, &v) {
			tenant.Interview = v
		}
	}
	if len(fallback) > 0 {
		v := &models.FallbackConfiguration{}
		if decodeColumn(tenant.ID, "fallback_config", fallback, v) {
			tenant.Fallback = v
		}
	}
	if len(rag) > 0 {
		v := &models.RAGSettings{}
		if decodeColumn(tenant.ID, "rag_settings", rag, v) {
			tenant.RAG = v
		}
	}
}

func decodeColumn(tenantID int, column string, raw []byte, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Warn().Err(err).Int("tenant_id", tenantID).Str("column", column).Msg("⚠️ malformed tenant column, using defaults")
		return false
	}
	return true
}

const promptColumns = `id, clinic_id, version, prompt_text, version_note, created_at`

func scanPrompt(row pgx.Row) (*models.PromptVersion, error) {
	var v models.PromptVersion
	if err := row.Scan(&v.ID, &v.TenantID, &v.Version, &v.Prompt, &v.Note, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func (db *DB) GetCurrentPrompt(ctx context.Context, tenantID int) (*models.PromptVersion, error) {
	query := `SELECT ` + promptColumns + ` FROM ai_prompt_history
        WHERE clinic_id = $1 ORDER BY version DESC LIMIT 1`
	v, err := scanPrompt(db.Pool.QueryRow(ctx, query, tenantID))
	if err != nil {
		return nil, storeErr("get current prompt", err, models.ErrPromptNotFound)
	}
	return v, nil
}

func (db *DB) GetPromptVersion(ctx context.Context, tenantID, version int) (*models.PromptVersion, error) {
	query := `SELECT ` + promptColumns + ` FROM ai_prompt_history
        WHERE clinic_id = $1 AND version = $2`
	v, err := scanPrompt(db.Pool.QueryRow(ctx, query, tenantID, version))
	if err != nil {
		return nil, storeErr("get prompt version", err, models.ErrPromptNotFound)
	}
	return v, nil
}

func (db *DB) ListPromptVersions(ctx context.Context, tenantID int) ([]models.PromptVersion, error) {
	query := `SELECT ` + promptColumns + ` FROM ai_prompt_history
        WHERE clinic_id = $1 ORDER BY version DESC`
	rows, err := db.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, storeErr("list prompt versions", err, nil)
	}
	defer rows.Close()

	versions := []models.PromptVersion{}
	for rows.Next() {
		v, err := scanPrompt(rows)
		if err != nil {
			return nil, storeErr("list prompt versions", err, nil)
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list prompt versions", err, nil)
	}
	return versions, nil
}

// CreatePromptVersion inserts the next version number for the tenant. The
// unique (clinic_id, version) constraint rejects concurrent writers racing
// for the same number.
func (db *DB) CreatePromptVersion(ctx context.Context, tenantID int, prompt, note string) (*models.PromptVersion, error) {
	query := `
        INSERT INTO ai_prompt_history (clinic_id, version, prompt_text, version_note)
        SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3
        FROM ai_prompt_history WHERE clinic_id = $1
        RETURNING ` + promptColumns

	v, err := scanPrompt(db.Pool.QueryRow(ctx, query, tenantID, prompt, note))
	if err != nil {
		return nil, storeErr("create prompt version", err, nil)
	}
	return v, nil
}

func (db *DB) GetProvider(ctx context.Context, tenantID, providerID int) (*models.Provider, error) {
	query := `
        SELECT id, clinic_id, name, title, gender, specialties, experience, bio
        FROM providers
        WHERE clinic_id = $1 AND id = $2
    `

	var p models.Provider
	err := db.Pool.QueryRow(ctx, query, tenantID, providerID).Scan(
		&p.ID,
		&p.TenantID,
		&p.Name,
		&p.Title,
		&p.Gender,
		&p.Specialties,
		&p.Experience,
		&p.Bio,
	)
	if err != nil {
		return nil, storeErr("get provider", err, models.ErrProviderNotFound)
	}
	return &p, nil
}

func (db *DB) InsertQueryLog(ctx context.Context, rec *models.QueryLogRecord) error {
	query := `
        INSERT INTO rag_query_logs (id, clinic_id, query_text, query_intent, rag_confidence, branch, reason,
            used_web_search, urls_fetched, cache_hit, total_response_time_ms, final_confidence, error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `

	urls := rec.URLsFetched
	if urls == nil {
		urls = []string{}
	}
	_, err := db.Pool.Exec(ctx, query,
		rec.ID,
		rec.TenantID,
		rec.QueryText,
		rec.QueryIntent,
		rec.RAGConfidence,
		rec.Branch,
		rec.Reason,
		rec.UsedWebSearch,
		urls,
		rec.CacheHit,
		rec.TotalResponseTimeMs,
		rec.FinalConfidence,
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return storeErr("insert query log", err, nil)
	}
	return nil
}

func (db *DB) GetQueryAnalytics(ctx context.Context, tenantID, daysBack int) (*models.QueryAnalytics, error) {
	totals := `
        SELECT COUNT(*),
            COALESCE(AVG(final_confidence), 0),
            COALESCE(AVG(CASE WHEN cache_hit THEN 1.0 ELSE 0.0 END), 0),
            COALESCE(AVG(CASE WHEN used_web_search THEN 1.0 ELSE 0.0 END), 0),
            COALESCE(AVG(total_response_time_ms), 0)
        FROM rag_query_logs
        WHERE clinic_id = $1 AND created_at >= NOW() - make_interval(days => $2)
    `

	a := &models.QueryAnalytics{TenantID: tenantID, TopIntents: []models.IntentCount{}}
	err := db.Pool.QueryRow(ctx, totals, tenantID, daysBack).Scan(
		&a.TotalQueries,
		&a.AvgConfidence,
		&a.CacheHitRate,
		&a.WebSearchRate,
		&a.AvgResponseTimeMs,
	)
	if err != nil {
		return nil, storeErr("query analytics", err, nil)
	}

	intents := `
        SELECT query_intent, COUNT(*) AS n
        FROM rag_query_logs
        WHERE clinic_id = $1 AND created_at >= NOW() - make_interval(days => $2) AND query_intent <> ''
        GROUP BY query_intent
        ORDER BY n DESC, query_intent
        LIMIT 5
    `
	rows, err := db.Pool.Query(ctx, intents, tenantID, daysBack)
	if err != nil {
		return nil, storeErr("query analytics intents", err, nil)
	}
	defer rows.Close()
	for rows.Next() {
		var ic models.IntentCount
		if err := rows.Scan(&ic.Intent, &ic.Count); err != nil {
			return nil, storeErr("query analytics intents", err, nil)
		}
		a.TopIntents = append(a.TopIntents, ic)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query analytics intents", err, nil)
	}
	return a, nil
}

// Score runs the hybrid_rag_query database function against the tenant's
// indexed pages.
func (db *DB) Score(ctx context.Context, tenantID int, queryText string, embedding []float64, threshold float64) (*models.RAGDecision, error) {
	query := `
        SELECT source, content_found, COALESCE(best_match_url, ''), COALESCE(best_match_title, ''),
            COALESCE(best_match_summary, ''), COALESCE(confidence_score, 0), COALESCE(recommended_urls, '{}')
        FROM hybrid_rag_query($1, $2, $3::vector, $4)
    `

	var d models.RAGDecision
	err := db.Pool.QueryRow(ctx, query, tenantID, queryText, vectorLiteral(embedding), threshold).Scan(
		&d.Source,
		&d.ContentFound,
		&d.BestMatchURL,
		&d.BestMatchTitle,
		&d.BestMatchSummary,
		&d.ConfidenceScore,
		&d.RecommendedURLs,
	)
	if err != nil {
		return nil, storeErr("hybrid rag query", err, nil)
	}
	return &d, nil
}

// vectorLiteral formats an embedding in pgvector's text form.
func vectorLiteral(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
