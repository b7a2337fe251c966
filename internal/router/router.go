package router

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/metrics"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"github.com/samibismar/calmclinic.health-sub001/internal/prompt"
)

const (
	DefaultConfidenceThreshold = 0.6
	DefaultMaxWebPages         = 3
	DefaultCacheTTLHours       = 24

	fallbackConfidence = 0.3
	webConfidenceFloor = 0.7
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Scorer looks the query up in the tenant's local knowledge store.
type Scorer interface {
	Score(ctx context.Context, tenantID int, queryText string, embedding []float64, threshold float64) (*models.RAGDecision, error)
}

// Fetcher retrieves and summarizes live pages.
type Fetcher interface {
	FetchRelevantContent(ctx context.Context, req models.FetchRequest) (*models.FetchResult, error)
}

type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

type ConfigSource interface {
	GetTenant(ctx context.Context, tenantID int) (*models.Tenant, error)
}

type Config struct {
	ScoreTimeout    time.Duration
	FetchTimeout    time.Duration
	GenerateTimeout time.Duration
	ChatModel       string
}

func (c Config) withDefaults() Config {
	if c.ScoreTimeout <= 0 {
		c.ScoreTimeout = 5 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 20 * time.Second
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = 15 * time.Second
	}
	if c.ChatModel == "" {
		c.ChatModel = "gpt-4o-mini"
	}
	return c
}

// Deps are the router's collaborators. Completer and Sink may be nil.
type Deps struct {
	Config    ConfigSource
	Embedder  Embedder
	Scorer    Scorer
	Fetcher   Fetcher
	Completer Completer
	Sink      Sink
}

type Settings struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	EnableWebSearch     bool    `json:"enable_web_search"`
	MaxWebPages         int     `json:"max_web_pages"`
	CacheTTLHours       int     `json:"cache_ttl_hours"`
}

func DefaultSettings() Settings {
	return Settings{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		EnableWebSearch:     true,
		MaxWebPages:         DefaultMaxWebPages,
		CacheTTLHours:       DefaultCacheTTLHours,
	}
}

// SettingsFrom applies tenant overrides to the defaults, ignoring invalid
// values.
func SettingsFrom(rag *models.RAGSettings) Settings {
	s := DefaultSettings()
	if rag == nil {
		return s
	}
	if rag.ConfidenceThreshold > 0 && rag.ConfidenceThreshold <= 1 {
		s.ConfidenceThreshold = rag.ConfidenceThreshold
	}
	if rag.EnableWebSearch != nil {
		s.EnableWebSearch = *rag.EnableWebSearch
	}
	if rag.MaxWebPages > 0 {
		s.MaxWebPages = rag.MaxWebPages
	}
	if rag.CacheTTLHours > 0 {
		s.CacheTTLHours = rag.CacheTTLHours
	}
	return s
}

type Query struct {
	TenantID int
	// Text is the patient's message. Intent, triggers, generation and the
	// query log see it unchanged.
	Text string
	// SearchText, when set, replaces Text for embedding, scoring and the live
	// fetch.
	SearchText string
	// Debug forces the web branch even on a confident match.
	Debug bool
	// MaxWebPages overrides the tenant setting when positive.
	MaxWebPages int
	// SystemPrompt is used for the generation step when set.
	SystemPrompt string
}

func (q Query) searchText() string {
	if q.SearchText != "" {
		return q.SearchText
	}
	return q.Text
}

type Source struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Relevance float64 `json:"relevance"`
}

type Result struct {
	QueryID       string        `json:"query_id"`
	Answer        string        `json:"answer"`
	Branch        Branch        `json:"branch"`
	Reason        Reason        `json:"reason"`
	Intent        string        `json:"intent"`
	Confidence    float64       `json:"confidence"`
	RAGConfidence float64       `json:"rag_confidence"`
	CacheHit      bool          `json:"cache_hit"`
	UsedWebSearch bool          `json:"used_web_search"`
	URLsFetched   []string      `json:"urls_fetched"`
	Generated     bool          `json:"generated"`
	Sources       []Source      `json:"sources"`
	Settings      Settings      `json:"settings"`
	Trace         *Trace        `json:"trace"`
	ResponseTime  time.Duration `json:"response_time_ns"`
	Error         string        `json:"error,omitempty"`
}

// Router decides per query between the local knowledge store, a live fetch
// and generic fallback text.
type Router struct {
	cfg      Config
	config   ConfigSource
	embed    Embedder
	score    Scorer
	fetch    Fetcher
	complete Completer
	sink     Sink

	now   func() time.Time
	newID func() string
}

func New(cfg Config, deps Deps) *Router {
	return &Router{
		cfg:      cfg.withDefaults(),
		config:   deps.Config,
		embed:    deps.Embedder,
		score:    deps.Scorer,
		fetch:    deps.Fetcher,
		complete: deps.Completer,
		sink:     deps.Sink,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Route never returns an error. Upstream failures degrade the answer and are
// recorded in the result and trace.
func (r *Router) Route(ctx context.Context, q Query) *Result {
	start := r.now()
	trace := newTrace(r.now)
	res := &Result{QueryID: r.newID(), Trace: trace, URLsFetched: []string{}, Sources: []Source{}}
	logger := log.With().Int("tenant_id", q.TenantID).Str("query_id", res.QueryID).Logger()

	settings, fallbackCfg, configReason := r.loadConfig(ctx, q.TenantID, logger)
	res.Settings = settings
	trace.add(StateConfigLoaded, configReason, fmt.Sprintf("threshold=%.2f web=%t max_pages=%d", settings.ConfidenceThreshold, settings.EnableWebSearch, settings.MaxWebPages))

	res.Intent = r.classifyIntent(ctx, q.Text)

	decision, scoreReason := r.scoreQuery(ctx, q, settings.ConfidenceThreshold, logger)
	res.RAGConfidence = decision.ConfidenceScore
	trace.add(StateScored, scoreReason, fmt.Sprintf("score=%.4f found=%t urls=%d", decision.ConfidenceScore, decision.ContentFound, len(decision.RecommendedURLs)))

	hit := isHit(decision, settings.ConfidenceThreshold)

	var generate func() (string, bool)
	switch {
	case hit && !q.Debug:
		res.Branch, res.Reason = BranchCacheHit, ReasonConfidentMatch
		res.CacheHit = true
		res.Answer = cachedAnswer(decision)
		res.Confidence = clamp01(decision.ConfidenceScore)
		if decision.BestMatchURL != "" {
			res.Sources = []Source{{URL: decision.BestMatchURL, Title: decision.BestMatchTitle, Relevance: res.Confidence}}
		}
		trace.add(StateCacheHit, res.Reason, decision.BestMatchURL)
		generate = func() (string, bool) { return r.generateFromCache(ctx, q, decision) }

	case settings.EnableWebSearch && len(decision.RecommendedURLs) > 0:
		reason := ReasonLowConfidence
		if hit {
			reason = ReasonForcedDebug
		}
		maxPages := settings.MaxWebPages
		if q.MaxWebPages > 0 {
			maxPages = q.MaxWebPages
		}
		urls := truncateURLs(decision.RecommendedURLs, maxPages)
		res.UsedWebSearch = true
		res.URLsFetched = urls
		trace.add(StateWebFetch, reason, strings.Join(urls, ","))

		summaries, fetchReason, err := r.fetchPages(ctx, q, urls, maxPages, settings.CacheTTLHours)
		if err != nil || len(summaries) == 0 {
			if err != nil {
				res.Error = err.Error()
				logger.Warn().Err(err).Msg("⚠️ live fetch failed, using fallback")
			}
			r.fallback(res, q.Text, fallbackCfg, fetchReason)
			break
		}

		res.Branch, res.Reason = BranchWeb, reason
		res.Answer = webAnswer(summaries)
		res.Confidence = math.Min(1, math.Max(webConfidenceFloor, decision.ConfidenceScore+0.2))
		res.Sources = webSources(summaries)
		trace.add(StateAnswerFromWeb, reason, fmt.Sprintf("pages=%d", len(summaries)))
		generate = func() (string, bool) { return r.generateFromWeb(ctx, q, summaries) }

	default:
		reason := ReasonNoURLs
		if !settings.EnableWebSearch {
			reason = ReasonWebSearchDisabled
		}
		r.fallback(res, q.Text, fallbackCfg, reason)
	}

	switch {
	case generate == nil:
		trace.add(StateGenerate, ReasonGenerateSkipped, "")
	case r.complete == nil:
		trace.add(StateGenerate, ReasonGenerateSkipped, "no completer")
	default:
		if answer, ok := generate(); ok {
			res.Answer = answer
			res.Generated = true
			trace.add(StateGenerate, ReasonGenerated, "")
		} else {
			trace.add(StateGenerate, ReasonGenerateFailed, "kept pre-generation answer")
		}
	}

	res.ResponseTime = r.now().Sub(start)
	r.record(q, res)
	trace.add(StateLogged, ReasonNone, "")

	metrics.RecordDecision(string(res.Branch), string(res.Reason), res.ResponseTime)
	logger.Info().
		Str("branch", string(res.Branch)).
		Str("reason", string(res.Reason)).
		Float64("rag_confidence", res.RAGConfidence).
		Int64("elapsed_ms", res.ResponseTime.Milliseconds()).
		Msg("✅ query routed")
	return res
}

func (r *Router) loadConfig(ctx context.Context, tenantID int, logger zerolog.Logger) (Settings, models.FallbackConfiguration, Reason) {
	if r.config == nil {
		return DefaultSettings(), prompt.ResolveFallback(nil), ReasonDefaults
	}

	tenant, err := r.config.GetTenant(ctx, tenantID)
	if err != nil {
		logger.Warn().Err(err).Msg("⚠️ tenant config unavailable, using defaults")
		return DefaultSettings(), prompt.ResolveFallback(nil), ReasonDefaults
	}

	reason := ReasonNone
	if tenant.RAG == nil {
		reason = ReasonDefaults
	}
	return SettingsFrom(tenant.RAG), prompt.ResolveFallback(tenant), reason
}

func (r *Router) scoreQuery(ctx context.Context, q Query, threshold float64, logger zerolog.Logger) (*models.RAGDecision, Reason) {
	webNeeded := &models.RAGDecision{Source: "web_needed", RecommendedURLs: []string{}}
	if r.embed == nil || r.score == nil {
		return webNeeded, ReasonScoreFailed
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ScoreTimeout)
	defer cancel()

	embedding, err := r.embed.Embed(ctx, q.searchText())
	if err != nil {
		r.upstreamFailed("embed", err)
		logger.Warn().Err(err).Msg("⚠️ embedding failed")
		return webNeeded, ReasonScoreFailed
	}

	decision, err := r.score.Score(ctx, q.TenantID, q.searchText(), embedding, threshold)
	if err != nil || decision == nil {
		r.upstreamFailed("score", err)
		logger.Warn().Err(err).Msg("⚠️ knowledge scoring failed")
		return webNeeded, ReasonScoreFailed
	}

	decision.ConfidenceScore = clamp01(decision.ConfidenceScore)
	return decision, ReasonNone
}

func (r *Router) fetchPages(ctx context.Context, q Query, urls []string, maxPages, cacheTTLHours int) ([]models.PageSummary, Reason, error) {
	if r.fetch == nil {
		return nil, ReasonFetchFailed, errors.New("no fetch service configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	result, err := r.fetch.FetchRelevantContent(ctx, models.FetchRequest{
		Query:         q.searchText(),
		TenantID:      q.TenantID,
		MaxPages:      maxPages,
		URLs:          urls,
		CacheTTLHours: cacheTTLHours,
	})
	if err != nil {
		r.upstreamFailed("fetch", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ReasonFetchTimeout, fmt.Errorf("live fetch timed out: %w", err)
		}
		return nil, ReasonFetchFailed, fmt.Errorf("live fetch: %w", err)
	}
	if result == nil || len(result.Summaries) == 0 {
		return nil, ReasonFetchEmpty, nil
	}
	return result.Summaries, ReasonNone, nil
}

// fallback fills res with the generic answer. A detected emergency,
// after-hours or uncertain trigger selects the tenant's text for it.
func (r *Router) fallback(res *Result, text string, cfg models.FallbackConfiguration, reason Reason) {
	res.Branch, res.Reason = BranchFallback, reason
	res.Confidence = fallbackConfidence

	if trig := prompt.DetectTrigger(text, cfg); trig != prompt.TriggerNone {
		res.Answer = trig.Text(cfg)
		res.Trace.add(StateAnswerFallback, ReasonFallbackTrigger, string(trig))
		return
	}
	res.Answer = intentFallback(res.Intent)
	res.Trace.add(StateAnswerFallback, reason, res.Intent)
}

func (r *Router) record(q Query, res *Result) {
	if r.sink == nil {
		return
	}
	r.sink.Record(&models.QueryLogRecord{
		ID:                  res.QueryID,
		TenantID:            q.TenantID,
		QueryText:           q.Text,
		QueryIntent:         res.Intent,
		RAGConfidence:       res.RAGConfidence,
		Branch:              string(res.Branch),
		Reason:              string(res.Reason),
		UsedWebSearch:       res.UsedWebSearch,
		URLsFetched:         res.URLsFetched,
		CacheHit:            res.CacheHit,
		TotalResponseTimeMs: res.ResponseTime.Milliseconds(),
		FinalConfidence:     res.Confidence,
		Error:               res.Error,
		CreatedAt:           r.now(),
	})
}

func (r *Router) upstreamFailed(stage string, err error) {
	metrics.RecordUpstreamFailure(stage)
	if err != nil {
		log.Debug().Err(err).Str("stage", stage).Msg("upstream call failed")
	}
}

// isHit accepts the scorer's own verdict, or a score at or above the
// threshold when there is a summary to answer from.
func isHit(d *models.RAGDecision, threshold float64) bool {
	if d.ContentFound {
		return true
	}
	return d.ConfidenceScore >= threshold && strings.TrimSpace(d.BestMatchSummary) != ""
}

// truncateURLs keeps the first n URLs in scorer order.
func truncateURLs(urls []string, n int) []string {
	if n <= 0 || n >= len(urls) {
		n = len(urls)
	}
	out := make([]string, n)
	copy(out, urls[:n])
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
