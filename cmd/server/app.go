package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/analyzer"
	"github.com/samibismar/calmclinic.health-sub001/internal/cache"
	"github.com/samibismar/calmclinic.health-sub001/internal/config"
	"github.com/samibismar/calmclinic.health-sub001/internal/db"
	"github.com/samibismar/calmclinic.health-sub001/internal/fetch"
	"github.com/samibismar/calmclinic.health-sub001/internal/memstore"
	"github.com/samibismar/calmclinic.health-sub001/internal/metrics"
	"github.com/samibismar/calmclinic.health-sub001/internal/prompt"
	"github.com/samibismar/calmclinic.health-sub001/internal/providers"
	"github.com/samibismar/calmclinic.health-sub001/internal/ratelimit"
	"github.com/samibismar/calmclinic.health-sub001/internal/router"
	"github.com/samibismar/calmclinic.health-sub001/internal/tenants"
)

const (
	devAPIKey      = "dev-api-key"
	logSinkTimeout = 5 * time.Second
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg       *config.Config
	cache     *cache.Cache
	store     *tenants.CachedStore
	analyzer  *analyzer.Analyzer
	assembler *prompt.Assembler
	router    *router.Router
	sink      *router.BestEffortSink
	limiter   *ratelimit.RateLimiter

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var (
		base   tenants.Store
		scorer router.Scorer
	)
	if cfg.InMemory() {
		mem := memstore.New()
		memstore.Seed(mem, devAPIKey)
		base, scorer = mem, mem
		log.Warn().Str("api_key", devAPIKey).Msg("⚠️ DATABASE_URL not set, using in-memory demo store")
	} else {
		database, err := db.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, database.Close)
		if err := database.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		base, scorer = database, database
	}

	a.cache = cache.New(
		cache.NewPolicy(cfg.Cache.DefaultTTL, cfg.Cache.StableTTL),
		cache.WithObserver(metrics.CacheObserver{}),
	)
	a.store = tenants.NewCachedStore(base, a.cache)
	a.assembler = prompt.NewAssembler(a.store)

	if cfg.AnalyzerRulesFile != "" {
		loaded, err := analyzer.LoadFile(cfg.AnalyzerRulesFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.analyzer = loaded
	} else {
		a.analyzer = analyzer.Default()
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	redisClient := redis.NewClient(opt)
	a.limiter = ratelimit.NewWithClient(redisClient)
	a.closers = append(a.closers, func() { _ = a.limiter.Close() })

	var (
		embedder  router.Embedder = memstore.HashEmbedder{}
		completer router.Completer
	)
	if cfg.OpenAI.APIKey != "" {
		provider, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			ChatModel:      cfg.OpenAI.ChatModel,
			EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		embedder = cache.NewEmbeddingCache(redisClient, provider, provider.EmbeddingModel(), cfg.Cache.EmbeddingCacheTTL)
		completer = provider
	} else {
		log.Warn().Msg("⚠️ OPENAI_API_KEY not set, using hash embeddings and no answer generation")
	}

	a.sink = router.NewBestEffortSink(base, logSinkTimeout)
	a.router = router.New(router.Config{
		ScoreTimeout:    cfg.Router.ScoreTimeout,
		FetchTimeout:    cfg.Router.FetchTimeout,
		GenerateTimeout: cfg.Router.GenerateTimeout,
		ChatModel:       cfg.OpenAI.ChatModel,
	}, router.Deps{
		Config:    a.store,
		Embedder:  embedder,
		Scorer:    scorer,
		Fetcher:   fetch.NewClient(cfg.FetchServiceURL),
		Completer: completer,
		Sink:      a.sink,
	})

	return a, nil
}

// Close flushes pending query logs and releases connections in reverse
// order of acquisition.
func (a *app) Close() {
	if a.cache != nil {
		a.cache.Stop()
	}
	if a.sink != nil {
		a.sink.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
