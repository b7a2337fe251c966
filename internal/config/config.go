package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"secret"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	// AdminToken guards /admin routes. Empty leaves them open.
	AdminToken string `env:"ADMIN_TOKEN"`
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`

	OpenAI OpenAIConfig
	Cache  CacheConfig
	Router RouterConfig

	FetchServiceURL   string `env:"FETCH_SERVICE_URL" envDefault:"http://localhost:9000"`
	AnalyzerRulesFile string `env:"ANALYZER_RULES_FILE"`
	RateLimitPerHour  int    `env:"RATE_LIMIT_PER_HOUR" envDefault:"1000"`
}

type OpenAIConfig struct {
	APIKey         string `env:"OPENAI_API_KEY"`
	BaseURL        string `env:"OPENAI_BASE_URL"`
	ChatModel      string `env:"CHAT_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-ada-002"`
}

type CacheConfig struct {
	DefaultTTL        time.Duration `env:"CACHE_DEFAULT_TTL" envDefault:"5m"`
	StableTTL         time.Duration `env:"CACHE_STABLE_TTL" envDefault:"30m"`
	SweepInterval     time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"10m"`
	EmbeddingCacheTTL time.Duration `env:"EMBEDDING_CACHE_TTL" envDefault:"168h"`
}

type RouterConfig struct {
	ScoreTimeout    time.Duration `env:"SCORE_TIMEOUT" envDefault:"5s"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"20s"`
	GenerateTimeout time.Duration `env:"GENERATE_TIMEOUT" envDefault:"15s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		"CACHE_DEFAULT_TTL":   c.Cache.DefaultTTL,
		"CACHE_STABLE_TTL":    c.Cache.StableTTL,
		"EMBEDDING_CACHE_TTL": c.Cache.EmbeddingCacheTTL,
		"SCORE_TIMEOUT":       c.Router.ScoreTimeout,
		"FETCH_TIMEOUT":       c.Router.FetchTimeout,
		"GENERATE_TIMEOUT":    c.Router.GenerateTimeout,
		"TOKEN_TTL":           c.TokenTTL,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Cache.SweepInterval < 0 {
		return errors.New("CACHE_SWEEP_INTERVAL must not be negative")
	}
	if c.RateLimitPerHour <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_HOUR must be positive, got %d", c.RateLimitPerHour)
	}
	return nil
}

// InMemory reports whether no database is configured and the process should
// run against the in-memory store.
func (c *Config) InMemory() bool {
	return c.DatabaseURL == ""
}
