package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 30*time.Minute, cfg.Cache.StableTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.EmbeddingCacheTTL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
	assert.Equal(t, "text-embedding-ada-002", cfg.OpenAI.EmbeddingModel)
	assert.True(t, cfg.InMemory())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/calm")
	t.Setenv("CACHE_STABLE_TTL", "1h")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("SERVER_PORT", "9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Cache.StableTTL)
	assert.Equal(t, 3*time.Second, cfg.Router.FetchTimeout)
	assert.Equal(t, "9999", cfg.ServerPort)
	assert.False(t, cfg.InMemory())
}

func TestLoad_RejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("GENERATE_TIMEOUT", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GENERATE_TIMEOUT")
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	t.Setenv("SCORE_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}
