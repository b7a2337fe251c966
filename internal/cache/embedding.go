package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbeddingCache memoizes query embeddings in redis. Redis failures degrade
// to a direct call to the wrapped embedder.
type EmbeddingCache struct {
	redis *redis.Client
	next  Embedder
	model string
	ttl   time.Duration
}

func NewEmbeddingCache(client *redis.Client, next Embedder, model string, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &EmbeddingCache{
		redis: client,
		next:  next,
		model: model,
		ttl:   ttl,
	}
}

func (ec *EmbeddingCache) key(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:model:%s:text:%x", ec.model, hash)
}

func (ec *EmbeddingCache) Embed(ctx context.Context, text string) ([]float64, error) {
	key := ec.key(text)

	raw, err := ec.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []float64
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil && len(cached) > 0 {
			return cached, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Msg("⚠️ embedding cache read failed")
	}

	embedding, err := ec.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(embedding)
	if err == nil {
		if setErr := ec.redis.Set(ctx, key, encoded, ec.ttl).Err(); setErr != nil {
			log.Warn().Err(setErr).Msg("⚠️ embedding cache write failed")
		}
	}

	return embedding, nil
}
