package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts chat requests per tenant in fixed hourly windows.
type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRateLimiter(redisURL string) (*RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return NewWithClient(redis.NewClient(opt)), nil
}

func NewWithClient(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allow counts the request against the tenant's current hour. When redis
// cannot be reached the request is allowed and the error returned.
func (rl *RateLimiter) Allow(ctx context.Context, tenantID int, limit int) (Decision, error) {
	now := rl.now().UTC()
	window := now.Truncate(time.Hour)
	d := Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: window.Add(time.Hour)}
	if limit <= 0 {
		return d, nil
	}

	key := fmt.Sprintf("ratelimit:tenant:%d:%s", tenantID, window.Format("2006-01-02-15"))

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return d, fmt.Errorf("rate limit check: %w", err)
	}
	if count == 1 {
		rl.client.Expire(ctx, key, time.Hour)
	}

	d.Allowed = count <= int64(limit)
	d.Remaining = max(limit-int(count), 0)
	return d, nil
}

func (rl *RateLimiter) Close() error {
	return rl.client.Close()
}
