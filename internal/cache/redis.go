// Package cache provides Redis-backed caches.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultPromptKey is the Redis key of the compiled system prompt.
	DefaultPromptKey = "funnel:system_prompt"
	// DefaultPromptTTL bounds how long a compiled prompt is served.
	DefaultPromptTTL = 5 * time.Minute
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// PromptCache stores the compiled system prompt under a single key.
type PromptCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewPromptCache creates a prompt cache. Empty key and non-positive ttl use the defaults.
func NewPromptCache(client *redis.Client, key string, ttl time.Duration) *PromptCache {
	if key == "" {
		key = DefaultPromptKey
	}
	if ttl <= 0 {
		ttl = DefaultPromptTTL
	}
	return &PromptCache{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// Get returns the cached prompt. A missing key is a miss, not an error.
func (c *PromptCache) Get(ctx context.Context) (string, bool, error) {
	val, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores prompt with the cache TTL.
func (c *PromptCache) Set(ctx context.Context, prompt string) error {
	return c.client.Set(ctx, c.key, prompt, c.ttl).Err()
}

// Invalidate deletes the cached prompt.
func (c *PromptCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

// Ping checks the Redis connection.
func (c *PromptCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
