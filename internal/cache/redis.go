package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

// RedisCache implements Cache over Redis so multiple engine replicas share
// one staleness window. Values are JSON arrays of exercise ids; expiry is
// enforced server-side with the key TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies connectivity
func NewRedisCache(address, password string, db int, ttl time.Duration) (*RedisCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func completionKey(userID string) string {
	return fmt.Sprintf("completions:user:%s", userID)
}

// Read fetches the cached set; an absent or expired key is a miss
func (c *RedisCache) Read(ctx context.Context, userID string) (models.CompletionSet, bool, error) {
	data, err := c.client.Get(ctx, completionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read completion cache: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		// A corrupt entry is treated as a miss so the caller refetches
		return nil, false, nil
	}

	return models.NewCompletionSet(ids...), true, nil
}

// Write stores the set with the configured TTL
func (c *RedisCache) Write(ctx context.Context, userID string, set models.CompletionSet) error {
	data, err := json.Marshal(set.IDs())
	if err != nil {
		return fmt.Errorf("failed to marshal completion set: %w", err)
	}

	if err := c.client.Set(ctx, completionKey(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write completion cache: %w", err)
	}
	return nil
}

// Invalidate deletes the user's key
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, completionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate completion cache: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
