package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/notify-dispatch/internal/domain/model"
)

const templateCachePrefix = "notify:tmpl:"

// RedisTemplateCache caches resolved templates in Redis.
//
// A lookup that resolved to no template is cached too, as the JSON literal
// null, so a missing template does not hit Postgres on every attempt.
type RedisTemplateCache struct {
	client redis.UniversalClient
}

// NewRedisTemplateCache creates a RedisTemplateCache.
func NewRedisTemplateCache(client redis.UniversalClient) *RedisTemplateCache {
	return &RedisTemplateCache{client: client}
}

// TemplateCacheKey builds the Redis key for a lookup. An empty tenant is the system scope.
func TemplateCacheKey(key model.TemplateKey) string {
	tenant := key.TenantID
	if tenant == "" {
		tenant = "_"
	}
	return templateCachePrefix + string(key.Channel) + ":" + key.EventType + ":" + tenant
}

// Get returns the cached template and whether the key was present.
func (c *RedisTemplateCache) Get(ctx context.Context, key model.TemplateKey) (*model.Template, bool, error) {
	raw, err := c.client.Get(ctx, TemplateCacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var tmpl *model.Template
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, false, fmt.Errorf("decode cached template: %w", err)
	}
	return tmpl, true, nil
}

// Set stores tmpl (possibly nil) for ttl. A non-positive ttl is a no-op.
func (c *RedisTemplateCache) Set(ctx context.Context, key model.TemplateKey, tmpl *model.Template, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	if err := c.client.Set(ctx, TemplateCacheKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops cached lookups for an (event type, channel) across all tenants.
func (c *RedisTemplateCache) Invalidate(ctx context.Context, eventType string, channel model.Channel) (int, error) {
	pattern := templateCachePrefix + string(channel) + ":" + eventType + ":*"
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Health pings Redis.
func (c *RedisTemplateCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
