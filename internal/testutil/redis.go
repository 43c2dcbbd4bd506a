package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the integration test Redis.
type RedisConfig struct {
	// Addr overrides candidate probing when set.
	Addr       string   `env:"REDIS_ADDR"`
	Candidates []string `env:"TEST_REDIS_CANDIDATES" envDefault:"redis:6379,localhost:6379,localhost:56379" envSeparator:","`
	// DB pins the logical database. Negative means reserve one of 1..15.
	DB         int      `env:"TEST_REDIS_DB"         envDefault:"-1"`
	Require    bool     `env:"TEST_REQUIRE_REDIS"`
	RequireAll bool     `env:"TEST_REQUIRE_INFRA"`
}

func (c RedisConfig) required() bool { return c.Require || c.RequireAll }

func (c RedisConfig) candidates() []string {
	if c.Addr != "" {
		return []string{c.Addr}
	}
	return c.Candidates
}

// SetupTestRedis returns a client on an empty logical database, skipping
// the test when no Redis answers. Parallel packages each reserve their own
// database through a lock key in DB 0.
func SetupTestRedis(t TB) *redis.Client {
	t.Helper()
	var cfg RedisConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse test redis env: %v", err)
	}

	addr, ok := firstReachable(cfg.candidates())
	if !ok {
		if cfg.required() {
			t.Fatal("redis not available for testing")
		}
		t.Skip("redis not available for testing")
	}

	db := cfg.DB
	if db < 0 {
		db = reserveRedisDB(t, addr)
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis db %d: %v", db, err)
	}
	return client
}

func firstReachable(addrs []string) (string, bool) {
	for _, addr := range addrs {
		c := redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := c.Ping(ctx).Err()
		cancel()
		_ = c.Close()
		if err == nil {
			return addr, true
		}
	}
	return "", false
}

func reserveRedisDB(t TB, addr string) int {
	t.Helper()
	meta := redis.NewClient(&redis.Options{Addr: addr})
	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())

	for i := 1; i <= 15; i++ {
		key := fmt.Sprintf("notify:testutil:db_lock:%d", i)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		ok, err := meta.SetNX(ctx, key, owner, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = meta.Del(ctx, key).Err()
			_ = meta.Close()
		})
		return i
	}

	_ = meta.Close()
	t.Logf("no free redis db at %s, sharing db 1", addr)
	return 1
}
