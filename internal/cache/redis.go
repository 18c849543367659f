package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect parses a redis:// URL (a bare host:port is accepted too) and
// verifies the server answers.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		opt, err = redis.ParseURL("redis://" + rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// RedisCache stores JSON-encoded values under a key namespace so several
// API replicas share computed views. Redis errors degrade to cache misses.
type RedisCache[T any] struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewRedisCache[T any](client redis.UniversalClient, namespace string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{client: client, namespace: namespace, ttl: ttl}
}

func (c *RedisCache[T]) key(k string) string {
	return c.namespace + ":" + k
}

// versionKey sits outside the value keyspace so prefix scans never see it.
func (c *RedisCache[T]) versionKey(prefix string) string {
	return c.namespace + "~version:" + prefix
}

// setIfVersion writes ARGV[2] to KEYS[2] only while KEYS[1] equals ARGV[1].
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[1]) or '0'
if v ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	b, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "Redis get failed", "key", key, "error", err)
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		slog.WarnContext(ctx, "Dropping undecodable cache entry", "key", key, "error", err)
		c.Delete(ctx, key)
		return zero, false
	}
	return v, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	b, err := json.Marshal(data)
	if err != nil {
		slog.WarnContext(ctx, "Cache value not encodable", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), b, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis set failed", "key", key, "error", err)
	}
}

// Version reads the invalidation counter of prefix. A failed read returns
// MaxUint64, which no stored counter matches, so the later set is skipped.
func (c *RedisCache[T]) Version(ctx context.Context, prefix string) uint64 {
	v, err := c.client.Get(ctx, c.versionKey(prefix)).Uint64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		slog.WarnContext(ctx, "Redis version read failed", "prefix", prefix, "error", err)
		return math.MaxUint64
	}
	return v
}

func (c *RedisCache[T]) SetIfVersion(ctx context.Context, key, prefix string, version uint64, data T) bool {
	b, err := json.Marshal(data)
	if err != nil {
		slog.WarnContext(ctx, "Cache value not encodable", "key", key, "error", err)
		return false
	}
	keys := []string{c.versionKey(prefix), c.key(key)}
	stored, err := setIfVersion.Run(ctx, c.client, keys,
		strconv.FormatUint(version, 10), b, c.ttl.Milliseconds()).Int()
	if err != nil {
		slog.WarnContext(ctx, "Redis set failed", "key", key, "error", err)
		return false
	}
	return stored == 1
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		slog.WarnContext(ctx, "Redis delete failed", "key", key, "error", err)
	}
}

func (c *RedisCache[T]) DeletePrefix(ctx context.Context, prefix string) int {
	if err := c.client.Incr(ctx, c.versionKey(prefix)).Err(); err != nil {
		slog.WarnContext(ctx, "Redis version bump failed", "prefix", prefix, "error", err)
	}
	removed := 0
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	var batch []string
	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			slog.WarnContext(ctx, "Redis delete failed", "prefix", prefix, "error", err)
		}
		removed += int(n)
		batch = batch[:0]
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			flush()
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		slog.WarnContext(ctx, "Redis scan failed", "prefix", prefix, "error", err)
	}
	return removed
}
