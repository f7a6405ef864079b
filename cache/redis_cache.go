package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores computed availability snapshots. Entries live under a
// generation number; Invalidate bumps the generation so every older entry
// becomes unreachable at once and expires by TTL.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, TTL: ttl, Prefix: "availability"}
}

func (c *RedisCache) generationKey() string {
	return c.Prefix + ":gen"
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.Client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get resolves key against the current generation. The returned slot must be
// passed to Put so a snapshot computed before an invalidation is never stored
// under the newer generation.
func (c *RedisCache) Get(ctx context.Context, key string, dst interface{}) (string, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", false, err
	}
	slot := c.Prefix + ":" + strconv.FormatInt(gen, 10) + ":" + key

	raw, err := c.Client.Get(ctx, slot).Bytes()
	if errors.Is(err, redis.Nil) {
		return slot, false, nil
	}
	if err != nil {
		return slot, false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return slot, false, err
	}
	return slot, true, nil
}

func (c *RedisCache) Put(ctx context.Context, slot string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, slot, raw, c.TTL).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.Client.Incr(ctx, c.generationKey()).Err()
}
