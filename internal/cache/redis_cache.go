package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func previewKey(segment string) string {
	return fmt.Sprintf("audience:%s:count", segment)
}

func (c *RedisCache) GetPreview(ctx context.Context, segment string) (int, bool, error) {
	val, err := c.rdb.Get(ctx, previewKey(segment)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func (c *RedisCache) StorePreview(ctx context.Context, segment string, count int) error {
	return c.rdb.Set(ctx, previewKey(segment), strconv.Itoa(count), c.ttl).Err()
}

var _ AudienceCache = (*RedisCache)(nil)
