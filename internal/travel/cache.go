package travel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Cache wraps a Provider with a Redis matrix cache. Lookups key on the
// ordered location list, so any reordering or edit misses. Redis errors
// degrade to the wrapped provider, never to a request failure.
type Cache struct {
	rdb  *redis.Client
	next Provider
	ttl  time.Duration
}

func NewCache(rdb *redis.Client, next Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl}
}

func (c *Cache) Matrix(ctx context.Context, locations []string) ([][]int, error) {
	key := matrixKey(locations)
	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var m [][]int
		if err := json.Unmarshal(data, &m); err == nil && len(m) == len(locations) {
			return m, nil
		}
	}
	m, err := c.next.Matrix(ctx, locations)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(m); err == nil {
		_ = c.rdb.Set(ctx, key, data, c.ttl).Err()
	}
	return m, nil
}

func matrixKey(locations []string) string {
	h := sha256.Sum256([]byte(strings.Join(locations, "\x1f")))
	return "ttm:" + hex.EncodeToString(h[:])
}
