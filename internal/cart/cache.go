package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// CachedLine is what the cache keeps per cart line. Prices are never cached.
type CachedLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// Cache holds the line set of a cart. Every Delete bumps a per-user version;
// Set only writes when the version it was given is still current, so a
// snapshot read before a mutation cannot overwrite the invalidation.
type Cache interface {
	Get(ctx context.Context, userID uuid.UUID) ([]CachedLine, error)
	Version(ctx context.Context, userID uuid.UUID) (int64, error)
	Set(ctx context.Context, userID uuid.UUID, lines []CachedLine, version int64) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 10 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, userID uuid.UUID) ([]CachedLine, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	lines := []CachedLine{}
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart lines failed: %w", err)
	}
	return lines, nil
}

func (r *RedisCache) Version(ctx context.Context, userID uuid.UUID) (int64, error) {
	return readVersion(ctx, r.client, userID)
}

// Set spreads expiry over a few minutes so carts cached together do not all
// expire together. A stale version is a silent no-op.
func (r *RedisCache) Set(ctx context.Context, userID uuid.UUID, lines []CachedLine, version int64) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart lines failed: %w", err)
	}
	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(userID), data, ttl)
			return nil
		})
		return err
	}, versionKey(userID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cacheKey(userID))
		pipe.Incr(ctx, versionKey(userID))
		pipe.Expire(ctx, versionKey(userID), 24*time.Hour)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, c stringGetter, userID uuid.UUID) (int64, error) {
	raw, err := c.Get(ctx, versionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version failed: %w", err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad cart cache version %q: %w", raw, err)
	}
	return v, nil
}

func cacheKey(userID uuid.UUID) string {
	return "cart:" + userID.String()
}

func versionKey(userID uuid.UUID) string {
	return "cart:" + userID.String() + ":v"
}
