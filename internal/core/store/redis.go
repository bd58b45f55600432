package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/solatis/rulekeeper/internal/core/metrics"
	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Redis read-through cache in front of a NodeStore.
 *
 * Records are cached as JSON under rulekeeper:tree:<ruleID> with a TTL and
 * invalidated on every write. Redis is never authoritative: any cache error
 * is logged and the call falls through to the backing store.
 */

const keyPrefix = "rulekeeper:tree:"

// RedisClient is the subset of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStore wraps a NodeStore with a Redis cache.
type CachedStore struct {
	backend NodeStore
	client  RedisClient
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCachedStore creates a cache over backend. m may be nil.
func NewCachedStore(backend NodeStore, client RedisClient, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func cacheKey(ruleID types.RuleID) string {
	return keyPrefix + string(ruleID)
}

// List serves from Redis when possible, otherwise loads and populates.
func (c *CachedStore) List(ctx context.Context, ruleID types.RuleID) ([]types.NodeRecord, error) {
	key := cacheKey(ruleID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []types.NodeRecord
		if err := json.Unmarshal(data, &records); err == nil {
			c.metrics.CacheHit(metrics.CacheRedis)
			return records, nil
		}
		c.logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Redis get failed", zap.String("key", key), zap.Error(err))
	}
	c.metrics.CacheMiss(metrics.CacheRedis)

	records, err := c.backend.List(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(records); err != nil {
		c.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
	} else if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Redis set failed", zap.String("key", key), zap.Error(err))
	}
	return records, nil
}

// Replace writes through to the backend and invalidates the entry.
func (c *CachedStore) Replace(ctx context.Context, ruleID types.RuleID, records []types.NodeRecord) error {
	if err := c.backend.Replace(ctx, ruleID, records); err != nil {
		return err
	}
	c.invalidate(ctx, ruleID)
	return nil
}

// Delete removes from the backend and invalidates the entry.
func (c *CachedStore) Delete(ctx context.Context, ruleID types.RuleID) error {
	err := c.backend.Delete(ctx, ruleID)
	c.invalidate(ctx, ruleID)
	return err
}

// RuleIDs always reads the backend.
func (c *CachedStore) RuleIDs(ctx context.Context) ([]types.RuleID, error) {
	return c.backend.RuleIDs(ctx)
}

func (c *CachedStore) invalidate(ctx context.Context, ruleID types.RuleID) {
	if err := c.client.Del(ctx, cacheKey(ruleID)).Err(); err != nil {
		c.logger.Warn("Redis invalidation failed", zap.String("rule_id", string(ruleID)), zap.Error(err))
	}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}
