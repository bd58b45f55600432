package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/rulekeeper/internal/core/metrics"
	"github.com/solatis/rulekeeper/internal/types"
)

// fakeRedis is an in-memory RedisClient. A non-nil err fails every call.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// countingStore records backend List calls.
type countingStore struct {
	NodeStore
	lists int
}

func (c *countingStore) List(ctx context.Context, ruleID types.RuleID) ([]types.NodeRecord, error) {
	c.lists++
	return c.NodeStore.List(ctx, ruleID)
}

func newCachedTestStore(t *testing.T) (*CachedStore, *countingStore, *fakeRedis, *metrics.Metrics) {
	t.Helper()
	backend := &countingStore{NodeStore: newTestStore(t)}
	client := newFakeRedis()
	m := metrics.New(nil)
	return NewCachedStore(backend, client, time.Minute, nil, m), backend, client, m
}

func TestCachedStore_ReadThrough(t *testing.T) {
	c, backend, client, m := newCachedTestStore(t)
	ctx := context.Background()
	ruleID := types.NewRuleID()

	require.NoError(t, c.Replace(ctx, ruleID, sampleTree()))

	first, err := c.List(ctx, ruleID)
	require.NoError(t, err)
	second, err := c.List(ctx, ruleID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.lists)
	assert.Equal(t, time.Minute, client.ttls[cacheKey(ruleID)])

	expected := `
# HELP rulekeeper_cache_hits_total Condition tree cache hits by cache layer
# TYPE rulekeeper_cache_hits_total counter
rulekeeper_cache_hits_total{cache="redis"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "rulekeeper_cache_hits_total"))
}

func TestCachedStore_InvalidatesOnWrite(t *testing.T) {
	c, backend, client, _ := newCachedTestStore(t)
	ctx := context.Background()
	ruleID := types.NewRuleID()

	require.NoError(t, c.Replace(ctx, ruleID, sampleTree()))
	_, err := c.List(ctx, ruleID)
	require.NoError(t, err)
	require.Contains(t, client.data, cacheKey(ruleID))

	require.NoError(t, c.Replace(ctx, ruleID, sampleTree()[:1]))
	assert.NotContains(t, client.data, cacheKey(ruleID))

	got, err := c.List(ctx, ruleID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, backend.lists)

	require.NoError(t, c.Delete(ctx, ruleID))
	assert.NotContains(t, client.data, cacheKey(ruleID))

	_, err = c.List(ctx, ruleID)
	assert.ErrorIs(t, err, types.ErrTreeNotFound)
}

func TestCachedStore_RedisDownFallsThrough(t *testing.T) {
	c, backend, client, _ := newCachedTestStore(t)
	ctx := context.Background()
	ruleID := types.NewRuleID()

	client.err = errors.New("connection refused")

	require.NoError(t, c.Replace(ctx, ruleID, sampleTree()))
	got, err := c.List(ctx, ruleID)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 1, backend.lists)
}

func TestCachedStore_CorruptEntry(t *testing.T) {
	c, backend, client, _ := newCachedTestStore(t)
	ctx := context.Background()
	ruleID := types.NewRuleID()

	require.NoError(t, c.Replace(ctx, ruleID, sampleTree()))
	client.data[cacheKey(ruleID)] = "{not json"

	got, err := c.List(ctx, ruleID)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 1, backend.lists)
}
