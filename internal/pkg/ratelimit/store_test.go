package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IncrStartsWindowOnFirstHit(t *testing.T) {
	clock := NewFakeClock(time.Unix(1_700_000_000, 0))
	store := NewMemoryStore(clock)
	ctx := context.Background()

	count, ttl, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, ttl)

	clock.Advance(20 * time.Second)
	count, ttl, err = store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 40*time.Second, ttl)

	clock.Advance(40 * time.Second)
	count, _, err = store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStore_ConcurrentIncrIsAtomic(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = store.Incr(ctx, "k", time.Minute)
		}()
	}
	wg.Wait()

	count, _, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(51), count)
}

func TestMemoryStore_SweepAndTTL(t *testing.T) {
	clock := NewFakeClock(time.Unix(1_700_000_000, 0))
	store := NewMemoryStore(clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", time.Second))
	require.NoError(t, store.Set(ctx, "long", time.Hour))

	ttl, err := store.TTL(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, time.Second, ttl)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	ttl, err = store.TTL(ctx, "short")
	require.NoError(t, err)
	assert.Zero(t, ttl)

	require.NoError(t, store.Delete(ctx, "long", "missing"))
	assert.Zero(t, store.Len())
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore(t *testing.T) {
	client := redisClient(t)
	store := NewRedisStore(client, fmt.Sprintf("test:%s:", uuid.NewString()))
	ctx := context.Background()

	count, ttl, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 1)

	count, _, err = store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, store.Set(ctx, "lock", 30*time.Second))
	ttl, err = store.TTL(ctx, "lock")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, "k", "lock"))
	ttl, err = store.TTL(ctx, "lock")
	require.NoError(t, err)
	assert.Zero(t, ttl)
}
