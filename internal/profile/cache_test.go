package profile

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openidx/hijackguard/internal/common/testutil"
)

type countingRepository struct {
	inner Repository
	calls atomic.Int32
	delay time.Duration
}

func (c *countingRepository) Get(ctx context.Context, userID string) (*UserProfile, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.inner.Get(ctx, userID)
}

func newCountingRepository(t *testing.T) *countingRepository {
	t.Helper()
	mem := NewMemoryRepository()
	require.NoError(t, Seed(context.Background(), mem, DemoProfiles()))
	return &countingRepository{inner: mem}
}

func TestCachedRepository_ReadThrough(t *testing.T) {
	mr := testutil.NewMockRedis(t)
	backing := newCountingRepository(t)
	cache := NewCachedRepository(backing, mr.Redis(), time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := cache.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, mr.Mini.Exists(cacheKeyPrefix+"alice"))

	second, err := cache.Get(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), backing.calls.Load())
}

func TestCachedRepository_Expiry(t *testing.T) {
	mr := testutil.NewMockRedis(t)
	backing := newCountingRepository(t)
	cache := NewCachedRepository(backing, mr.Redis(), time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := cache.Get(ctx, "bob")
	require.NoError(t, err)

	mr.Mini.FastForward(2 * time.Minute)

	_, err = cache.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.calls.Load())
}

func TestCachedRepository_NotFoundIsNotCached(t *testing.T) {
	mr := testutil.NewMockRedis(t)
	backing := newCountingRepository(t)
	cache := NewCachedRepository(backing, mr.Redis(), time.Minute, zap.NewNop())

	_, err := cache.Get(context.Background(), "mallory")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Mini.Exists(cacheKeyPrefix+"mallory"))
}

func TestCachedRepository_Invalidate(t *testing.T) {
	mr := testutil.NewMockRedis(t)
	backing := newCountingRepository(t)
	cache := NewCachedRepository(backing, mr.Redis(), time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := cache.Get(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "alice"))
	assert.False(t, mr.Mini.Exists(cacheKeyPrefix+"alice"))
}

func TestCachedRepository_RedisDownFallsThrough(t *testing.T) {
	mr := testutil.NewMockRedis(t)
	backing := newCountingRepository(t)
	cache := NewCachedRepository(backing, mr.Redis(), time.Minute, zap.NewNop())
	mr.Mini.Close()

	p, err := cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
}

func TestCachedRepository_CorruptEntryIsReplaced(t *testing.T) {
	mr := testutil.NewMockRedis(t)
	backing := newCountingRepository(t)
	cache := NewCachedRepository(backing, mr.Redis(), time.Minute, zap.NewNop())
	require.NoError(t, mr.Mini.Set(cacheKeyPrefix+"alice", "{not json"))

	p, err := cache.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, int32(1), backing.calls.Load())
}

func TestCachedRepository_CollapsesConcurrentMisses(t *testing.T) {
	mr := testutil.NewMockRedis(t)
	backing := newCountingRepository(t)
	backing.delay = 50 * time.Millisecond
	cache := NewCachedRepository(backing, mr.Redis(), time.Minute, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := cache.Get(context.Background(), "bob")
			assert.NoError(t, err)
			assert.Equal(t, "bob", p.UserID)
		}()
	}
	wg.Wait()

	assert.Less(t, backing.calls.Load(), int32(10))
}
