package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smmpanel/pkg/logger"
)

type balanceView struct {
	UserID    string `json:"user_id"`
	Available string `json:"available"`
}

func TestMemoryCache_SetGetExpire(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", balanceView{UserID: "u1", Available: "10.00"}, time.Minute))

	var got balanceView
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "u1", got.UserID)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_InvalidatePrefix(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, BalanceCacheKey("u1"), 1, 0))
	require.NoError(t, c.Set(ctx, BalanceCacheKey("u2"), 2, 0))
	require.NoError(t, c.Set(ctx, CatalogSnapshotKey, 3, 0))

	require.NoError(t, c.InvalidatePrefix(ctx, BalancePrefix))

	var v int
	assert.ErrorIs(t, c.Get(ctx, BalanceCacheKey("u1"), &v), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, BalanceCacheKey("u2"), &v), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, CatalogSnapshotKey, &v))
}

func TestReadThrough_FetchesOnceThenServesCache(t *testing.T) {
	c := NewMemoryCache()
	cm := NewCacheManager(c, logger.NewNop())
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (interface{}, error) {
		calls++
		return balanceView{UserID: "u1", Available: "42.50"}, nil
	}

	var first, second balanceView
	require.NoError(t, cm.ReadThrough(ctx, BalanceCacheKey("u1"), &first, fetch, ShortExpiration))
	require.NoError(t, cm.ReadThrough(ctx, BalanceCacheKey("u1"), &second, fetch, ShortExpiration))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "42.50", second.Available)
	assert.Equal(t, first, second)
}

func TestReadThrough_SourceErrorIsNotCached(t *testing.T) {
	c := NewMemoryCache()
	cm := NewCacheManager(c, logger.NewNop())
	boom := errors.New("billing down")

	var dest balanceView
	err := cm.ReadThrough(context.Background(), "k", &dest, func(context.Context) (interface{}, error) {
		return nil, boom
	}, ShortExpiration)

	assert.ErrorIs(t, err, boom)
	ok, _ := c.Exists(context.Background(), "k")
	assert.False(t, ok)
}

func TestInvalidateBalanceCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, BalanceCacheKey("u1"), 1, 0))
	require.NoError(t, c.Set(ctx, DepositHistoryCacheKey("u1"), 1, 0))

	require.NoError(t, InvalidateBalanceCache(ctx, c, "u1"))

	ok, _ := c.Exists(ctx, BalanceCacheKey("u1"))
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, DepositHistoryCacheKey("u1"))
	assert.False(t, ok)
}

func TestWarmUpManager_IgnoresMissesAndJoinsFailures(t *testing.T) {
	m := NewWarmUpManager(NewMemoryCache(), logger.NewNop())
	ran := make(chan string, 3)

	m.Register("catalog", func(ctx context.Context, c Cache) error {
		ran <- "catalog"
		var v int
		return c.Get(ctx, CatalogSnapshotKey, &v)
	})
	m.Register("fx", func(context.Context, Cache) error {
		ran <- "fx"
		return nil
	})
	m.Register("broken", func(context.Context, Cache) error {
		ran <- "broken"
		return errors.New("corrupt snapshot")
	})

	err := m.WarmUp(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.NotContains(t, err.Error(), "catalog")
	assert.Len(t, ran, 3)
}
