package redis

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/clients"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	r "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RankingCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := &clients.RedisClient{Client: r.NewClient(&r.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = client.Client.Close() })

	c := NewRankingCache(client, &cfg.RedisCfg{RankingTTL: time.Minute, KeyPrefix: "rec:"}, logger.NewNop())
	return c, mr
}

func TestRankingCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	items := []domain.ScoredProduct{{ProductID: 6, Score: 0.56}, {ProductID: 5, Score: 0.54}}
	require.NoError(t, c.Set(ctx, "similar:1:2:hybrid", items))

	assert.True(t, mr.Exists("rec:similar:1:2:hybrid"))
	assert.Equal(t, time.Minute, mr.TTL("rec:similar:1:2:hybrid"))

	got, err := c.Get(ctx, "similar:1:2:hybrid")
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestRankingCache_EmptyListIsAHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:7:10", []domain.ScoredProduct{}))

	got, err := c.Get(ctx, "user:7:10")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRankingCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, e.ErrCacheMiss)
}

func TestRankingCache_Expired(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []domain.ScoredProduct{{ProductID: 1, Score: 1}}))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, e.ErrCacheMiss)
}

func TestRankingCache_CorruptedValue(t *testing.T) {
	c, mr := newTestCache(t)

	require.NoError(t, mr.Set("rec:bad", "{not json"))

	_, err := c.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, e.ErrCacheMiss)
	assert.False(t, mr.Exists("rec:bad"))
}

func TestRankingCache_Unavailable(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, e.ErrCacheMiss)
}
