package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/internal/chrom"
)

var _ analysis.Cache = (*RedisCache)(nil)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := Connect(context.Background(), Options{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "chromatrace:phases:r1", Key("phases", "r1"))
}

func TestGetMissing(t *testing.T) {
	c, _ := newTestCache(t)

	var phases []chrom.Phase
	ok, err := c.Get(context.Background(), "phases", "nope", &phases)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetGetRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	start, end := 1.5, 4.0
	in := []chrom.Phase{{
		Label:       "Elution",
		StartTime:   time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 1, 1, 10, 5, 0, 0, time.UTC),
		StartVolume: &start,
		EndVolume:   &end,
	}}
	require.NoError(t, c.Set(ctx, "phases", "r1", in))
	assert.True(t, mr.Exists("chromatrace:phases:r1"))
	assert.Equal(t, time.Minute, mr.TTL("chromatrace:phases:r1"))

	var out []chrom.Phase
	ok, err := c.Get(ctx, "phases", "r1", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, out, 1)
	assert.Equal(t, "Elution", out[0].Label)
	assert.Equal(t, 4.0, *out[0].EndVolume)
	assert.True(t, out[0].StartTime.Equal(in[0].StartTime))

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, "phases", "r1", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetCorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("chromatrace:flux:bad", "not json"))

	var out map[string]any
	ok, err := c.Get(context.Background(), "flux", "bad", &out)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "phases", "r1", []int{1}))
	require.NoError(t, c.Set(ctx, "phases", "r2", []int{2}))
	require.NoError(t, c.Set(ctx, "flux", "vf1", []int{3}))
	require.NoError(t, mr.Set("unrelated", "x"))

	n, err := c.Invalidate(ctx, "phases")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("chromatrace:flux:vf1"))

	n, err = c.Invalidate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("unrelated"))
}

func TestConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}

func TestNewRedisCacheDefaultTTL(t *testing.T) {
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), 0)
	defer c.Close()
	assert.Equal(t, DefaultTTL, c.ttl)
}
