package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(opts ...MemoryOption) (*MemoryCache, *clock) {
	c := &clock{t: time.Date(2018, 6, 1, 10, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(opts...)
	mc.now = c.now
	return mc, c
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestCache()

	require.NoError(t, mc.Set(ctx, "analytics:a", report{Name: "wind", Value: 4.5}, time.Minute))
	var got report
	require.NoError(t, mc.Get(ctx, "analytics:a", &got))
	assert.Equal(t, report{Name: "wind", Value: 4.5}, got)

	require.NoError(t, mc.Set(ctx, "raw", "hello", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "hello", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc, clk := newTestCache()

	require.NoError(t, mc.Set(ctx, "k", 1, time.Minute))
	clk.t = clk.t.Add(59 * time.Second)
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	clk.t = clk.t.Add(time.Second)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestCache()

	for _, k := range []string{"analytics:1", "analytics:2", "other:1"} {
		require.NoError(t, mc.Set(ctx, k, k, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, Pattern("analytics:")))

	ok, _ := mc.Exists(ctx, "analytics:1", "analytics:2")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "other:1")
	assert.True(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestCache(WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	ok, _ := mc.Exists(ctx, "b")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCachePrefersExpiredVictim(t *testing.T) {
	ctx := context.Background()
	mc, clk := newTestCache(WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "old", 1, time.Hour))
	require.NoError(t, mc.Set(ctx, "short", 2, time.Second))
	clk.t = clk.t.Add(2 * time.Second)
	require.NoError(t, mc.Set(ctx, "new", 3, time.Hour))

	ok, _ := mc.Exists(ctx, "old", "new")
	assert.True(t, ok)
	ok, _ = mc.Exists(ctx, "short")
	assert.False(t, ok)
}

func TestLayeredCacheReadsThrough(t *testing.T) {
	ctx := context.Background()
	remote, _ := newTestCache()
	lc := NewLayeredCache(remote, WithLayeredMemorySize(10), WithLayeredMemoryTTL(time.Minute))

	require.NoError(t, remote.Set(ctx, "analytics:x", report{Name: "pv", Value: 1}, time.Hour))
	var got report
	require.NoError(t, lc.Get(ctx, "analytics:x", &got))
	assert.Equal(t, "pv", got.Name)
	assert.Equal(t, 1, lc.local.Len())

	require.NoError(t, lc.Set(ctx, "analytics:y", "cached", time.Hour))
	ok, _ := remote.Exists(ctx, "analytics:y")
	assert.True(t, ok)

	require.NoError(t, lc.DeleteByPattern(ctx, Pattern("analytics:")))
	ok, _ = lc.Exists(ctx, "analytics:x", "analytics:y")
	assert.False(t, ok)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "analytics:dashboard:abc", Key("analytics", "dashboard", "abc"))
	assert.Len(t, Fingerprint("x"), 24)
	assert.Equal(t, Fingerprint("a|b"), Fingerprint("a|b"))
	assert.Equal(t, "analytics:*", Pattern("analytics:"))
}
