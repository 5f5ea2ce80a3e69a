package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisLib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisLib.NewClient(&redisLib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client), mr
}

func TestCache_SetGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "k", payload{Name: "dni", Count: 2}, time.Minute)

	var got payload
	found, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "dni", Count: 2}, got)
}

func TestCache_MissAndExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	var got payload
	found, err := cache.Get(ctx, "absent", &got)
	require.NoError(t, err)
	assert.False(t, found)

	cache.Set(ctx, "short", payload{Name: "x"}, time.Second)
	mr.FastForward(2 * time.Second)
	found, err = cache.Get(ctx, "short", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_Versions(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	assert.Equal(t, int64(0), cache.GetVersion(ctx, "child:1:docs:version"))
	cache.IncrementVersion(ctx, "child:1:docs:version")
	cache.IncrementVersion(ctx, "child:1:docs:version")
	assert.Equal(t, int64(2), cache.GetVersion(ctx, "child:1:docs:version"))
}

func TestCache_NilClientIsNoop(t *testing.T) {
	cache := NewCache(nil)
	ctx := context.Background()

	cache.Set(ctx, "k", payload{}, time.Minute)
	cache.IncrementVersion(ctx, "v")

	var got payload
	found, err := cache.Get(ctx, "k", &got)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(0), cache.GetVersion(ctx, "v"))

	var nilCache *Cache
	found, _ = nilCache.Get(ctx, "k", &got)
	assert.False(t, found)
}
