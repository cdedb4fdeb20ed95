package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quote-editor/internal/cache"
)

func TestCacheRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.New(client, time.Minute)
	ctx := context.Background()

	var dst map[string]int
	found, err := c.GetJSON(ctx, "k", &dst)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.SetJSON(ctx, "k", map[string]int{"pax": 4}))
	found, err = c.GetJSON(ctx, "k", &dst)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 4, dst["pax"])
	require.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, c.Delete(ctx, "k"))
	require.False(t, mr.Exists("k"))
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *cache.Cache
	found, err := c.GetJSON(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, c.SetJSON(context.Background(), "k", 1))
}

func TestKey(t *testing.T) {
	require.Equal(t, "editor:draft:abc", cache.Key("editor:", "draft", "abc"))
	require.Equal(t, "draft:abc", cache.Key("", "draft", " ", "abc"))
}
