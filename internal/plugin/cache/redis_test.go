package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, DefaultStoreConfig())
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := DialRedis(context.Background(), RedisOptions{Addr: mr.Addr()}, DefaultStoreConfig())
	require.NoError(t, err)
	defer store.Close()

	_, err = DialRedis(context.Background(), RedisOptions{Addr: "localhost:99999"}, DefaultStoreConfig())
	assert.Error(t, err)
}

func TestRedisStore_SetAndGet(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("sigmos:k"))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	_, err = store.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "default", []byte("2"), 0))
	require.NoError(t, store.Set(ctx, "forever", []byte("3"), -1))

	assert.Equal(t, 5*time.Minute, mr.TTL("sigmos:default"))
	assert.Zero(t, mr.TTL("sigmos:forever"))

	mr.FastForward(2 * time.Second)
	ok, err := store.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_DeleteAndClear(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "untouched"))
	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, store.Delete(ctx, "a"))
	assert.False(t, mr.Exists("sigmos:a"))

	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists("sigmos:b"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
