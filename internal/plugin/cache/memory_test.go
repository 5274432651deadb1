package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(DefaultStoreConfig(), 0)
	store.now = func() time.Time { return now }
	t.Cleanup(func() { _ = store.Close() })
	return store, &now
}

func TestMemoryStore_SetAndGet(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_Miss(t *testing.T) {
	store, _ := newTestMemoryStore(t)

	_, err := store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_Expiration(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "default", []byte("2"), 0))
	require.NoError(t, store.Set(ctx, "forever", []byte("3"), -1))

	*now = now.Add(2 * time.Second)
	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
	ok, _ := store.Exists(ctx, "short")
	assert.False(t, ok)

	_, err = store.Get(ctx, "default")
	assert.NoError(t, err)

	*now = now.Add(time.Hour)
	_, err = store.Get(ctx, "default")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = store.Get(ctx, "forever")
	assert.NoError(t, err)

	store.removeExpired()
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_DeleteAndClear(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, store.Delete(ctx, "a"))
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Clear(ctx))
	assert.Zero(t, store.Len())
}

func TestMemoryStore_CopiesValue(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Set(ctx, "k", nil, 0), context.Canceled)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
