package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniredis starts a miniredis server and returns a client connected to it.
func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAcquirePaymentLock(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewLockStore(client)
	ctx := context.Background()

	lock, err := store.AcquirePaymentLock(ctx, "trip-1", "254700000005", 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "lock:payment:trip-1:254700000005", lock.Key)

	val, err := mr.Get(lock.Key)
	require.NoError(t, err)
	assert.Equal(t, lock.Token, val)
	assert.Equal(t, 30*time.Second, mr.TTL(lock.Key))

	// Held by us; a second attempt gets nothing.
	again, err := store.AcquirePaymentLock(ctx, "trip-1", "254700000005", 30*time.Second)
	require.NoError(t, err)
	assert.Nil(t, again)

	// A different phone is independent.
	other, err := store.AcquirePaymentLock(ctx, "trip-1", "254700000006", 30*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestAcquirePaymentLock_Expires(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewLockStore(client)
	ctx := context.Background()

	_, err := store.AcquirePaymentLock(ctx, "trip-1", "254700000005", 30*time.Second)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	lock, err := store.AcquirePaymentLock(ctx, "trip-1", "254700000005", 30*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, lock)
}

func TestRelease_OnlyOwnToken(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewLockStore(client)
	ctx := context.Background()

	lock, err := store.AcquirePaymentLock(ctx, "trip-1", "254700000005", 30*time.Second)
	require.NoError(t, err)

	stale := &Lock{Key: lock.Key, Token: "someone-else"}
	require.NoError(t, store.Release(ctx, stale))
	assert.True(t, mr.Exists(lock.Key))

	require.NoError(t, store.Release(ctx, lock))
	assert.False(t, mr.Exists(lock.Key))

	assert.NoError(t, store.Release(ctx, nil))
}

func TestClearPaymentLock(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewLockStore(client)
	ctx := context.Background()

	lock, err := store.AcquirePaymentLock(ctx, "trip-1", "254700000005", 30*time.Second)
	require.NoError(t, err)

	require.NoError(t, store.ClearPaymentLock(ctx, "trip-1", "254700000005"))
	assert.False(t, mr.Exists(lock.Key))

	// Clearing a lock that is not held is not an error.
	assert.NoError(t, store.ClearPaymentLock(ctx, "trip-1", "254700000005"))
}

func TestAcquirePaymentLock_ServerDown(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewLockStore(client)
	mr.Close()

	_, err := store.AcquirePaymentLock(context.Background(), "trip-1", "254700000005", time.Second)
	assert.Error(t, err)
}
