package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLock_AcquireIsExclusive(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, time.Minute)

	first := locker.NewLock("q1-2024_q1-2024")
	second := locker.NewLock("q1-2024_q1-2024")

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseKeepsForeignLock(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	owner := NewRedisLock(client, "report", time.Minute)
	other := NewRedisLock(client, "report", time.Minute)

	ok, err := owner.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, other.Release(ctx))
	assert.True(t, mr.Exists(KeyPrefix+"report"))
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, "report", 10*time.Second)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = NewRedisLock(client, "report", 10*time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_Extend(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, "report", 10*time.Second)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Extend(ctx, time.Minute))
	mr.FastForward(30 * time.Second)
	assert.True(t, mr.Exists(KeyPrefix+"report"))

	stranger := NewRedisLock(client, "report", time.Minute)
	assert.ErrorIs(t, stranger.Extend(ctx, time.Minute), ErrNotOwner)
}

func TestRedisLock_AcquireFailsWhenRedisDown(t *testing.T) {
	mr, client := setupRedis(t)
	mr.Close()

	_, err := NewRedisLock(client, "report", time.Minute).Acquire(context.Background())
	assert.Error(t, err)
}

func TestNewLocker_Fallbacks(t *testing.T) {
	_, client := setupRedis(t)

	assert.IsType(t, &RedisLocker{}, NewLocker(client, nil, time.Minute))
	assert.IsType(t, NoopLocker{}, NewLocker(nil, nil, time.Minute))

	ok, err := NoopLocker{}.NewLock("x").Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeepAlive_RenewsPastTTL(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, 100*time.Millisecond)

	lock := locker.NewLock("q1-2024_q1-2024")
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	runCtx, stop := KeepAlive(ctx, lock)

	// Lets more than the TTL pass in total; each step stays below it so
	// a renewal in between keeps the key alive.
	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		mr.FastForward(80 * time.Millisecond)
	}

	second := locker.NewLock("q1-2024_q1-2024")
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lock must still be held")
	assert.NoError(t, runCtx.Err())

	stop()
	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists(KeyPrefix+"q1-2024_q1-2024"))
}

func TestKeepAlive_CancelsWhenLockIsLost(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, "report", 100*time.Millisecond)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	runCtx, stop := KeepAlive(ctx, lock)
	defer stop()

	require.NoError(t, mr.Set(KeyPrefix+"report", "someone-else"))

	select {
	case <-runCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after the lock was lost")
	}
	assert.ErrorIs(t, context.Cause(runCtx), ErrLockLost)
	assert.ErrorIs(t, context.Cause(runCtx), ErrNotOwner)
}

func TestKeepAlive_WithoutLease(t *testing.T) {
	ctx := context.Background()

	runCtx, stop := KeepAlive(ctx, NoopLocker{}.NewLock("report"))
	stop()

	assert.Equal(t, ctx, runCtx)
}
