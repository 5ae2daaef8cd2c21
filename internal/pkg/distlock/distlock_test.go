package distlock

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLock_MutualExclusion(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "schedule:test", ScheduleLockTTL)
	b := NewRedisLock(client, "schedule:test", ScheduleLockTTL)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second acquirer must lose while the lock is held")
}

func TestRedisLock_ReleaseAllowsReacquire(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "schedule:test", ScheduleLockTTL)
	b := NewRedisLock(client, "schedule:test", ScheduleLockTTL)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, a.Release(ctx))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseOnlyByOwner(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "schedule:test", ScheduleLockTTL)
	b := NewRedisLock(client, "schedule:test", ScheduleLockTTL)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A non-owner release must not free the lock.
	require.NoError(t, b.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lock must survive a release by a non-owner")
}

func TestForSchedule_KeyedPerSchedule(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	first := ForSchedule(client, nil, uuid.New())
	second := ForSchedule(client, nil, uuid.New())

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A different schedule's fire must not contend.
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestForSweep_SingleLock(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	a := ForSweep(client, nil)
	b := ForSweep(client, nil)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "the sweep lock is global")
}
