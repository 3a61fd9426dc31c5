package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseMutualExclusion runs workers against one lead and fails if two of
// them are ever inside the critical section together.
func exerciseMutualExclusion(t *testing.T, l LeadLocker) {
	t.Helper()

	leadID := uuid.New()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), leadID)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestKeyedMutexExcludes(t *testing.T) {
	exerciseMutualExclusion(t, NewKeyedMutex())
}

func TestKeyedMutexIndependentLeads(t *testing.T) {
	k := NewKeyedMutex()

	unlockA, err := k.Lock(context.Background(), uuid.New())
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	unlockB, err := k.Lock(ctx, uuid.New())
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	k := NewKeyedMutex()
	leadID := uuid.New()

	unlock, err := k.Lock(context.Background(), leadID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, leadID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	k.mu.Lock()
	assert.Empty(t, k.locks)
	k.mu.Unlock()
}

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, time.Second), mr
}

func TestRedisLockerExcludes(t *testing.T) {
	l, _ := newRedisLocker(t)
	l.poll = time.Millisecond
	exerciseMutualExclusion(t, l)
}

func TestRedisLockerReleaseDeletesKey(t *testing.T) {
	l, mr := newRedisLocker(t)
	leadID := uuid.New()

	unlock, err := l.Lock(context.Background(), leadID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(lockKey(leadID)))

	unlock()
	assert.False(t, mr.Exists(lockKey(leadID)))
}

func TestRedisLockerLeavesForeignTokenAlone(t *testing.T) {
	l, mr := newRedisLocker(t)
	leadID := uuid.New()

	unlock, err := l.Lock(context.Background(), leadID)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(lockKey(leadID), "someone-else"))

	unlock()
	got, err := mr.Get(lockKey(leadID))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerTimesOut(t *testing.T) {
	l, _ := newRedisLocker(t)
	leadID := uuid.New()

	unlock, err := l.Lock(context.Background(), leadID)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, leadID)
	assert.ErrorIs(t, err, ErrLockTimeout)
}
