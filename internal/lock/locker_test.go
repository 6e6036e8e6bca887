package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
)

func TestSlotKey(t *testing.T) {
	slot, err := clinic.ParseSlot("2025-11-19", "14:05")
	require.NoError(t, err)
	assert.Equal(t, "lock:slot:7:2025-11-19T14:05", SlotKey(7, slot))
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithSlotLock(context.Background(), "k", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = l.WithSlotLock(context.Background(), "a", func(context.Context) error {
			<-release
			return nil
		})
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := l.WithSlotLock(ctx, "b", func(context.Context) error { return nil })
	assert.NoError(t, err)

	close(release)
	<-done
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	l := NewLocalLocker()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = l.WithSlotLock(context.Background(), "k", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.WithSlotLock(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	close(release)
}

func TestLocalLocker_PropagatesError(t *testing.T) {
	l := NewLocalLocker()
	boom := errors.New("boom")

	err := l.WithSlotLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// the key is free again
	err = l.WithSlotLock(context.Background(), "k", func(context.Context) error { return nil })
	assert.NoError(t, err)
	assert.Empty(t, l.(*localLocker).locks)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSlotLocker_AcquireAndRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisSlotLocker(client, 5*time.Second)

	err := l.WithSlotLock(context.Background(), "lock:slot:1:2025-11-19T14:05", func(context.Context) error {
		assert.True(t, mr.Exists("lock:slot:1:2025-11-19T14:05"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:slot:1:2025-11-19T14:05"))
}

func TestRedisSlotLocker_HeldKeyNotAcquired(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedisSlotLocker(client, 5*time.Second)

	require.NoError(t, mr.Set("lock:slot:1:x", "someone-else"))

	called := false
	err := l.WithSlotLock(context.Background(), "lock:slot:1:x", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)

	got, _ := mr.Get("lock:slot:1:x")
	assert.Equal(t, "someone-else", got, "foreign token must not be released")
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), mr.Addr(), "", "")
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "127.0.0.1:1", "", "")
	assert.Error(t, err)
}
