package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/rent-reminders/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "test:", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

func newTestIdempotency(t *testing.T, maxRetries int) (*miniredis.Miniredis, *IdempotencyService) {
	mr, adapter := newTestRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.MaxRetries = maxRetries
	return mr, NewIdempotencyService(adapter, cfg)
}

func TestIdempotency_Acquire(t *testing.T) {
	mr, svc := newTestIdempotency(t, 3)
	ctx := context.Background()

	a, err := svc.Acquire(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", a.ReminderID)
	assert.Equal(t, 0, a.RetryCount)
	assert.False(t, a.IsRetry())
	assert.True(t, mr.Exists("test:dispatch:lock:r-1"))

	_, err = svc.Acquire(ctx, "r-1")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)

	require.NoError(t, svc.Release(ctx, a))
	assert.False(t, mr.Exists("test:dispatch:lock:r-1"))
	require.NoError(t, svc.Release(ctx, a), "second release is a no-op")

	_, err = svc.Acquire(ctx, "r-1")
	assert.NoError(t, err)
}

func TestIdempotency_ConcurrentAcquire(t *testing.T) {
	_, svc := newTestIdempotency(t, 3)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Acquire(context.Background(), "r-race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestIdempotency_MarkDelivered(t *testing.T) {
	mr, svc := newTestIdempotency(t, 3)
	ctx := context.Background()

	a, err := svc.Acquire(ctx, "r-2")
	require.NoError(t, err)
	require.NoError(t, svc.MarkRetry(ctx, a, assert.AnError))

	a, err = svc.Acquire(ctx, "r-2")
	require.NoError(t, err)
	assert.True(t, a.IsRetry())
	require.NoError(t, svc.MarkDelivered(ctx, a))

	assert.True(t, mr.Exists("test:dispatch:delivered:r-2"))
	assert.False(t, mr.Exists("test:dispatch:retry:r-2"))
	assert.False(t, mr.Exists("test:dispatch:lock:r-2"))
	ttl := mr.TTL("test:dispatch:delivered:r-2")
	assert.Equal(t, 72*time.Hour, ttl)

	_, err = svc.Acquire(ctx, "r-2")
	assert.ErrorIs(t, err, ErrAlreadyDelivered)
}

func TestIdempotency_RetriesExhausted(t *testing.T) {
	_, svc := newTestIdempotency(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		a, err := svc.Acquire(ctx, "r-3")
		require.NoError(t, err)
		assert.Equal(t, i, a.RetryCount)
		require.NoError(t, svc.MarkRetry(ctx, a, assert.AnError))
	}

	n, err := svc.RetryCount(ctx, "r-3")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.Acquire(ctx, "r-3")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestIdempotency_RetryCount(t *testing.T) {
	mr, svc := newTestIdempotency(t, 3)
	ctx := context.Background()

	n, err := svc.RetryCount(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, mr.Set("test:dispatch:retry:bad", "x"))
	_, err = svc.RetryCount(ctx, "bad")
	assert.Error(t, err)
}
