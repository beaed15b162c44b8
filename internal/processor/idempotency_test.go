package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/dv-referral-ledger/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	a, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, a
}

func TestIdempotencyService_AcquireProcessingLock(t *testing.T) {
	mr, a := newTestRedis(t)
	service := NewIdempotencyService(a, DefaultIdempotencyConfig())
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "42", pc.EventID)
	assert.Zero(t, pc.RetryCount)
	assert.False(t, pc.IsRetry)
	assert.True(t, mr.Exists("reward:lock:42"))

	t.Run("second consumer is locked out", func(t *testing.T) {
		other, err := service.AcquireProcessingLock(ctx, "42")
		assert.ErrorIs(t, err, ErrLockAcquireFailed)
		assert.Nil(t, other)
	})

	t.Run("lock expires", func(t *testing.T) {
		mr.FastForward(31 * time.Second)
		again, err := service.AcquireProcessingLock(ctx, "42")
		require.NoError(t, err)
		require.NoError(t, service.ReleaseLock(ctx, again))
		assert.False(t, mr.Exists("reward:lock:42"))
	})
}

func TestIdempotencyService_MarkSuccess(t *testing.T) {
	mr, a := newTestRedis(t)
	service := NewIdempotencyService(a, DefaultIdempotencyConfig())
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "7")
	require.NoError(t, err)
	require.NoError(t, service.MarkFailure(ctx, pc, errors.New("db down")))

	pc, err = service.AcquireProcessingLock(ctx, "7")
	require.NoError(t, err)
	assert.True(t, pc.IsRetry)
	require.NoError(t, service.MarkSuccess(ctx, pc))

	assert.True(t, mr.Exists("reward:processed:7"))
	assert.False(t, mr.Exists("reward:lock:7"))
	assert.False(t, mr.Exists("reward:retry:7"))

	processed, err := service.IsProcessed(ctx, "7")
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = service.AcquireProcessingLock(ctx, "7")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestIdempotencyService_MaxRetries(t *testing.T) {
	_, a := newTestRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.MaxRetries = 2
	service := NewIdempotencyService(a, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		pc, err := service.AcquireProcessingLock(ctx, "9")
		require.NoError(t, err)
		assert.Equal(t, i, pc.RetryCount)
		require.NoError(t, service.MarkFailure(ctx, pc, errors.New("boom")))
	}

	n, err := service.GetRetryCount(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = service.AcquireProcessingLock(ctx, "9")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestIdempotencyService_ReleaseLockIsIdempotent(t *testing.T) {
	_, a := newTestRedis(t)
	service := NewIdempotencyService(a, DefaultIdempotencyConfig())
	ctx := context.Background()

	assert.NoError(t, service.ReleaseLock(ctx, nil))

	pc, err := service.AcquireProcessingLock(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, service.ReleaseLock(ctx, pc))
	assert.NoError(t, service.ReleaseLock(ctx, pc))
}

func TestIdempotencyService_GetRetryCountMissing(t *testing.T) {
	_, a := newTestRedis(t)
	service := NewIdempotencyService(a, DefaultIdempotencyConfig())

	n, err := service.GetRetryCount(context.Background(), "none")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIdempotencyService_RerunGetsFreshServer(t *testing.T) {
	ctx := context.Background()

	_, first := newTestRedis(t)
	_, err := NewIdempotencyService(first, DefaultIdempotencyConfig()).AcquireProcessingLock(ctx, "7")
	require.NoError(t, err)

	// Same test name, new server: the lock from the first server must not leak.
	mr, second := newTestRedis(t)
	pc, err := NewIdempotencyService(second, DefaultIdempotencyConfig()).AcquireProcessingLock(ctx, "7")
	require.NoError(t, err)
	assert.False(t, pc.IsRetry)
	assert.True(t, mr.Exists("reward:lock:7"))
}
