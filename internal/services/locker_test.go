package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_LocalSerialization(t *testing.T) {
	locker := NewKeyedLocker(nil, time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		running int
		peak    int
		mu      sync.Mutex
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "pi_1")
			require.NoError(t, err)
			defer unlock()

			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Empty(t, locker.locks)
}

func TestKeyedLocker_IndependentKeys(t *testing.T) {
	locker := NewKeyedLocker(nil, time.Second)
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "pi_a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "pi_b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedLocker_ContextCanceledWhileWaiting(t *testing.T) {
	locker := NewKeyedLocker(nil, time.Second)

	unlock, err := locker.Lock(context.Background(), "pi_1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "pi_1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Empty(t, locker.locks)
}

func TestKeyedLocker_Redis(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		locker := NewKeyedLocker(db, 30*time.Second)
		locker.token = func() string { return "token-1" }

		mock.ExpectSetNX("lock:charge-intent:pi_1", "token-1", 30*time.Second).SetVal(true)
		mock.ExpectEval(releaseScript, []string{"lock:charge-intent:pi_1"}, "token-1").SetVal(int64(1))

		unlock, err := locker.Lock(ctx, "pi_1")
		require.NoError(t, err)
		unlock()

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("waits for another replica", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		locker := NewKeyedLocker(db, 30*time.Second)
		locker.token = func() string { return "token-2" }
		locker.retry = time.Millisecond

		mock.ExpectSetNX("lock:charge-intent:pi_1", "token-2", 30*time.Second).SetVal(false)
		mock.ExpectSetNX("lock:charge-intent:pi_1", "token-2", 30*time.Second).SetVal(true)
		mock.ExpectEval(releaseScript, []string{"lock:charge-intent:pi_1"}, "token-2").SetVal(int64(1))

		unlock, err := locker.Lock(ctx, "pi_1")
		require.NoError(t, err)
		unlock()

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		locker := NewKeyedLocker(db, 30*time.Second)
		locker.token = func() string { return "token-3" }
		locker.retry = time.Second

		mock.ExpectSetNX("lock:charge-intent:pi_1", "token-3", 30*time.Second).SetVal(false)

		ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := locker.Lock(ctx, "pi_1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, locker.locks)
	})

	t.Run("redis outage degrades to local lock", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		locker := NewKeyedLocker(db, 30*time.Second)
		locker.token = func() string { return "token-4" }

		mock.ExpectSetNX("lock:charge-intent:pi_1", "token-4", 30*time.Second).SetErr(errors.New("connection refused"))

		unlock, err := locker.Lock(ctx, "pi_1")
		require.NoError(t, err)
		unlock()

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
