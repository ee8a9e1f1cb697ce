package runlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("test")
	defer l.Close()

	lease, err := l.Acquire(ctx, "purge", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "purge", lease.Name())
	assert.NotEmpty(t, lease.Token())

	_, err = l.Acquire(ctx, "purge", time.Minute)
	require.ErrorIs(t, err, ErrHeld)

	// otro nombre no interfiere
	other, err := l.Acquire(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	require.ErrorIs(t, lease.Release(ctx), ErrNotHeld)

	again, err := l.Acquire(ctx, "purge", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, lease.Token(), again.Token())
}

func TestMemory_StaleLockExpires(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("")

	stale, err := l.Acquire(ctx, "purge", 20*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := l.Acquire(ctx, "purge", time.Minute)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	// el holder viejo no puede liberar el lock del nuevo
	require.ErrorIs(t, stale.Release(ctx), ErrNotHeld)
	_, err = l.Acquire(ctx, "purge", time.Minute)
	require.ErrorIs(t, err, ErrHeld)
}

func TestMemory_ExtendKeepsLockAlive(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("")

	lease, err := l.Acquire(ctx, "purge", 30*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, lease.Extend(ctx, time.Minute))

	time.Sleep(60 * time.Millisecond)
	_, err = l.Acquire(ctx, "purge", time.Minute)
	require.ErrorIs(t, err, ErrHeld)

	require.Error(t, lease.Extend(ctx, 0))
	require.NoError(t, lease.Release(ctx))
	require.ErrorIs(t, lease.Extend(ctx, time.Minute), ErrNotHeld)
}

func TestMemory_ExtendAfterExpiryIsNotHeld(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("")

	stale, err := l.Acquire(ctx, "purge", 20*time.Millisecond)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := l.Acquire(ctx, "purge", time.Minute)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, stale.Extend(ctx, time.Minute), ErrNotHeld)
}

func TestMemory_SingleWinnerUnderContention(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(ctx, "purge", time.Minute); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemory_InvalidTTL(t *testing.T) {
	_, err := NewMemory("").Acquire(context.Background(), "x", 0)
	require.Error(t, err)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "etcd"})
	require.Error(t, err)
}
