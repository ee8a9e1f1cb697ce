package blob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleter_Results(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put("a")
	d := NewDeleter(m, DeleterOptions{Attempts: 1})

	res, err := d.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, Deleted, res)

	res, err = d.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, AlreadyGone, res)
	assert.Equal(t, "not_found", res.String())
}

func TestDeleter_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewMemory()
	m.Put("k")
	m.FailTimes("k", errors.New("503 slow down"), 2)

	d := NewDeleter(m, DeleterOptions{Attempts: 3, Delay: time.Second, Clock: clk})

	type out struct {
		res Result
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := d.Delete(ctx, "k")
		done <- out{res, err}
	}()

	require.NoError(t, clk.WaitAdvance(time.Second, 5*time.Second, 1))
	require.NoError(t, clk.WaitAdvance(2*time.Second, 5*time.Second, 1))

	select {
	case o := <-done:
		require.NoError(t, o.err)
		assert.Equal(t, Deleted, o.res)
	case <-time.After(5 * time.Second):
		t.Fatal("delete did not finish")
	}
	assert.Len(t, m.Calls(), 3)
	assert.False(t, m.Has("k"))
}

func TestDeleter_GivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	boom := errors.New("connection reset")
	m := NewMemory()
	m.FailOn("k", boom)

	d := NewDeleter(m, DeleterOptions{Attempts: 2, Delay: time.Second, Clock: clk})

	done := make(chan error, 1)
	go func() {
		_, err := d.Delete(ctx, "k")
		done <- err
	}()
	require.NoError(t, clk.WaitAdvance(time.Second, 5*time.Second, 1))

	select {
	case err := <-done:
		require.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("delete did not finish")
	}
	assert.Len(t, m.Calls(), 2)
}

func TestDeleter_NotFoundIsNotRetried(t *testing.T) {
	m := NewMemory()
	d := NewDeleter(m, DeleterOptions{Attempts: 5})

	res, err := d.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, AlreadyGone, res)
	assert.Len(t, m.Calls(), 1)
}

func TestDeleter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	m.Put("k")
	d := NewDeleter(m, DeleterOptions{Attempts: 3})

	_, err := d.Delete(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, m.Has("k"))
}
