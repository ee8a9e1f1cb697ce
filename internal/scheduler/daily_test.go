package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mapping/internal/runlock"
)

func TestNextRun(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	d := &Daily{Hour: 0, Minute: 0, Location: seoul}

	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 5, 10, 23, 59, 0, 0, seoul), time.Date(2024, 5, 11, 0, 0, 0, 0, seoul)},
		{time.Date(2024, 5, 10, 0, 0, 0, 0, seoul), time.Date(2024, 5, 11, 0, 0, 0, 0, seoul)},
		{time.Date(2024, 5, 10, 0, 0, 1, 0, seoul), time.Date(2024, 5, 11, 0, 0, 0, 0, seoul)},
		// 15:30 UTC = 00:30 KST del día siguiente
		{time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC), time.Date(2024, 5, 12, 0, 0, 0, 0, seoul)},
		{time.Date(2024, 12, 31, 12, 0, 0, 0, seoul), time.Date(2025, 1, 1, 0, 0, 0, 0, seoul)},
	}
	for _, tc := range cases {
		got := d.NextRun(tc.now)
		assert.True(t, got.Equal(tc.want), "now=%s got=%s want=%s", tc.now, got, tc.want)
	}

	d = &Daily{Hour: 3, Minute: 15, Location: time.UTC}
	got := d.NextRun(time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 10, 3, 15, 0, 0, time.UTC), got)
}

func TestStart_FiresDaily(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC))
	runs := make(chan time.Time, 4)
	d := &Daily{
		Name:     "purge",
		Location: time.UTC,
		Clock:    clk,
		Locker:   runlock.NewMemory(""),
		LockTTL:  time.Hour,
		Job: func(ctx context.Context) error {
			runs <- clk.Now()
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	require.NoError(t, clk.WaitAdvance(time.Hour, 5*time.Second, 1))
	select {
	case at := <-runs:
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), at)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}

	require.NoError(t, clk.WaitAdvance(24*time.Hour, 5*time.Second, 1))
	select {
	case at := <-runs:
		assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), at)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run the second day")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStart_JobFailureKeepsLooping(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var calls atomic.Int32
	d := &Daily{
		Name:    "purge",
		Clock:   clk,
		Locker:  runlock.NewMemory(""),
		LockTTL: time.Hour,
		Job: func(context.Context) error {
			calls.Add(1)
			return errors.New("boom")
		},
		Location: time.UTC,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Start(ctx) }()

	require.NoError(t, clk.WaitAdvance(24*time.Hour, 5*time.Second, 1))
	require.NoError(t, clk.WaitAdvance(24*time.Hour, 5*time.Second, 1))
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestRunNow_SkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	locker := runlock.NewMemory("")
	held, err := locker.Acquire(ctx, "purge", time.Hour)
	require.NoError(t, err)

	var ran bool
	d := &Daily{Name: "purge", Locker: locker, LockTTL: time.Hour, Job: func(context.Context) error {
		ran = true
		return nil
	}}

	require.ErrorIs(t, d.RunNow(ctx), runlock.ErrHeld)
	assert.False(t, ran)

	require.NoError(t, held.Release(ctx))
	require.NoError(t, d.RunNow(ctx))
	assert.True(t, ran)

	// el lock se libera al terminar
	lease, err := locker.Acquire(ctx, "purge", time.Hour)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
}

func TestRunNow_ReleasesLockOnFailure(t *testing.T) {
	ctx := context.Background()
	locker := runlock.NewMemory("")
	boom := errors.New("boom")
	d := &Daily{Name: "purge", LockName: "purge-lock", Locker: locker, LockTTL: time.Hour,
		Job: func(context.Context) error { return boom }}

	require.ErrorIs(t, d.RunNow(ctx), boom)
	lease, err := locker.Acquire(ctx, "purge-lock", time.Hour)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
}

func TestStart_RequiresJobAndLocker(t *testing.T) {
	require.Error(t, (&Daily{}).Start(context.Background()))
}

// renewLocker envuelve un Locker y cuenta o hace fallar las renovaciones.
type renewLocker struct {
	runlock.Locker
	extends   atomic.Int32
	extendErr error
}

func (l *renewLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (runlock.Lease, error) {
	lease, err := l.Locker.Acquire(ctx, name, ttl)
	if err != nil {
		return nil, err
	}
	return &renewLease{Lease: lease, l: l}, nil
}

type renewLease struct {
	runlock.Lease
	l *renewLocker
}

func (r *renewLease) Extend(ctx context.Context, ttl time.Duration) error {
	r.l.extends.Add(1)
	if r.l.extendErr != nil {
		return r.l.extendErr
	}
	return r.Lease.Extend(ctx, ttl)
}

func TestRunNow_RenewsLeaseWhileJobRuns(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	locker := &renewLocker{Locker: runlock.NewMemory("")}
	started, finish := make(chan struct{}), make(chan struct{})
	d := &Daily{
		Name: "purge", Clock: clk, Locker: locker,
		LockTTL: time.Hour, RenewEvery: 20 * time.Minute,
		Job: func(ctx context.Context) error {
			close(started)
			<-finish
			return ctx.Err()
		},
	}

	done := make(chan error, 1)
	go func() { done <- d.RunNow(context.Background()) }()
	<-started

	require.NoError(t, clk.WaitAdvance(20*time.Minute, 5*time.Second, 1))
	require.Eventually(t, func() bool { return locker.extends.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, clk.WaitAdvance(20*time.Minute, 5*time.Second, 1))
	require.Eventually(t, func() bool { return locker.extends.Load() == 2 }, 5*time.Second, 5*time.Millisecond)

	close(finish)
	require.NoError(t, <-done)

	// el lease se liberó al terminar
	lease, err := locker.Locker.Acquire(context.Background(), "purge", time.Hour)
	require.NoError(t, err)
	require.NoError(t, lease.Release(context.Background()))
}

func TestRunNow_LostLeaseCancelsJob(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	locker := &renewLocker{Locker: runlock.NewMemory(""), extendErr: runlock.ErrNotHeld}
	started := make(chan struct{})
	d := &Daily{
		Name: "purge", Clock: clk, Locker: locker,
		LockTTL: time.Hour, RenewEvery: 20 * time.Minute,
		Job: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}

	done := make(chan error, 1)
	go func() { done <- d.RunNow(context.Background()) }()
	<-started

	require.NoError(t, clk.WaitAdvance(20*time.Minute, 5*time.Second, 1))
	select {
	case err := <-done:
		require.ErrorIs(t, err, runlock.ErrNotHeld)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not canceled after losing the lock")
	}
}
