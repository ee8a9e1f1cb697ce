package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mapping/internal/app"
	"github.com/dropDatabas3/mapping/internal/config"
	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/store"
	"github.com/dropDatabas3/mapping/internal/store/adapters/memory"
	"github.com/dropDatabas3/mapping/internal/store/routing"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	name := t.Name()
	t.Cleanup(func() { memory.Drop(name) })
	cfg.Storage.Primary.Driver = "memory"
	cfg.Storage.Primary.DSN = name
	cfg.Storage.Replica = cfg.Storage.Primary
	cfg.Blob.Kind = "memory"
	cfg.Scheduler.LockKind = "memory"
	cfg.Ops.Addr = "127.0.0.1:0"
	return cfg
}

func TestBuild_WithdrawThenScheduledPurge(t *testing.T) {
	ctx := context.Background()
	clk := testclock.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	c, err := app.Build(ctx, testConfig(t), app.Options{Clock: clk, Version: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.Equal(t, c.Config.Scheduler.LockTTL/3, c.Scheduler.RenewEvery)

	var id int64
	require.NoError(t, c.DataSource.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		a, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "gone"})
		if err != nil {
			return err
		}
		id = a.ID
		return nil
	}))
	require.NoError(t, c.Accounts.Withdraw(ctx, id))

	// Dentro del período de gracia no se borra.
	require.NoError(t, c.Scheduler.RunNow(ctx))
	acc, err := c.Accounts.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, acc.Deleted)

	clk.Advance(91 * 24 * time.Hour)
	require.NoError(t, c.Scheduler.RunNow(ctx))
	_, err = c.Accounts.Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBuild_RegistersMetrics(t *testing.T) {
	c, err := app.Build(context.Background(), testConfig(t), app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Purger.Run(context.Background())
	require.NoError(t, err)

	mfs, err := c.Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["purge_runs_total"], "got %v", names)
	assert.True(t, names["storage_pools_open"], "got %v", names)
}

func TestBuild_RejectsBadScheduler(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.DailyAt = "25:99"
	_, err := app.Build(context.Background(), cfg, app.Options{})
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Scheduler.Location = "Mars/Olympus"
	_, err = app.Build(context.Background(), cfg, app.Options{})
	require.Error(t, err)
}

func TestBuild_UnknownBlobKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Blob.Kind = "ftp"
	_, err := app.Build(context.Background(), cfg, app.Options{})
	require.ErrorContains(t, err, "unknown blob kind")
}

func TestBuild_StrictRoutingOnlyInDev(t *testing.T) {
	t.Cleanup(func() { routing.SetStrict(false) })

	cfg := testConfig(t)
	cfg.App.Env = "dev"
	c, err := app.Build(context.Background(), cfg, app.Options{})
	require.NoError(t, err)
	_ = c.Close()
	require.True(t, routing.Strict())

	_, end := routing.Begin(context.Background(), routing.ReadOnly)
	require.NoError(t, end())
	assert.Panics(t, func() { _ = end() })

	cfg = testConfig(t)
	cfg.App.Env = "prod"
	c, err = app.Build(context.Background(), cfg, app.Options{})
	require.NoError(t, err)
	_ = c.Close()
	assert.False(t, routing.Strict())
}
