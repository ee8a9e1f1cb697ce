package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mapping/internal/account"
	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/store"
	"github.com/dropDatabas3/mapping/internal/store/adapters/memory"
)

func setup(t *testing.T) (*account.Service, *store.DataSource, *memory.DB, *testclock.Clock) {
	t.Helper()
	name := t.Name()
	t.Cleanup(func() { memory.Drop(name) })
	cfg := store.AdapterConfig{Name: "memory", DSN: name}
	pools := store.NewPoolSet(cfg, cfg, store.PoolOptions{})
	t.Cleanup(func() { _ = pools.Close() })

	ds := store.NewDataSource(pools)
	clk := testclock.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return account.NewService(ds, clk), ds, memory.Open(name), clk
}

func create(t *testing.T, ds *store.DataSource, profile string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, ds.Write(context.Background(), func(ctx context.Context, tx store.Tx) error {
		a, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "n", ProfileImage: profile})
		if err != nil {
			return err
		}
		id = a.ID
		return nil
	}))
	return id
}

func TestWithdraw(t *testing.T) {
	svc, ds, _, clk := setup(t)
	ctx := context.Background()
	id := create(t, ds, "profile/1.jpg")

	require.NoError(t, svc.Withdraw(ctx, id))

	acc, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, acc.Deleted)
	require.NotNil(t, acc.DeletedAt)
	assert.True(t, acc.DeletedAt.Equal(clk.Now()))
	assert.Equal(t, "profile/1.jpg", acc.ProfileImage)
}

func TestWithdraw_Twice(t *testing.T) {
	svc, ds, _, _ := setup(t)
	ctx := context.Background()
	id := create(t, ds, "")

	require.NoError(t, svc.Withdraw(ctx, id))
	require.ErrorIs(t, svc.Withdraw(ctx, id), account.ErrAlreadyDeleted)
}

func TestWithdraw_NotFound(t *testing.T) {
	svc, _, _, _ := setup(t)
	require.ErrorIs(t, svc.Withdraw(context.Background(), 404), repository.ErrNotFound)
}

func TestGet_UsesReadOnlyUnit(t *testing.T) {
	svc, ds, db, _ := setup(t)
	id := create(t, ds, "")
	before := db.Stats().ReadOnlyBegins

	_, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, before+1, db.Stats().ReadOnlyBegins)

	_, err = svc.Get(context.Background(), id+100)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
