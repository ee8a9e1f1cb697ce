package pg_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/store"
	_ "github.com/dropDatabas3/mapping/internal/store/adapters/pg"
	"github.com/dropDatabas3/mapping/internal/store/routing"
)

// setupPostgres levanta PostgreSQL con testcontainers y aplica migraciones.
func setupPostgres(t *testing.T) store.AdapterConfig {
	t.Helper()
	if testing.Short() || os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("integration test: set TEST_INTEGRATION=1 and run without -short")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("mapping_test"),
		postgres.WithUsername("mapping"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := store.AdapterConfig{Name: "postgres", DSN: dsn, MaxOpenConns: 4}
	require.NoError(t, store.Migrate(cfg, store.MigrateUp))
	return cfg
}

func TestPostgresAdapterRegistered(t *testing.T) {
	adapter, ok := store.GetAdapter("postgres")
	require.True(t, ok)
	assert.Equal(t, "postgres", adapter.Name())

	_, err := adapter.Connect(context.Background(), store.AdapterConfig{})
	assert.Error(t, err, "connect without DSN must fail")
}

func TestPostgresReadOnlyAndForeignKeys(t *testing.T) {
	cfg := setupPostgres(t)
	ctx := context.Background()

	pools := store.NewPoolSet(cfg, cfg, store.PoolOptions{})
	t.Cleanup(func() { _ = pools.Close() })
	ds := store.NewDataSource(pools)

	var owner, other *repository.Account
	var note *repository.Note
	err := ds.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if owner, err = tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "owner", ProfileImage: "p.png"}); err != nil {
			return err
		}
		if other, err = tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "other"}); err != nil {
			return err
		}
		if note, err = tx.Notes().Create(ctx, repository.CreateNoteInput{OwnerID: owner.ID, ImageKeys: []string{"a.png", "b.png"}}); err != nil {
			return err
		}
		_, err = tx.Reports().Create(ctx, repository.Report{Subject: repository.SubjectNote, SubjectID: note.ID, ReporterID: other.ID})
		return err
	})
	require.NoError(t, err)

	// Escritura en unidad read-only: el servidor la rechaza.
	err = ds.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "nope"})
		return err
	})
	assert.ErrorIs(t, err, repository.ErrReadOnly)
	tag, ok := store.PoolOf(err)
	require.True(t, ok)
	assert.Equal(t, routing.Replica, tag)

	// Borrar la nota con dependientes viola las foreign keys.
	err = ds.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Notes().Delete(ctx, note.ID)
		return err
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = ds.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		keys, err := tx.Notes().ListImageKeys(ctx, note.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, []string{"a.png", "b.png"}, keys)
		if _, err := tx.Reports().DeleteBySubject(ctx, repository.SubjectNote, note.ID); err != nil {
			return err
		}
		if _, err := tx.Notes().DeleteImages(ctx, note.ID, keys); err != nil {
			return err
		}
		n, err := tx.Notes().Delete(ctx, note.ID)
		assert.Equal(t, int64(1), n)
		if err != nil {
			return err
		}
		n, err = tx.Notes().Delete(ctx, note.ID)
		assert.Zero(t, n)
		return err
	})
	require.NoError(t, err)

	at := time.Now().Add(-100 * 24 * time.Hour).UTC()
	err = ds.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().MarkDeleted(ctx, owner.ID, at)
	})
	require.NoError(t, err)

	err = ds.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		found, err := tx.Accounts().FindPurgeable(ctx, time.Now().Add(-90*24*time.Hour), 0, 0)
		if err != nil {
			return err
		}
		require.Len(t, found, 1)
		assert.Equal(t, owner.ID, found[0].ID)
		refs, err := tx.Accounts().CountReferencing(ctx, owner.ID)
		assert.Zero(t, refs)
		return err
	})
	require.NoError(t, err)
}
