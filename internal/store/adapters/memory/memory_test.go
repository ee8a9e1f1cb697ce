package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/store"
	"github.com/dropDatabas3/mapping/internal/store/adapters/memory"
)

func connect(t *testing.T, dsn string) store.AdapterConnection {
	t.Helper()
	t.Cleanup(func() { memory.Drop(dsn) })
	conn, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "memory", DSN: dsn})
	require.NoError(t, err)
	return conn
}

func begin(t *testing.T, conn store.AdapterConnection, readOnly bool) store.Tx {
	t.Helper()
	tx, err := conn.Begin(context.Background(), store.TxOptions{ReadOnly: readOnly})
	require.NoError(t, err)
	return tx
}

func TestMemoryAdapterRegistered(t *testing.T) {
	adapter, ok := store.GetAdapter("memory")
	require.True(t, ok)
	assert.Equal(t, "memory", adapter.Name())
}

func TestReadOnlyTxRejectsWrites(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, t.Name())

	tx := begin(t, conn, true)
	_, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "ana"})
	assert.ErrorIs(t, err, repository.ErrReadOnly)
	_, err = tx.Blocks().DeleteByAccount(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrReadOnly)

	_, err = tx.Accounts().FindPurgeable(ctx, time.Now(), 0, 10)
	assert.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
}

func TestRollbackUndoesWrites(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, t.Name())
	db := memory.Open(t.Name())

	tx := begin(t, conn, false)
	a, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "ana"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx = begin(t, conn, false)
	_, err = tx.Notes().Create(ctx, repository.CreateNoteInput{OwnerID: a.ID, ImageKeys: []string{"k1", "k2"}})
	require.NoError(t, err)
	require.NoError(t, tx.Accounts().MarkDeleted(ctx, a.ID, time.Now()))
	assert.Equal(t, 2, db.Count("note_image"))
	require.NoError(t, tx.Rollback(ctx))

	assert.Equal(t, 0, db.Count("note"))
	assert.Equal(t, 0, db.Count("note_image"))
	tx = begin(t, conn, true)
	got, err := tx.Accounts().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.Deleted)
	assert.Nil(t, got.DeletedAt)
	require.NoError(t, tx.Rollback(ctx))

	st := db.Stats()
	assert.Equal(t, int64(1), st.Commits)
	assert.Equal(t, int64(2), st.Rollbacks)
	assert.Equal(t, int64(1), st.ReadOnlyBegins)
}

func TestForeignKeysBlockOutOfOrderDeletes(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, t.Name())
	tx := begin(t, conn, false)
	defer func() { _ = tx.Rollback(ctx) }()

	owner, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "owner"})
	require.NoError(t, err)
	other, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "other"})
	require.NoError(t, err)
	note, err := tx.Notes().Create(ctx, repository.CreateNoteInput{OwnerID: owner.ID})
	require.NoError(t, err)
	c, err := tx.Comments().Create(ctx, repository.CreateCommentInput{NoteID: note.ID, OwnerID: other.ID})
	require.NoError(t, err)
	_, err = tx.Reactions().Create(ctx, repository.Reaction{Subject: repository.SubjectComment, SubjectID: c.ID, OwnerID: owner.ID, Kind: repository.ReactionLike})
	require.NoError(t, err)

	_, err = tx.Comments().Delete(ctx, c.ID)
	assert.ErrorIs(t, err, repository.ErrConflict)
	_, err = tx.Notes().Delete(ctx, note.ID)
	assert.ErrorIs(t, err, repository.ErrConflict)
	_, err = tx.Accounts().Delete(ctx, owner.ID)
	assert.ErrorIs(t, err, repository.ErrConflict)

	n, err := tx.Reactions().DeleteBySubject(ctx, repository.SubjectComment, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = tx.Comments().Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Borrar lo que ya no está es no-op.
	n, err = tx.Comments().Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReportIsUniquePerSubjectAndReporter(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, t.Name())
	tx := begin(t, conn, false)
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "a"})
	require.NoError(t, err)
	note, err := tx.Notes().Create(ctx, repository.CreateNoteInput{OwnerID: a.ID})
	require.NoError(t, err)

	r := repository.Report{Subject: repository.SubjectNote, SubjectID: note.ID, ReporterID: a.ID}
	_, err = tx.Reports().Create(ctx, r)
	require.NoError(t, err)
	_, err = tx.Reports().Create(ctx, r)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestFindPurgeablePagination(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, t.Name())
	tx := begin(t, conn, false)
	defer func() { _ = tx.Rollback(ctx) }()

	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 5; i++ {
		a, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "x"})
		require.NoError(t, err)
		require.NoError(t, tx.Accounts().MarkDeleted(ctx, a.ID, cutoff.Add(-time.Hour)))
		ids = append(ids, a.ID)
	}
	late, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "late"})
	require.NoError(t, err)
	require.NoError(t, tx.Accounts().MarkDeleted(ctx, late.ID, cutoff.Add(time.Second)))
	_, err = tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "alive"})
	require.NoError(t, err)

	page, err := tx.Accounts().FindPurgeable(ctx, cutoff, 0, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, ids[0], page[0].ID)

	page, err = tx.Accounts().FindPurgeable(ctx, cutoff, page[2].ID, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[1].ID)
}

func TestSharedDSNSharesData(t *testing.T) {
	ctx := context.Background()
	primary := connect(t, t.Name())
	replica := connect(t, t.Name())

	tx := begin(t, primary, false)
	a, err := tx.Accounts().Create(ctx, repository.CreateAccountInput{Nickname: "ana"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx = begin(t, replica, true)
	_, err = tx.Accounts().Get(ctx, a.ID)
	assert.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
}

func TestHooksAndUnavailable(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, t.Name())
	db := memory.Open(t.Name())

	boom := errors.New("boom")
	db.FailOn("blocks.delete_by_account", boom)
	tx := begin(t, conn, false)
	_, err := tx.Blocks().DeleteByAccount(ctx, 1)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, tx.Rollback(ctx))
	db.ClearHooks()

	db.SetUnavailable(true)
	assert.ErrorIs(t, conn.Ping(ctx), memory.ErrUnavailable)
	_, err = conn.Begin(ctx, store.TxOptions{})
	assert.ErrorIs(t, err, memory.ErrUnavailable)
	db.SetUnavailable(false)
	assert.NoError(t, conn.Ping(ctx))
}

func TestCanceledContext(t *testing.T) {
	conn := connect(t, t.Name())
	tx := begin(t, conn, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tx.Accounts().Get(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, tx.Rollback(context.Background()))
}
