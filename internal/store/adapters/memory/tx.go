package memory

import (
	"context"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
)

type memoryTx struct {
	db       *DB
	conn     *memoryConnection
	readOnly bool
	// undo se aplica en orden inverso en Rollback; requiere db.mu tomado.
	undo []func()
	done bool
}

func (t *memoryTx) Accounts() repository.AccountRepository   { return &accountRepo{tx: t} }
func (t *memoryTx) Notes() repository.NoteRepository         { return &noteRepo{tx: t} }
func (t *memoryTx) Comments() repository.CommentRepository   { return &commentRepo{tx: t} }
func (t *memoryTx) Reactions() repository.ReactionRepository { return &reactionRepo{tx: t} }
func (t *memoryTx) Reports() repository.ReportRepository     { return &reportRepo{tx: t} }
func (t *memoryTx) Blocks() repository.BlockRepository       { return &blockRepo{tx: t} }

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	if err := t.db.runHook(ctx, "tx.commit"); err != nil {
		_ = t.Rollback(ctx)
		return err
	}
	t.db.mu.Lock()
	t.undo = nil
	t.db.mu.Unlock()
	t.finish()
	t.db.stats.commits.Add(1)
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return errTxDone
	}
	t.db.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.db.mu.Unlock()
	t.finish()
	t.db.stats.rollbacks.Add(1)
	return nil
}

func (t *memoryTx) finish() {
	t.done = true
	t.conn.active.Add(-1)
}

// enter valida el estado de la transacción y corre el hook de op.
// No toma db.mu: el hook puede bloquear.
func (t *memoryTx) enter(ctx context.Context, op string, write bool) error {
	if t.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if write && t.readOnly {
		return repository.ErrReadOnly
	}
	if err := t.db.runHook(ctx, op); err != nil {
		return err
	}
	return ctx.Err()
}

// onUndo registra la reversa de una escritura; requiere db.mu tomado.
func (t *memoryTx) onUndo(fn func()) {
	t.undo = append(t.undo, fn)
}
