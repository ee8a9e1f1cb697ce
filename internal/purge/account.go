package purge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/mapping/internal/blob"
	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/metrics"
	"github.com/dropDatabas3/mapping/internal/observability/logger"
	"github.com/dropDatabas3/mapping/internal/store"
)

// tally cuenta filas eliminadas por entidad dentro de una unidad de trabajo.
// Se suma al resultado solo si la unidad hace commit.
type tally map[string]int64

// accountRun es el progreso de la purga de una cuenta.
type accountRun struct {
	p        *Purger
	id       int64
	res      *AccountResult
	blobErrs []error
	log      *zap.Logger
}

func (p *Purger) purgeAccount(ctx context.Context, id int64, cutoff time.Time) AccountResult {
	start := p.opts.Clock.Now()
	res := AccountResult{AccountID: id, State: Eligible, Rows: map[string]int64{}}

	ctx, log := logger.Scoped(ctx, logger.AccountID(id))
	if p.opts.AccountTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.AccountTimeout)
		defer cancel()
	}

	r := &accountRun{p: p, id: id, res: &res, log: log}
	r.purge(ctx, cutoff)

	res.Duration = p.opts.Clock.Now().Sub(start)
	metrics.PurgeAccountsTotal.WithLabelValues(string(res.Outcome)).Inc()
	for entity, n := range res.Rows {
		metrics.PurgeRowsDeletedTotal.WithLabelValues(entity).Add(float64(n))
	}
	return res
}

func (r *accountRun) purge(ctx context.Context, cutoff time.Time) {
	acc, err := r.load(ctx, cutoff)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		r.res.State = Purged
		r.res.Outcome = OutcomeAlreadyPurged
		r.log.Debug("account already purged")
		return
	case errors.Is(err, ErrNotEligible):
		r.res.Outcome = OutcomeNotEligible
		r.res.Err = err
		r.log.Info("account no longer eligible, skipped")
		return
	case err != nil:
		r.fail(Eligible, "load account", err)
		return
	}

	r.enter(PurgingContent)
	if err := r.content(ctx); err != nil {
		r.failWith(err)
		return
	}

	r.enter(PurgingRelations)
	if err := r.relations(ctx); err != nil {
		r.failWith(err)
		return
	}

	r.enter(PurgingBlobs)
	if acc.ProfileImage != "" {
		r.deleteBlob(ctx, acc.ProfileImage)
		if err := ctx.Err(); err != nil {
			r.fail(PurgingBlobs, "profile image", err)
			return
		}
	}

	if len(r.blobErrs) > 0 {
		r.res.State = Failed
		r.res.FailedStep = PurgingBlobs
		r.res.Outcome = OutcomeBlobFailed
		r.res.Err = errors.Join(r.blobErrs...)
		r.log.Warn("account purge incomplete, blob deletions failed",
			logger.Int("failed_blobs", len(r.blobErrs)),
			zap.Int64("rows_deleted", r.res.RowsDeleted),
			logger.Err(r.res.Err),
		)
		return
	}

	t := tally{}
	err = r.write(ctx, t, func(ctx context.Context, tx store.Tx) error {
		n, err := tx.Accounts().Delete(ctx, r.id)
		t[entityAccount] += n
		return err
	})
	if err != nil {
		r.fail(Purged, "account row", err)
		return
	}

	r.res.State = Purged
	r.res.Outcome = OutcomePurged
	r.log.Info("account purged",
		zap.Int64("rows_deleted", r.res.RowsDeleted),
		logger.Int("blobs_deleted", r.res.BlobsDeleted),
		logger.Int("blobs_missing", r.res.BlobsMissing),
	)
}

// load relee la cuenta en primary: la replica puede estar atrasada y el
// estado pudo cambiar desde la selección.
func (r *accountRun) load(ctx context.Context, cutoff time.Time) (*repository.Account, error) {
	var acc *repository.Account
	err := r.p.units.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		acc, err = tx.Accounts().Get(ctx, r.id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !acc.Deleted || acc.DeletedAt == nil || acc.DeletedAt.After(cutoff) {
		return nil, ErrNotEligible
	}
	return acc, nil
}

// ─── PURGING_CONTENT ───

func (r *accountRun) content(ctx context.Context) error {
	var noteIDs []int64
	err := r.p.units.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		noteIDs, err = tx.Notes().ListIDsByOwner(ctx, r.id)
		return err
	})
	if err != nil {
		return r.stepErr(PurgingContent, "list notes", err)
	}
	for _, noteID := range noteIDs {
		if err := r.note(ctx, noteID); err != nil {
			return err
		}
	}

	// Comentarios propios que quedan están en notas de otras cuentas.
	var commentIDs []int64
	err = r.p.units.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		commentIDs, err = tx.Comments().ListIDsByOwner(ctx, r.id)
		return err
	})
	if err != nil {
		return r.stepErr(PurgingContent, "list comments", err)
	}
	for _, commentID := range commentIDs {
		t := tally{}
		err := r.write(ctx, t, func(ctx context.Context, tx store.Tx) error {
			return deleteComment(ctx, tx, commentID, t)
		})
		if err != nil {
			return r.stepErr(PurgingContent, fmt.Sprintf("comment %d", commentID), err)
		}
	}

	// Reacciones y reportes hechos por la cuenta sobre contenido ajeno.
	t := tally{}
	err = r.write(ctx, t, func(ctx context.Context, tx store.Tx) error {
		n, err := tx.Reactions().DeleteByOwner(ctx, r.id)
		if err != nil {
			return err
		}
		t[entityReaction] += n
		n, err = tx.Reports().DeleteByReporter(ctx, r.id)
		if err != nil {
			return err
		}
		t[entityReport] += n
		return nil
	})
	if err != nil {
		return r.stepErr(PurgingContent, "own reactions and reports", err)
	}
	return nil
}

// note purga una nota: blobs primero, después dependientes y fila. Si algún
// blob falla la nota queda con esas imágenes para la próxima corrida.
func (r *accountRun) note(ctx context.Context, noteID int64) error {
	op := fmt.Sprintf("note %d", noteID)

	var keys []string
	err := r.p.units.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		keys, err = tx.Notes().ListImageKeys(ctx, noteID)
		return err
	})
	if err != nil {
		return r.stepErr(PurgingContent, op, err)
	}

	gone := make([]string, 0, len(keys))
	for _, key := range keys {
		if r.deleteBlob(ctx, key) {
			gone = append(gone, key)
		}
	}
	if err := ctx.Err(); err != nil {
		return r.stepErr(PurgingContent, op, err)
	}
	complete := len(gone) == len(keys)

	t := tally{}
	err = r.write(ctx, t, func(ctx context.Context, tx store.Tx) error {
		if err := clearSubject(ctx, tx, repository.SubjectNote, noteID, t); err != nil {
			return err
		}
		commentIDs, err := tx.Comments().ListIDsByNote(ctx, noteID)
		if err != nil {
			return err
		}
		for _, id := range commentIDs {
			if err := deleteComment(ctx, tx, id, t); err != nil {
				return err
			}
		}
		n, err := tx.Notes().DeleteImages(ctx, noteID, gone)
		if err != nil {
			return err
		}
		t[entityNoteImage] += n
		if !complete {
			return nil
		}
		n, err = tx.Notes().Delete(ctx, noteID)
		if err != nil {
			return err
		}
		t[entityNote] += n
		return nil
	})
	if err != nil {
		return r.stepErr(PurgingContent, op, err)
	}
	if !complete {
		r.log.Warn("note kept, some images could not be deleted",
			logger.NoteID(noteID),
			logger.Int("pending_images", len(keys)-len(gone)),
		)
	}
	return nil
}

// clearSubject borra reacciones y reportes sobre una nota o comentario.
func clearSubject(ctx context.Context, tx store.Tx, kind repository.SubjectKind, id int64, t tally) error {
	n, err := tx.Reactions().DeleteBySubject(ctx, kind, id)
	if err != nil {
		return err
	}
	t[entityReaction] += n
	n, err = tx.Reports().DeleteBySubject(ctx, kind, id)
	if err != nil {
		return err
	}
	t[entityReport] += n
	return nil
}

// deleteComment borra reacciones y reportes del comentario y después la fila.
func deleteComment(ctx context.Context, tx store.Tx, id int64, t tally) error {
	if err := clearSubject(ctx, tx, repository.SubjectComment, id, t); err != nil {
		return err
	}
	n, err := tx.Comments().Delete(ctx, id)
	if err != nil {
		return err
	}
	t[entityComment] += n
	return nil
}

// ─── PURGING_RELATIONS ───

func (r *accountRun) relations(ctx context.Context) error {
	t := tally{}
	err := r.write(ctx, t, func(ctx context.Context, tx store.Tx) error {
		n, err := tx.Blocks().DeleteByAccount(ctx, r.id)
		t[entityBlock] += n
		return err
	})
	if err != nil {
		return r.stepErr(PurgingRelations, "blocks", err)
	}
	return nil
}

// ─── Blobs ───

// deleteBlob retorna true si el blob ya no existe (borrado o ausente).
func (r *accountRun) deleteBlob(ctx context.Context, key string) bool {
	res, err := r.p.blobs.Delete(ctx, key)
	if err != nil {
		metrics.PurgeBlobDeletesTotal.WithLabelValues("failed").Inc()
		r.log.Warn("blob delete failed", logger.BlobKey(key), logger.Err(err))
		r.blobErrs = append(r.blobErrs, &BlobError{Key: key, Err: err})
		return false
	}
	metrics.PurgeBlobDeletesTotal.WithLabelValues(res.String()).Inc()
	if res == blob.Deleted {
		r.res.BlobsDeleted++
	} else {
		r.res.BlobsMissing++
	}
	return true
}

// ─── Helpers ───

// write corre fn en una unidad read-write y, si hizo commit, suma t al resultado.
func (r *accountRun) write(ctx context.Context, t tally, fn store.UnitFunc) error {
	if err := r.p.units.Write(ctx, fn); err != nil {
		return err
	}
	for entity, n := range t {
		r.res.Rows[entity] += n
		r.res.RowsDeleted += n
	}
	return nil
}

func (r *accountRun) enter(s State) {
	r.res.State = s
	r.log.Debug("purge step", logger.Step(s.String()))
}

func (r *accountRun) stepErr(step State, op string, err error) error {
	return &StepError{AccountID: r.id, Step: step, Op: op, Err: err}
}

func (r *accountRun) fail(step State, op string, err error) {
	r.failWith(r.stepErr(step, op, err))
}

func (r *accountRun) failWith(err error) {
	var se *StepError
	step := r.res.State
	if errors.As(err, &se) {
		step = se.Step
	}
	r.res.State = Failed
	r.res.FailedStep = step
	r.res.Outcome = OutcomeFailed
	r.res.Err = errors.Join(append([]error{err}, r.blobErrs...)...)
	r.log.Error("account purge failed",
		logger.Step(step.String()),
		zap.Int64("rows_deleted", r.res.RowsDeleted),
		logger.Err(err),
	)
}
