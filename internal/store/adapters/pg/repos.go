package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
)

// subjectTable retorna tabla y columna de la entidad reaccionada/reportada.
func subjectTable(prefix string, kind repository.SubjectKind) (string, string, error) {
	switch kind {
	case repository.SubjectNote:
		return "note_" + prefix, "note_id", nil
	case repository.SubjectComment:
		return "comment_" + prefix, "comment_id", nil
	}
	return "", "", fmt.Errorf("%w: subject kind %q", repository.ErrInvalidInput, kind)
}

func exec(ctx context.Context, tx pgx.Tx, query string, args ...any) (int64, error) {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func collectIDs(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, mapErr(err)
}

// ─── AccountRepository ───

type accountRepo struct{ tx pgx.Tx }

func (r *accountRepo) Create(ctx context.Context, in repository.CreateAccountInput) (*repository.Account, error) {
	const query = `
		INSERT INTO account (nickname, profile_image)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	a := &repository.Account{Nickname: in.Nickname, ProfileImage: in.ProfileImage}
	if err := r.tx.QueryRow(ctx, query, in.Nickname, in.ProfileImage).Scan(&a.ID, &a.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (r *accountRepo) Get(ctx context.Context, id int64) (*repository.Account, error) {
	const query = `
		SELECT id, nickname, profile_image, deleted, deleted_at, created_at
		FROM account WHERE id = $1
	`
	var a repository.Account
	err := r.tx.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Nickname, &a.ProfileImage, &a.Deleted, &a.DeletedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *accountRepo) FindPurgeable(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]repository.Account, error) {
	const query = `
		SELECT id, nickname, profile_image, deleted, deleted_at, created_at
		FROM account
		WHERE deleted AND deleted_at <= $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`
	// LIMIT NULL equivale a sin límite.
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.tx.Query(ctx, query, cutoff, afterID, lim)
	if err != nil {
		return nil, mapErr(err)
	}
	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.Account, error) {
		var a repository.Account
		err := row.Scan(&a.ID, &a.Nickname, &a.ProfileImage, &a.Deleted, &a.DeletedAt, &a.CreatedAt)
		return a, err
	})
	return accounts, mapErr(err)
}

func (r *accountRepo) MarkDeleted(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE account SET deleted = TRUE, deleted_at = $2 WHERE id = $1`
	n, err := exec(ctx, r.tx, query, id, at)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *accountRepo) Delete(ctx context.Context, id int64) (int64, error) {
	return exec(ctx, r.tx, `DELETE FROM account WHERE id = $1`, id)
}

func (r *accountRepo) CountReferencing(ctx context.Context, id int64) (int64, error) {
	const query = `
		SELECT
			(SELECT count(*) FROM note WHERE owner_id = $1) +
			(SELECT count(*) FROM comment WHERE owner_id = $1) +
			(SELECT count(*) FROM note_reaction WHERE owner_id = $1) +
			(SELECT count(*) FROM comment_reaction WHERE owner_id = $1) +
			(SELECT count(*) FROM note_report WHERE reporter_id = $1) +
			(SELECT count(*) FROM comment_report WHERE reporter_id = $1) +
			(SELECT count(*) FROM account_block WHERE blocker_id = $1 OR blocked_id = $1)
	`
	var n int64
	err := r.tx.QueryRow(ctx, query, id).Scan(&n)
	return n, mapErr(err)
}

// ─── NoteRepository ───

type noteRepo struct{ tx pgx.Tx }

func (r *noteRepo) Create(ctx context.Context, in repository.CreateNoteInput) (*repository.Note, error) {
	const query = `
		INSERT INTO note (owner_id, content)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	n := &repository.Note{OwnerID: in.OwnerID, Content: in.Content}
	if err := r.tx.QueryRow(ctx, query, in.OwnerID, in.Content).Scan(&n.ID, &n.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	if len(in.ImageKeys) > 0 {
		rows := make([][]any, 0, len(in.ImageKeys))
		for i, key := range in.ImageKeys {
			rows = append(rows, []any{n.ID, key, i})
		}
		_, err := r.tx.CopyFrom(ctx,
			pgx.Identifier{"note_image"},
			[]string{"note_id", "image_key", "position"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return nil, mapErr(err)
		}
		n.ImageKeys = append([]string(nil), in.ImageKeys...)
	}
	return n, nil
}

func (r *noteRepo) ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	return collectIDs(ctx, r.tx, `SELECT id FROM note WHERE owner_id = $1 ORDER BY id`, ownerID)
}

func (r *noteRepo) ListImageKeys(ctx context.Context, noteID int64) ([]string, error) {
	const query = `SELECT image_key FROM note_image WHERE note_id = $1 ORDER BY position, id`
	rows, err := r.tx.Query(ctx, query, noteID)
	if err != nil {
		return nil, mapErr(err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return keys, mapErr(err)
}

func (r *noteRepo) DeleteImages(ctx context.Context, noteID int64, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return exec(ctx, r.tx, `DELETE FROM note_image WHERE note_id = $1 AND image_key = ANY($2)`, noteID, keys)
}

func (r *noteRepo) Delete(ctx context.Context, noteID int64) (int64, error) {
	return exec(ctx, r.tx, `DELETE FROM note WHERE id = $1`, noteID)
}

// ─── CommentRepository ───

type commentRepo struct{ tx pgx.Tx }

func (r *commentRepo) Create(ctx context.Context, in repository.CreateCommentInput) (*repository.Comment, error) {
	const query = `
		INSERT INTO comment (note_id, owner_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	c := &repository.Comment{NoteID: in.NoteID, OwnerID: in.OwnerID, Content: in.Content}
	if err := r.tx.QueryRow(ctx, query, in.NoteID, in.OwnerID, in.Content).Scan(&c.ID, &c.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (r *commentRepo) ListIDsByNote(ctx context.Context, noteID int64) ([]int64, error) {
	return collectIDs(ctx, r.tx, `SELECT id FROM comment WHERE note_id = $1 ORDER BY id`, noteID)
}

func (r *commentRepo) ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	return collectIDs(ctx, r.tx, `SELECT id FROM comment WHERE owner_id = $1 ORDER BY id`, ownerID)
}

func (r *commentRepo) Delete(ctx context.Context, id int64) (int64, error) {
	return exec(ctx, r.tx, `DELETE FROM comment WHERE id = $1`, id)
}

// ─── ReactionRepository ───

type reactionRepo struct{ tx pgx.Tx }

func (r *reactionRepo) Create(ctx context.Context, in repository.Reaction) (*repository.Reaction, error) {
	table, col, err := subjectTable("reaction", in.Subject)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, owner_id, kind) VALUES ($1, $2, $3) RETURNING id`, table, col)
	out := in
	if err := r.tx.QueryRow(ctx, query, in.SubjectID, in.OwnerID, string(in.Kind)).Scan(&out.ID); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (r *reactionRepo) DeleteBySubject(ctx context.Context, kind repository.SubjectKind, subjectID int64) (int64, error) {
	table, col, err := subjectTable("reaction", kind)
	if err != nil {
		return 0, err
	}
	return exec(ctx, r.tx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, col), subjectID)
}

func (r *reactionRepo) DeleteByOwner(ctx context.Context, ownerID int64) (int64, error) {
	n1, err := exec(ctx, r.tx, `DELETE FROM note_reaction WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, err
	}
	n2, err := exec(ctx, r.tx, `DELETE FROM comment_reaction WHERE owner_id = $1`, ownerID)
	return n1 + n2, err
}

// ─── ReportRepository ───

type reportRepo struct{ tx pgx.Tx }

func (r *reportRepo) Create(ctx context.Context, in repository.Report) (*repository.Report, error) {
	table, col, err := subjectTable("report", in.Subject)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, reporter_id, reason) VALUES ($1, $2, $3) RETURNING id`, table, col)
	out := in
	if err := r.tx.QueryRow(ctx, query, in.SubjectID, in.ReporterID, in.Reason).Scan(&out.ID); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (r *reportRepo) DeleteBySubject(ctx context.Context, kind repository.SubjectKind, subjectID int64) (int64, error) {
	table, col, err := subjectTable("report", kind)
	if err != nil {
		return 0, err
	}
	return exec(ctx, r.tx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, col), subjectID)
}

func (r *reportRepo) DeleteByReporter(ctx context.Context, reporterID int64) (int64, error) {
	n1, err := exec(ctx, r.tx, `DELETE FROM note_report WHERE reporter_id = $1`, reporterID)
	if err != nil {
		return 0, err
	}
	n2, err := exec(ctx, r.tx, `DELETE FROM comment_report WHERE reporter_id = $1`, reporterID)
	return n1 + n2, err
}

// ─── BlockRepository ───

type blockRepo struct{ tx pgx.Tx }

func (r *blockRepo) Create(ctx context.Context, in repository.Block) (*repository.Block, error) {
	const query = `INSERT INTO account_block (blocker_id, blocked_id) VALUES ($1, $2) RETURNING id`
	out := in
	if err := r.tx.QueryRow(ctx, query, in.BlockerID, in.BlockedID).Scan(&out.ID); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (r *blockRepo) DeleteByAccount(ctx context.Context, accountID int64) (int64, error) {
	return exec(ctx, r.tx, `DELETE FROM account_block WHERE blocker_id = $1 OR blocked_id = $1`, accountID)
}
