package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
)

func subjectTable(prefix string, kind repository.SubjectKind) (string, string, error) {
	switch kind {
	case repository.SubjectNote:
		return "note_" + prefix, "note_id", nil
	case repository.SubjectComment:
		return "comment_" + prefix, "comment_id", nil
	}
	return "", "", fmt.Errorf("%w: subject kind %q", repository.ErrInvalidInput, kind)
}

// ─── AccountRepository ───

type accountRepo struct{ tx *sql.Tx }

const accountColumns = `id, nickname, profile_image, deleted, deleted_at, created_at`

func scanAccount(sc interface{ Scan(...any) error }) (repository.Account, error) {
	var a repository.Account
	var deletedAt sql.NullTime
	err := sc.Scan(&a.ID, &a.Nickname, &a.ProfileImage, &a.Deleted, &deletedAt, &a.CreatedAt)
	a.DeletedAt = nullTimeToPtr(deletedAt)
	return a, err
}

func (r *accountRepo) Create(ctx context.Context, in repository.CreateAccountInput) (*repository.Account, error) {
	const query = `INSERT INTO account (nickname, profile_image) VALUES (?, ?)`
	id, err := insertID(ctx, r.tx, query, in.Nickname, in.ProfileImage)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *accountRepo) Get(ctx context.Context, id int64) (*repository.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE id = ?`
	a, err := scanAccount(r.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *accountRepo) FindPurgeable(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]repository.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account
		WHERE deleted = TRUE AND deleted_at <= ? AND id > ?
		ORDER BY id`
	args := []any{cutoff.UTC(), afterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, a)
	}
	return out, mapErr(rows.Err())
}

func (r *accountRepo) MarkDeleted(ctx context.Context, id int64, at time.Time) error {
	// MySQL reporta filas cambiadas, no encontradas: se verifica existencia aparte.
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	_, err := exec(ctx, r.tx, `UPDATE account SET deleted = TRUE, deleted_at = ? WHERE id = ?`, at.UTC(), id)
	return err
}

func (r *accountRepo) Delete(ctx context.Context, id int64) (int64, error) {
	return exec(ctx, r.tx, `DELETE FROM account WHERE id = ?`, id)
}

func (r *accountRepo) CountReferencing(ctx context.Context, id int64) (int64, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM note WHERE owner_id = ?) +
			(SELECT COUNT(*) FROM comment WHERE owner_id = ?) +
			(SELECT COUNT(*) FROM note_reaction WHERE owner_id = ?) +
			(SELECT COUNT(*) FROM comment_reaction WHERE owner_id = ?) +
			(SELECT COUNT(*) FROM note_report WHERE reporter_id = ?) +
			(SELECT COUNT(*) FROM comment_report WHERE reporter_id = ?) +
			(SELECT COUNT(*) FROM account_block WHERE blocker_id = ? OR blocked_id = ?)
	`
	var n int64
	err := r.tx.QueryRowContext(ctx, query, id, id, id, id, id, id, id, id).Scan(&n)
	return n, mapErr(err)
}

// ─── NoteRepository ───

type noteRepo struct{ tx *sql.Tx }

func (r *noteRepo) Create(ctx context.Context, in repository.CreateNoteInput) (*repository.Note, error) {
	id, err := insertID(ctx, r.tx, `INSERT INTO note (owner_id, content) VALUES (?, ?)`, in.OwnerID, in.Content)
	if err != nil {
		return nil, err
	}
	for i, key := range in.ImageKeys {
		const query = `INSERT INTO note_image (note_id, image_key, position) VALUES (?, ?, ?)`
		if _, err := exec(ctx, r.tx, query, id, key, i); err != nil {
			return nil, err
		}
	}
	n := &repository.Note{ID: id, OwnerID: in.OwnerID, Content: in.Content, ImageKeys: append([]string(nil), in.ImageKeys...)}
	err = r.tx.QueryRowContext(ctx, `SELECT created_at FROM note WHERE id = ?`, id).Scan(&n.CreatedAt)
	return n, mapErr(err)
}

func (r *noteRepo) ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	return collectIDs(ctx, r.tx, `SELECT id FROM note WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (r *noteRepo) ListImageKeys(ctx context.Context, noteID int64) ([]string, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT image_key FROM note_image WHERE note_id = ? ORDER BY position, id`, noteID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, mapErr(err)
		}
		keys = append(keys, k)
	}
	return keys, mapErr(rows.Err())
}

func (r *noteRepo) DeleteImages(ctx context.Context, noteID int64, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	query := `DELETE FROM note_image WHERE note_id = ? AND image_key IN (` + placeholders(len(keys)) + `)`
	args := make([]any, 0, len(keys)+1)
	args = append(args, noteID)
	for _, k := range keys {
		args = append(args, k)
	}
	return exec(ctx, r.tx, query, args...)
}

func (r *noteRepo) Delete(ctx context.Context, noteID int64) (int64, error) {
	return exec(ctx, r.tx, `DELETE FROM note WHERE id = ?`, noteID)
}

// ─── CommentRepository ───

type commentRepo struct{ tx *sql.Tx }

func (r *commentRepo) Create(ctx context.Context, in repository.CreateCommentInput) (*repository.Comment, error) {
	const query = `INSERT INTO comment (note_id, owner_id, content) VALUES (?, ?, ?)`
	id, err := insertID(ctx, r.tx, query, in.NoteID, in.OwnerID, in.Content)
	if err != nil {
		return nil, err
	}
	c := &repository.Comment{ID: id, NoteID: in.NoteID, OwnerID: in.OwnerID, Content: in.Content}
	err = r.tx.QueryRowContext(ctx, `SELECT created_at FROM comment WHERE id = ?`, id).Scan(&c.CreatedAt)
	return c, mapErr(err)
}

func (r *commentRepo) ListIDsByNote(ctx context.Context, noteID int64) ([]int64, error) {
	return collectIDs(ctx, r.tx, `SELECT id FROM comment WHERE note_id = ? ORDER BY id`, noteID)
}

func (r *commentRepo) ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	return collectIDs(ctx, r.tx, `SELECT id FROM comment WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (r *commentRepo) Delete(ctx context.Context, id int64) (int64, error) {
	return exec(ctx, r.tx, `DELETE FROM comment WHERE id = ?`, id)
}

// ─── ReactionRepository ───

type reactionRepo struct{ tx *sql.Tx }

func (r *reactionRepo) Create(ctx context.Context, in repository.Reaction) (*repository.Reaction, error) {
	table, col, err := subjectTable("reaction", in.Subject)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, owner_id, kind) VALUES (?, ?, ?)`, table, col)
	out := in
	if out.ID, err = insertID(ctx, r.tx, query, in.SubjectID, in.OwnerID, string(in.Kind)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reactionRepo) DeleteBySubject(ctx context.Context, kind repository.SubjectKind, subjectID int64) (int64, error) {
	table, col, err := subjectTable("reaction", kind)
	if err != nil {
		return 0, err
	}
	return exec(ctx, r.tx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, col), subjectID)
}

func (r *reactionRepo) DeleteByOwner(ctx context.Context, ownerID int64) (int64, error) {
	n1, err := exec(ctx, r.tx, `DELETE FROM note_reaction WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, err
	}
	n2, err := exec(ctx, r.tx, `DELETE FROM comment_reaction WHERE owner_id = ?`, ownerID)
	return n1 + n2, err
}

// ─── ReportRepository ───

type reportRepo struct{ tx *sql.Tx }

func (r *reportRepo) Create(ctx context.Context, in repository.Report) (*repository.Report, error) {
	table, col, err := subjectTable("report", in.Subject)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, reporter_id, reason) VALUES (?, ?, ?)`, table, col)
	out := in
	if out.ID, err = insertID(ctx, r.tx, query, in.SubjectID, in.ReporterID, in.Reason); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reportRepo) DeleteBySubject(ctx context.Context, kind repository.SubjectKind, subjectID int64) (int64, error) {
	table, col, err := subjectTable("report", kind)
	if err != nil {
		return 0, err
	}
	return exec(ctx, r.tx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, col), subjectID)
}

func (r *reportRepo) DeleteByReporter(ctx context.Context, reporterID int64) (int64, error) {
	n1, err := exec(ctx, r.tx, `DELETE FROM note_report WHERE reporter_id = ?`, reporterID)
	if err != nil {
		return 0, err
	}
	n2, err := exec(ctx, r.tx, `DELETE FROM comment_report WHERE reporter_id = ?`, reporterID)
	return n1 + n2, err
}

// ─── BlockRepository ───

type blockRepo struct{ tx *sql.Tx }

func (r *blockRepo) Create(ctx context.Context, in repository.Block) (*repository.Block, error) {
	out := in
	var err error
	out.ID, err = insertID(ctx, r.tx, `INSERT INTO account_block (blocker_id, blocked_id) VALUES (?, ?)`, in.BlockerID, in.BlockedID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *blockRepo) DeleteByAccount(ctx context.Context, accountID int64) (int64, error) {
	return exec(ctx, r.tx, `DELETE FROM account_block WHERE blocker_id = ? OR blocked_id = ?`, accountID, accountID)
}
