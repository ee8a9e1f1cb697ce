package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
)

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{repository.ErrConflict}, args...)...)
}

func sortedIDs[T any](m map[int64]*T, pred func(*T) bool) []int64 {
	ids := make([]int64, 0)
	for id, v := range m {
		if pred(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// deleteWhere elimina las filas que cumplen pred registrando el undo.
// Requiere db.mu tomado.
func deleteWhere[T any](t *memoryTx, m map[int64]*T, pred func(*T) bool) int64 {
	var n int64
	for id, v := range m {
		if !pred(v) {
			continue
		}
		id, v := id, v
		delete(m, id)
		t.onUndo(func() { m[id] = v })
		n++
	}
	return n
}

// insert agrega la fila registrando el undo. Requiere db.mu tomado.
func insert[T any](t *memoryTx, m map[int64]*T, id int64, v *T) {
	m[id] = v
	t.onUndo(func() { delete(m, id) })
}

// ─── Accounts ───

type accountRepo struct{ tx *memoryTx }

func (r *accountRepo) Create(ctx context.Context, in repository.CreateAccountInput) (*repository.Account, error) {
	if err := r.tx.enter(ctx, "accounts.create", true); err != nil {
		return nil, err
	}
	if in.Nickname == "" {
		return nil, fmt.Errorf("%w: nickname required", repository.ErrInvalidInput)
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	a := &repository.Account{
		ID:           db.nextID(),
		Nickname:     in.Nickname,
		ProfileImage: in.ProfileImage,
		CreatedAt:    time.Now().UTC(),
	}
	insert(r.tx, db.accounts, a.ID, a)
	out := *a
	return &out, nil
}

func (r *accountRepo) Get(ctx context.Context, id int64) (*repository.Account, error) {
	if err := r.tx.enter(ctx, "accounts.get", false); err != nil {
		return nil, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *accountRepo) FindPurgeable(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]repository.Account, error) {
	if err := r.tx.enter(ctx, "accounts.find_purgeable", false); err != nil {
		return nil, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	ids := sortedIDs(db.accounts, func(a *repository.Account) bool {
		return a.ID > afterID && a.Deleted && a.DeletedAt != nil && !a.DeletedAt.After(cutoff)
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]repository.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, *db.accounts[id])
	}
	return out, nil
}

func (r *accountRepo) MarkDeleted(ctx context.Context, id int64, at time.Time) error {
	if err := r.tx.enter(ctx, "accounts.mark_deleted", true); err != nil {
		return err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	prev := *a
	deletedAt := at.UTC()
	a.Deleted = true
	a.DeletedAt = &deletedAt
	r.tx.onUndo(func() { *a = prev })
	return nil
}

func (r *accountRepo) Delete(ctx context.Context, id int64) (int64, error) {
	if err := r.tx.enter(ctx, "accounts.delete", true); err != nil {
		return 0, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.accounts[id]; !ok {
		return 0, nil
	}
	if n := db.referencing(id); n > 0 {
		return 0, conflict("account %d still referenced by %d rows", id, n)
	}
	return deleteWhere(r.tx, db.accounts, func(a *repository.Account) bool { return a.ID == id }), nil
}

func (r *accountRepo) CountReferencing(ctx context.Context, id int64) (int64, error) {
	if err := r.tx.enter(ctx, "accounts.count_referencing", false); err != nil {
		return 0, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.referencing(id), nil
}

// referencing requiere db.mu tomado.
func (db *DB) referencing(id int64) int64 {
	n := countWhere(db.notes, func(n *repository.Note) bool { return n.OwnerID == id })
	n += countWhere(db.comments, func(c *repository.Comment) bool { return c.OwnerID == id })
	n += countWhere(db.reactions, func(r *repository.Reaction) bool { return r.OwnerID == id })
	n += countWhere(db.reports, func(r *repository.Report) bool { return r.ReporterID == id })
	n += countWhere(db.blocks, func(b *repository.Block) bool { return b.BlockerID == id || b.BlockedID == id })
	return int64(n)
}

// ─── Notes ───

type noteRepo struct{ tx *memoryTx }

func (r *noteRepo) Create(ctx context.Context, in repository.CreateNoteInput) (*repository.Note, error) {
	if err := r.tx.enter(ctx, "notes.create", true); err != nil {
		return nil, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.accounts[in.OwnerID]; !ok {
		return nil, conflict("note owner %d does not exist", in.OwnerID)
	}
	n := &repository.Note{
		ID:        db.nextID(),
		OwnerID:   in.OwnerID,
		Content:   in.Content,
		CreatedAt: time.Now().UTC(),
	}
	insert(r.tx, db.notes, n.ID, n)
	for i, key := range in.ImageKeys {
		img := &imageRow{id: db.nextID(), noteID: n.ID, key: key, pos: i}
		insert(r.tx, db.images, img.id, img)
	}
	out := *n
	out.ImageKeys = append([]string(nil), in.ImageKeys...)
	return &out, nil
}

func (r *noteRepo) ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	if err := r.tx.enter(ctx, "notes.list_by_owner", false); err != nil {
		return nil, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedIDs(db.notes, func(n *repository.Note) bool { return n.OwnerID == ownerID }), nil
}

func (r *noteRepo) ListImageKeys(ctx context.Context, noteID int64) ([]string, error) {
	if err := r.tx.enter(ctx, "notes.list_images", false); err != nil {
		return nil, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	rows := make([]*imageRow, 0)
	for _, img := range db.images {
		if img.noteID == noteID {
			rows = append(rows, img)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].pos != rows[j].pos {
			return rows[i].pos < rows[j].pos
		}
		return rows[i].id < rows[j].id
	})
	keys := make([]string, 0, len(rows))
	for _, img := range rows {
		keys = append(keys, img.key)
	}
	return keys, nil
}

func (r *noteRepo) DeleteImages(ctx context.Context, noteID int64, keys []string) (int64, error) {
	if err := r.tx.enter(ctx, "notes.delete_images", true); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return deleteWhere(r.tx, db.images, func(img *imageRow) bool {
		_, ok := want[img.key]
		return img.noteID == noteID && ok
	}), nil
}

func (r *noteRepo) Delete(ctx context.Context, noteID int64) (int64, error) {
	if err := r.tx.enter(ctx, "notes.delete", true); err != nil {
		return 0, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.notes[noteID]; !ok {
		return 0, nil
	}
	deps := countWhere(db.images, func(img *imageRow) bool { return img.noteID == noteID }) +
		countWhere(db.comments, func(c *repository.Comment) bool { return c.NoteID == noteID }) +
		countWhere(db.reactions, func(x *repository.Reaction) bool {
			return x.Subject == repository.SubjectNote && x.SubjectID == noteID
		}) +
		countWhere(db.reports, func(x *repository.Report) bool {
			return x.Subject == repository.SubjectNote && x.SubjectID == noteID
		})
	if deps > 0 {
		return 0, conflict("note %d still referenced by %d rows", noteID, deps)
	}
	return deleteWhere(r.tx, db.notes, func(n *repository.Note) bool { return n.ID == noteID }), nil
}

// ─── Comments ───

type commentRepo struct{ tx *memoryTx }

func (r *commentRepo) Create(ctx context.Context, in repository.CreateCommentInput) (*repository.Comment, error) {
	if err := r.tx.enter(ctx, "comments.create", true); err != nil {
		return nil, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.notes[in.NoteID]; !ok {
		return nil, conflict("comment note %d does not exist", in.NoteID)
	}
	if _, ok := db.accounts[in.OwnerID]; !ok {
		return nil, conflict("comment owner %d does not exist", in.OwnerID)
	}
	c := &repository.Comment{
		ID:        db.nextID(),
		NoteID:    in.NoteID,
		OwnerID:   in.OwnerID,
		Content:   in.Content,
		CreatedAt: time.Now().UTC(),
	}
	insert(r.tx, db.comments, c.ID, c)
	out := *c
	return &out, nil
}

func (r *commentRepo) ListIDsByNote(ctx context.Context, noteID int64) ([]int64, error) {
	if err := r.tx.enter(ctx, "comments.list_by_note", false); err != nil {
		return nil, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedIDs(db.comments, func(c *repository.Comment) bool { return c.NoteID == noteID }), nil
}

func (r *commentRepo) ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	if err := r.tx.enter(ctx, "comments.list_by_owner", false); err != nil {
		return nil, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return sortedIDs(db.comments, func(c *repository.Comment) bool { return c.OwnerID == ownerID }), nil
}

func (r *commentRepo) Delete(ctx context.Context, id int64) (int64, error) {
	if err := r.tx.enter(ctx, "comments.delete", true); err != nil {
		return 0, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.comments[id]; !ok {
		return 0, nil
	}
	deps := countWhere(db.reactions, func(x *repository.Reaction) bool {
		return x.Subject == repository.SubjectComment && x.SubjectID == id
	}) + countWhere(db.reports, func(x *repository.Report) bool {
		return x.Subject == repository.SubjectComment && x.SubjectID == id
	})
	if deps > 0 {
		return 0, conflict("comment %d still referenced by %d rows", id, deps)
	}
	return deleteWhere(r.tx, db.comments, func(c *repository.Comment) bool { return c.ID == id }), nil
}

// subjectExists requiere db.mu tomado.
func (db *DB) subjectExists(kind repository.SubjectKind, id int64) bool {
	switch kind {
	case repository.SubjectNote:
		_, ok := db.notes[id]
		return ok
	case repository.SubjectComment:
		_, ok := db.comments[id]
		return ok
	}
	return false
}

// ─── Reactions ───

type reactionRepo struct{ tx *memoryTx }

func (r *reactionRepo) Create(ctx context.Context, in repository.Reaction) (*repository.Reaction, error) {
	if err := r.tx.enter(ctx, "reactions.create", true); err != nil {
		return nil, err
	}
	if !in.Subject.Valid() || (in.Kind != repository.ReactionLike && in.Kind != repository.ReactionHate) {
		return nil, repository.ErrInvalidInput
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.subjectExists(in.Subject, in.SubjectID) {
		return nil, conflict("%s %d does not exist", in.Subject, in.SubjectID)
	}
	if _, ok := db.accounts[in.OwnerID]; !ok {
		return nil, conflict("reaction owner %d does not exist", in.OwnerID)
	}
	dup := countWhere(db.reactions, func(x *repository.Reaction) bool {
		return x.Subject == in.Subject && x.SubjectID == in.SubjectID && x.OwnerID == in.OwnerID && x.Kind == in.Kind
	})
	if dup > 0 {
		return nil, conflict("duplicate reaction")
	}
	x := in
	x.ID = db.nextID()
	insert(r.tx, db.reactions, x.ID, &x)
	out := x
	return &out, nil
}

func (r *reactionRepo) DeleteBySubject(ctx context.Context, kind repository.SubjectKind, subjectID int64) (int64, error) {
	if err := r.tx.enter(ctx, "reactions.delete_by_subject", true); err != nil {
		return 0, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return deleteWhere(r.tx, db.reactions, func(x *repository.Reaction) bool {
		return x.Subject == kind && x.SubjectID == subjectID
	}), nil
}

func (r *reactionRepo) DeleteByOwner(ctx context.Context, ownerID int64) (int64, error) {
	if err := r.tx.enter(ctx, "reactions.delete_by_owner", true); err != nil {
		return 0, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return deleteWhere(r.tx, db.reactions, func(x *repository.Reaction) bool { return x.OwnerID == ownerID }), nil
}

// ─── Reports ───

type reportRepo struct{ tx *memoryTx }

func (r *reportRepo) Create(ctx context.Context, in repository.Report) (*repository.Report, error) {
	if err := r.tx.enter(ctx, "reports.create", true); err != nil {
		return nil, err
	}
	if !in.Subject.Valid() {
		return nil, repository.ErrInvalidInput
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.subjectExists(in.Subject, in.SubjectID) {
		return nil, conflict("%s %d does not exist", in.Subject, in.SubjectID)
	}
	if _, ok := db.accounts[in.ReporterID]; !ok {
		return nil, conflict("reporter %d does not exist", in.ReporterID)
	}
	dup := countWhere(db.reports, func(x *repository.Report) bool {
		return x.Subject == in.Subject && x.SubjectID == in.SubjectID && x.ReporterID == in.ReporterID
	})
	if dup > 0 {
		return nil, conflict("%s %d already reported by %d", in.Subject, in.SubjectID, in.ReporterID)
	}
	x := in
	x.ID = db.nextID()
	insert(r.tx, db.reports, x.ID, &x)
	out := x
	return &out, nil
}

func (r *reportRepo) DeleteBySubject(ctx context.Context, kind repository.SubjectKind, subjectID int64) (int64, error) {
	if err := r.tx.enter(ctx, "reports.delete_by_subject", true); err != nil {
		return 0, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return deleteWhere(r.tx, db.reports, func(x *repository.Report) bool {
		return x.Subject == kind && x.SubjectID == subjectID
	}), nil
}

func (r *reportRepo) DeleteByReporter(ctx context.Context, reporterID int64) (int64, error) {
	if err := r.tx.enter(ctx, "reports.delete_by_reporter", true); err != nil {
		return 0, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return deleteWhere(r.tx, db.reports, func(x *repository.Report) bool { return x.ReporterID == reporterID }), nil
}

// ─── Blocks ───

type blockRepo struct{ tx *memoryTx }

func (r *blockRepo) Create(ctx context.Context, in repository.Block) (*repository.Block, error) {
	if err := r.tx.enter(ctx, "blocks.create", true); err != nil {
		return nil, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, id := range []int64{in.BlockerID, in.BlockedID} {
		if _, ok := db.accounts[id]; !ok {
			return nil, conflict("block account %d does not exist", id)
		}
	}
	dup := countWhere(db.blocks, func(b *repository.Block) bool {
		return b.BlockerID == in.BlockerID && b.BlockedID == in.BlockedID
	})
	if dup > 0 {
		return nil, conflict("duplicate block")
	}
	b := in
	b.ID = db.nextID()
	insert(r.tx, db.blocks, b.ID, &b)
	out := b
	return &out, nil
}

func (r *blockRepo) DeleteByAccount(ctx context.Context, accountID int64) (int64, error) {
	if err := r.tx.enter(ctx, "blocks.delete_by_account", true); err != nil {
		return 0, err
	}
	db := r.tx.db
	db.mu.Lock()
	defer db.mu.Unlock()
	return deleteWhere(r.tx, db.blocks, func(b *repository.Block) bool {
		return b.BlockerID == accountID || b.BlockedID == accountID
	}), nil
}
