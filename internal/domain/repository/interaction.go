package repository

import "context"

// SubjectKind identifica sobre qué entidad se reacciona o reporta.
type SubjectKind string

const (
	SubjectNote    SubjectKind = "note"
	SubjectComment SubjectKind = "comment"
)

// Valid reporta si el kind es conocido.
func (k SubjectKind) Valid() bool {
	return k == SubjectNote || k == SubjectComment
}

// ReactionKind es el tipo de voto.
type ReactionKind string

const (
	ReactionLike ReactionKind = "like"
	ReactionHate ReactionKind = "hate"
)

// Reaction es un like/hate de una cuenta sobre una nota o comentario.
type Reaction struct {
	ID        int64
	Subject   SubjectKind
	SubjectID int64
	OwnerID   int64
	Kind      ReactionKind
}

// Report es una denuncia de una cuenta sobre una nota o comentario.
// Hay a lo sumo uno por (subject, reporter).
type Report struct {
	ID         int64
	Subject    SubjectKind
	SubjectID  int64
	ReporterID int64
	Reason     string
}

// Block es la relación "blocker bloquea a blocked".
type Block struct {
	ID        int64
	BlockerID int64
	BlockedID int64
}

// ReactionRepository define operaciones sobre reacciones.
type ReactionRepository interface {
	Create(ctx context.Context, r Reaction) (*Reaction, error)
	DeleteBySubject(ctx context.Context, kind SubjectKind, subjectID int64) (int64, error)
	DeleteByOwner(ctx context.Context, ownerID int64) (int64, error)
}

// ReportRepository define operaciones sobre reportes.
type ReportRepository interface {
	// Create retorna ErrConflict si ya existe un reporte para (subject, reporter).
	Create(ctx context.Context, r Report) (*Report, error)
	DeleteBySubject(ctx context.Context, kind SubjectKind, subjectID int64) (int64, error)
	DeleteByReporter(ctx context.Context, reporterID int64) (int64, error)
}

// BlockRepository define operaciones sobre bloqueos.
type BlockRepository interface {
	Create(ctx context.Context, b Block) (*Block, error)
	// DeleteByAccount elimina los bloqueos donde la cuenta es blocker o blocked.
	DeleteByAccount(ctx context.Context, accountID int64) (int64, error)
}

// Repositories agrupa los repositorios ligados a una misma transacción.
type Repositories interface {
	Accounts() AccountRepository
	Notes() NoteRepository
	Comments() CommentRepository
	Reactions() ReactionRepository
	Reports() ReportRepository
	Blocks() BlockRepository
}
