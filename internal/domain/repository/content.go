package repository

import (
	"context"
	"time"
)

// Note es un contenido publicado por una cuenta. ImageKeys son las
// referencias a blobs externos asociadas a la nota.
type Note struct {
	ID        int64
	OwnerID   int64
	Content   string
	ImageKeys []string
	CreatedAt time.Time
}

// CreateNoteInput contiene los datos para crear una nota.
type CreateNoteInput struct {
	OwnerID   int64
	Content   string
	ImageKeys []string
}

// Comment es una respuesta a una nota.
type Comment struct {
	ID        int64
	NoteID    int64
	OwnerID   int64
	Content   string
	CreatedAt time.Time
}

// CreateCommentInput contiene los datos para crear un comentario.
type CreateCommentInput struct {
	NoteID  int64
	OwnerID int64
	Content string
}

// NoteRepository define operaciones sobre notas y sus imágenes.
type NoteRepository interface {
	Create(ctx context.Context, in CreateNoteInput) (*Note, error)

	// ListIDsByOwner lista los IDs de las notas de una cuenta.
	ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error)

	// ListImageKeys lista las keys de imagen de una nota.
	ListImageKeys(ctx context.Context, noteID int64) ([]string, error)

	// DeleteImages elimina las filas de imagen con las keys dadas.
	DeleteImages(ctx context.Context, noteID int64, keys []string) (int64, error)

	// Delete elimina la nota. Falla con ErrConflict si quedan dependientes.
	Delete(ctx context.Context, noteID int64) (int64, error)
}

// CommentRepository define operaciones sobre comentarios.
type CommentRepository interface {
	Create(ctx context.Context, in CreateCommentInput) (*Comment, error)

	// ListIDsByNote lista los comentarios de una nota (de cualquier autor).
	ListIDsByNote(ctx context.Context, noteID int64) ([]int64, error)

	// ListIDsByOwner lista los comentarios escritos por una cuenta.
	ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error)

	Delete(ctx context.Context, id int64) (int64, error)
}
