package repository

import (
	"context"
	"time"
)

// Account representa una cuenta registrada.
// ProfileImage es la referencia (URL o key) al blob de perfil, vacía si no hay.
type Account struct {
	ID           int64
	Nickname     string
	ProfileImage string
	Deleted      bool
	DeletedAt    *time.Time
	CreatedAt    time.Time
}

// CreateAccountInput contiene los datos para crear una cuenta.
type CreateAccountInput struct {
	Nickname     string
	ProfileImage string
}

// AccountRepository define operaciones sobre cuentas.
type AccountRepository interface {
	// Create inserta una cuenta activa.
	Create(ctx context.Context, in CreateAccountInput) (*Account, error)

	// Get obtiene una cuenta por ID.
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id int64) (*Account, error)

	// FindPurgeable lista cuentas con deleted=true y deleted_at <= cutoff,
	// ordenadas por ID y con id > afterID (paginación por keyset).
	FindPurgeable(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]Account, error)

	// MarkDeleted aplica el soft delete.
	// Retorna ErrNotFound si no existe.
	MarkDeleted(ctx context.Context, id int64, at time.Time) error

	// Delete elimina la fila de la cuenta. Retorna filas eliminadas (0 si ya no estaba).
	Delete(ctx context.Context, id int64) (int64, error)

	// CountReferencing cuenta filas que referencian a la cuenta como dueña,
	// autora de reacción/reporte o cualquiera de los lados de un bloqueo.
	CountReferencing(ctx context.Context, id int64) (int64, error)
}
