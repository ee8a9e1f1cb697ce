package purge

import (
	"errors"
	"fmt"
)

// ErrNotEligible indica que la cuenta ya no está soft-deleted o su período
// de gracia todavía no venció.
var ErrNotEligible = errors.New("purge: account not eligible")

// StepError es una falla de un paso de filas (PurgeStepFailed). Es fatal
// para la cuenta en esta corrida; la cuenta queda elegible.
type StepError struct {
	AccountID int64
	Step      State
	// Op describe la operación concreta (ej: "note 12", "blocks").
	Op  string
	Err error
}

func (e *StepError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("purge: account %d: %s: %v", e.AccountID, e.Step, e.Err)
	}
	return fmt.Sprintf("purge: account %d: %s (%s): %v", e.AccountID, e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// BlobError es una falla al borrar un blob externo (BlobDeleteFailed).
// No aborta la cuenta, pero impide borrar la fila de la cuenta.
type BlobError struct {
	Key string
	Err error
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("purge: blob %s: %v", e.Key, e.Err)
}

func (e *BlobError) Unwrap() error { return e.Err }

// IsStepError verifica si err contiene un *StepError.
func IsStepError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}

// IsBlobError verifica si err contiene un *BlobError.
func IsBlobError(err error) bool {
	var be *BlobError
	return errors.As(err, &be)
}
