package store

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/mapping/internal/store/routing"
)

// ErrConnectionUnavailable indica que el pool seleccionado no se pudo abrir
// o no responde. No hay fallback entre primary y replica.
var ErrConnectionUnavailable = errors.New("connection unavailable")

// PoolError etiqueta un error con el pool contra el que corrió.
type PoolError struct {
	Tag routing.Tag
	// Op: connect|begin|execute|commit
	Op  string
	Err error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("store: %s on %s: %v", e.Op, e.Tag, e.Err)
}

func (e *PoolError) Unwrap() error { return e.Err }

// PoolOf retorna el pool en el que falló err, si está etiquetado.
func PoolOf(err error) (routing.Tag, bool) {
	var pe *PoolError
	if errors.As(err, &pe) {
		return pe.Tag, true
	}
	return routing.Primary, false
}

// IsConnectionUnavailable verifica si el error es ErrConnectionUnavailable.
func IsConnectionUnavailable(err error) bool {
	return errors.Is(err, ErrConnectionUnavailable)
}
