package routing

import (
	"fmt"
	"sync/atomic"
)

// MisuseKind clasifica el mal uso de Begin/end.
type MisuseKind string

const (
	MisuseDoubleEnd    MisuseKind = "double end"
	MisuseOpenChildren MisuseKind = "end with nested units still open"
)

// MisuseError indica que los frames se abrieron/cerraron fuera de orden.
// Es fatal para la unidad de trabajo que lo provoca.
type MisuseError struct {
	Kind  MisuseKind
	Tag   Tag
	Depth int
	Open  int
}

func (e *MisuseError) Error() string {
	if e.Open > 0 {
		return fmt.Sprintf("routing misuse: %s (tag=%s depth=%d open=%d)", e.Kind, e.Tag, e.Depth, e.Open)
	}
	return fmt.Sprintf("routing misuse: %s (tag=%s depth=%d)", e.Kind, e.Tag, e.Depth)
}

var strict atomic.Bool

// SetStrict activa el modo estricto: el mal uso hace panic en lugar de
// retornar error. Pensado para dev y tests.
func SetStrict(on bool) { strict.Store(on) }

// Strict indica si el modo estricto está activo.
func Strict() bool { return strict.Load() }

func misuse(e *MisuseError) error {
	if strict.Load() {
		panic(e)
	}
	return e
}
