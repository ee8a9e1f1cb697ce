// Package routing decide, por unidad de trabajo, a qué pool físico
// (primary o replica) van las operaciones de storage.
//
// La decisión viaja en el context.Context como una pila de frames: cada
// Begin apila un frame con su tag y el end correspondiente lo cierra. El tag
// vigente es el del frame abierto más interno, de modo que al terminar una
// unidad anidada el tag exterior queda restaurado. Sin frames el tag es
// Primary.
//
//	ctx, end := routing.Begin(ctx, routing.ReadOnly)
//	defer end()
//	pool := pools.Get(ctx, routing.CurrentTag(ctx))
//
// Begin debe llamarse antes de adquirir la conexión física.
package routing

import (
	"context"
	"sync/atomic"
)

// Tag identifica el pool físico.
type Tag uint8

const (
	// Primary es el pool read-write. Es el default.
	Primary Tag = iota
	// Replica es el pool read-only.
	Replica
)

func (t Tag) String() string {
	switch t {
	case Primary:
		return "primary"
	case Replica:
		return "replica"
	default:
		return "unknown"
	}
}

// Intent es la intención declarada de una unidad de trabajo.
type Intent uint8

const (
	// ReadWrite es el default: cualquier intención distinta de ReadOnly.
	ReadWrite Intent = iota
	ReadOnly
)

func (i Intent) String() string {
	if i == ReadOnly {
		return "read-only"
	}
	return "read-write"
}

// TagFor mapea la intención al pool: ReadOnly => Replica, resto => Primary.
func TagFor(i Intent) Tag {
	if i == ReadOnly {
		return Replica
	}
	return Primary
}

// EndFunc cierra el frame abierto por Begin.
// Siempre marca el frame como terminado; retorna *MisuseError si el cierre
// es doble o fuera de orden.
type EndFunc func() error

type frame struct {
	tag    Tag
	intent Intent
	parent *frame
	depth  int

	ended atomic.Bool
	// open cuenta hijos todavía abiertos.
	open atomic.Int32
}

type ctxKey struct{}

func top(ctx context.Context) *frame {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(ctxKey{}).(*frame)
	return f
}

// live retorna el frame abierto más interno a partir de f.
func live(f *frame) *frame {
	for f != nil && f.ended.Load() {
		f = f.parent
	}
	return f
}

// Begin abre una unidad de trabajo con la intención dada y retorna el
// contexto que la transporta junto con la función que la cierra.
func Begin(ctx context.Context, intent Intent) (context.Context, EndFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent := live(top(ctx))
	f := &frame{tag: TagFor(intent), intent: intent, parent: parent, depth: 1}
	if parent != nil {
		f.depth = parent.depth + 1
		parent.open.Add(1)
	}
	return context.WithValue(ctx, ctxKey{}, f), f.end
}

func (f *frame) end() error {
	if !f.ended.CompareAndSwap(false, true) {
		return misuse(&MisuseError{Kind: MisuseDoubleEnd, Tag: f.tag, Depth: f.depth})
	}
	if f.parent != nil {
		f.parent.open.Add(-1)
	}
	if n := f.open.Load(); n > 0 {
		return misuse(&MisuseError{Kind: MisuseOpenChildren, Tag: f.tag, Depth: f.depth, Open: int(n)})
	}
	return nil
}

// CurrentTag retorna el tag de la unidad de trabajo vigente en ctx.
// Sin unidad abierta retorna Primary.
func CurrentTag(ctx context.Context) Tag {
	if f := live(top(ctx)); f != nil {
		return f.tag
	}
	return Primary
}

// CurrentIntent retorna la intención vigente (ReadWrite sin unidad abierta).
func CurrentIntent(ctx context.Context) Intent {
	if f := live(top(ctx)); f != nil {
		return f.intent
	}
	return ReadWrite
}

// Depth retorna cuántas unidades de trabajo abiertas hay apiladas en ctx.
func Depth(ctx context.Context) int {
	if f := live(top(ctx)); f != nil {
		return f.depth
	}
	return 0
}
