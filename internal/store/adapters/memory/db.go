package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
)

var (
	registryMu sync.Mutex
	databases  = make(map[string]*DB)
)

// ErrUnavailable lo retorna una base marcada con SetUnavailable.
var ErrUnavailable = errors.New("memory: database unavailable")

// Open retorna la base con ese nombre, creándola si no existe.
func Open(name string) *DB {
	registryMu.Lock()
	defer registryMu.Unlock()
	db, ok := databases[name]
	if !ok {
		db = newDB()
		databases[name] = db
	}
	return db
}

// Drop descarta la base con ese nombre.
func Drop(name string) {
	registryMu.Lock()
	delete(databases, name)
	registryMu.Unlock()
}

// Hook se ejecuta antes de la operación nombrada; si retorna error la
// operación falla con ese error.
type Hook func(ctx context.Context) error

// DB es una base en memoria con las tablas del esquema.
type DB struct {
	mu  sync.Mutex
	seq int64

	accounts  map[int64]*repository.Account
	notes     map[int64]*repository.Note
	images    map[int64]*imageRow
	comments  map[int64]*repository.Comment
	reactions map[int64]*repository.Reaction
	reports   map[int64]*repository.Report
	blocks    map[int64]*repository.Block

	hooksMu     sync.RWMutex
	hooks       map[string]Hook
	unavailable atomic.Bool

	stats dbStats
}

type imageRow struct {
	id     int64
	noteID int64
	key    string
	pos    int
}

type dbStats struct {
	begins         atomic.Int64
	readOnlyBegins atomic.Int64
	commits        atomic.Int64
	rollbacks      atomic.Int64
}

// Stats contadores de transacciones de una base.
type Stats struct {
	Begins         int64
	ReadOnlyBegins int64
	Commits        int64
	Rollbacks      int64
}

func newDB() *DB {
	return &DB{
		accounts:  make(map[int64]*repository.Account),
		notes:     make(map[int64]*repository.Note),
		images:    make(map[int64]*imageRow),
		comments:  make(map[int64]*repository.Comment),
		reactions: make(map[int64]*repository.Reaction),
		reports:   make(map[int64]*repository.Report),
		blocks:    make(map[int64]*repository.Block),
		hooks:     make(map[string]Hook),
	}
}

// SetHook instala un hook para la operación (ej: "notes.delete", "tx.commit").
func (db *DB) SetHook(op string, h Hook) {
	db.hooksMu.Lock()
	db.hooks[op] = h
	db.hooksMu.Unlock()
}

// FailOn hace fallar la operación con err hasta ClearHooks.
func (db *DB) FailOn(op string, err error) {
	db.SetHook(op, func(context.Context) error { return err })
}

// ClearHooks elimina todos los hooks.
func (db *DB) ClearHooks() {
	db.hooksMu.Lock()
	db.hooks = make(map[string]Hook)
	db.hooksMu.Unlock()
}

// SetUnavailable simula una base caída: Connect, Ping y Begin fallan.
func (db *DB) SetUnavailable(down bool) { db.unavailable.Store(down) }

// Stats retorna los contadores de transacciones.
func (db *DB) Stats() Stats {
	return Stats{
		Begins:         db.stats.begins.Load(),
		ReadOnlyBegins: db.stats.readOnlyBegins.Load(),
		Commits:        db.stats.commits.Load(),
		Rollbacks:      db.stats.rollbacks.Load(),
	}
}

// Count retorna la cantidad de filas de una tabla del esquema.
func (db *DB) Count(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch table {
	case "account":
		return len(db.accounts)
	case "note":
		return len(db.notes)
	case "note_image":
		return len(db.images)
	case "comment":
		return len(db.comments)
	case "note_reaction":
		return countWhere(db.reactions, func(r *repository.Reaction) bool { return r.Subject == repository.SubjectNote })
	case "comment_reaction":
		return countWhere(db.reactions, func(r *repository.Reaction) bool { return r.Subject == repository.SubjectComment })
	case "note_report":
		return countWhere(db.reports, func(r *repository.Report) bool { return r.Subject == repository.SubjectNote })
	case "comment_report":
		return countWhere(db.reports, func(r *repository.Report) bool { return r.Subject == repository.SubjectComment })
	case "account_block":
		return len(db.blocks)
	default:
		return -1
	}
}

func countWhere[T any](m map[int64]*T, pred func(*T) bool) int {
	n := 0
	for _, v := range m {
		if pred(v) {
			n++
		}
	}
	return n
}

func (db *DB) available() error {
	if db.unavailable.Load() {
		return ErrUnavailable
	}
	return nil
}

func (db *DB) runHook(ctx context.Context, op string) error {
	db.hooksMu.RLock()
	h := db.hooks[op]
	db.hooksMu.RUnlock()
	if h == nil {
		return nil
	}
	return h(ctx)
}

// nextID requiere db.mu tomado.
func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}
