// Package runlock provee un lock de ejecución con TTL para jobs periódicos.
//
// Soporta:
//   - Memory (in-process, un solo nodo o tests)
//   - Redis (distribuido, varias réplicas del servicio)
//
// El TTL es el timeout de staleness: si el holder muere sin liberar, el lock
// expira solo.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrHeld indica que otro holder tiene el lock vigente.
	ErrHeld = errors.New("runlock: lock is held")
	// ErrNotHeld indica que el lease ya expiró o fue tomado por otro.
	ErrNotHeld = errors.New("runlock: lease no longer held")
)

// Locker adquiere locks por nombre.
type Locker interface {
	// Acquire toma el lock o retorna ErrHeld.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
	// Close libera recursos del backend.
	Close() error
}

// Lease representa un lock adquirido.
type Lease interface {
	Name() string
	Token() string
	// Extend renueva el TTL solo si el lock sigue siendo nuestro; si no,
	// retorna ErrNotHeld.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release libera el lock solo si sigue siendo nuestro.
	Release(ctx context.Context) error
}

// Config configuración para crear un Locker.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys
}

// New crea un Locker según la configuración.
func New(ctx context.Context, cfg Config) (Locker, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("runlock: unknown driver %q", cfg.Driver)
	}
}

func newToken() string { return uuid.NewString() }

func prefixed(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

type lease struct {
	name    string
	token   string
	extend  func(ctx context.Context, ttl time.Duration) error
	release func(ctx context.Context) error
}

func (l *lease) Name() string                      { return l.name }
func (l *lease) Token() string                     { return l.token }
func (l *lease) Release(ctx context.Context) error { return l.release(ctx) }

func (l *lease) Extend(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("runlock: ttl must be positive")
	}
	return l.extend(ctx, ttl)
}
