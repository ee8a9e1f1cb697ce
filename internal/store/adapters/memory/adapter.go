// Package memory implementa un adapter en proceso para tests y desarrollo
// local.
//
// Las bases se comparten por DSN: dos pools (primary y replica) abiertos con
// el mismo DSN ven los mismos datos, como una réplica sin lag. Con DSNs
// distintos son bases independientes.
//
// Las transacciones aplican cada escritura en el momento y guardan un undo
// log; Rollback lo aplica en orden inverso. No hay aislamiento entre
// transacciones concurrentes (read uncommitted), lo que alcanza para tests y
// evita bloqueos entre unidades de trabajo anidadas.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dropDatabas3/mapping/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

var (
	errClosed = errors.New("memory: pool closed")
	errTxDone = errors.New("memory: transaction already finished")
)

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := cfg.DSN
	if name == "" {
		name = "default"
	}
	db := Open(name)
	if err := db.available(); err != nil {
		return nil, err
	}
	return &memoryConnection{db: db, maxConns: int64(cfg.MaxOpenConns)}, nil
}

type memoryConnection struct {
	db       *DB
	maxConns int64
	active   atomic.Int64
	closed   atomic.Bool
}

func (c *memoryConnection) Name() string { return "memory" }

func (c *memoryConnection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return errClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.available()
}

func (c *memoryConnection) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *memoryConnection) Begin(ctx context.Context, opts store.TxOptions) (store.Tx, error) {
	if c.closed.Load() {
		return nil, unavailable(errClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.db.available(); err != nil {
		return nil, unavailable(err)
	}
	if err := c.db.runHook(ctx, "tx.begin"); err != nil {
		return nil, err
	}
	c.active.Add(1)
	c.db.stats.begins.Add(1)
	if opts.ReadOnly {
		c.db.stats.readOnlyBegins.Add(1)
	}
	return &memoryTx{db: c.db, conn: c, readOnly: opts.ReadOnly}, nil
}

func (c *memoryConnection) Stats() store.ConnStats {
	active := c.active.Load()
	return store.ConnStats{
		Driver:        "memory",
		MaxConns:      c.maxConns,
		TotalConns:    active,
		AcquiredConns: active,
	}
}

// unavailable marca fallas de conexión de un pool ya abierto.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", store.ErrConnectionUnavailable, err)
}
