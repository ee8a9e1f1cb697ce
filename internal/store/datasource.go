package store

import (
	"context"
	"errors"

	"github.com/dropDatabas3/mapping/internal/metrics"
	"github.com/dropDatabas3/mapping/internal/observability/logger"
	"github.com/dropDatabas3/mapping/internal/store/routing"
)

// UnitFunc es el cuerpo de una unidad de trabajo. El ctx recibido lleva el
// frame de routing de la unidad; tx no debe usarse fuera de fn.
type UnitFunc func(ctx context.Context, tx Tx) error

// DataSource ejecuta unidades de trabajo contra el pool que decide el router.
type DataSource struct {
	pools *PoolSet
}

// NewDataSource crea la fachada sobre un PoolSet.
func NewDataSource(pools *PoolSet) *DataSource {
	return &DataSource{pools: pools}
}

// Pools retorna el PoolSet subyacente.
func (d *DataSource) Pools() *PoolSet { return d.pools }

// Read ejecuta fn como unidad read-only (replica).
func (d *DataSource) Read(ctx context.Context, fn UnitFunc) error {
	return d.Execute(ctx, routing.ReadOnly, fn)
}

// Write ejecuta fn como unidad read-write (primary).
func (d *DataSource) Write(ctx context.Context, fn UnitFunc) error {
	return d.Execute(ctx, routing.ReadWrite, fn)
}

// Execute abre el frame de routing antes de adquirir la conexión, abre una
// transacción (read-only si intent lo es) en el pool seleccionado y corre fn.
// Commit si fn retorna nil; rollback ante error o panic. El frame se cierra
// siempre. Una Execute anidada es una unidad independiente.
func (d *DataSource) Execute(ctx context.Context, intent routing.Intent, fn UnitFunc) (err error) {
	ctx, end := routing.Begin(ctx, intent)
	tag := routing.CurrentTag(ctx)
	outcome := "rollback"
	defer func() {
		if endErr := end(); endErr != nil {
			outcome = "misuse"
			err = errors.Join(err, endErr)
		}
		metrics.UnitsOfWorkTotal.WithLabelValues(tag.String(), outcome).Inc()
	}()

	conn, err := d.pools.Get(ctx, tag)
	if err != nil {
		outcome = "unavailable"
		return err
	}

	tx, err := conn.Begin(ctx, TxOptions{ReadOnly: intent == routing.ReadOnly})
	if err != nil {
		if errors.Is(err, ErrConnectionUnavailable) {
			outcome = "unavailable"
		}
		return &PoolError{Tag: tag, Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.From(ctx).Warn("rollback failed",
				logger.Pool(tag.String()), logger.Intent(intent.String()), logger.Err(rbErr))
		}
		return &PoolError{Tag: tag, Op: "execute", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PoolError{Tag: tag, Op: "commit", Err: err}
	}
	outcome = "commit"
	return nil
}
