// Package pg implementa el adapter PostgreSQL sobre pgx/v5.
// Cada pool (primary, replica) es un pgxpool.Pool independiente.
package pg

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/store"
)

func init() {
	store.RegisterAdapter(&pgAdapter{})
}

type pgAdapter struct{}

func (a *pgAdapter) Name() string { return "postgres" }

func (a *pgAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pg: DSN required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(min(cfg.MaxIdleConns, int(poolCfg.MaxConns)))
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &pgConnection{pool: pool}, nil
}

type pgConnection struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

func (c *pgConnection) Name() string { return "postgres" }

func (c *pgConnection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *pgConnection) Close() error {
	c.closed.Store(true)
	c.pool.Close()
	return nil
}

// Begin abre la transacción; con ReadOnly usa BEGIN READ ONLY, así que el
// propio servidor rechaza escrituras (SQLSTATE 25006).
func (c *pgConnection) Begin(ctx context.Context, opts store.TxOptions) (store.Tx, error) {
	txOpts := pgx.TxOptions{}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	if c.closed.Load() {
		return nil, fmt.Errorf("%w: pg: pool closed", store.ErrConnectionUnavailable)
	}
	tx, err := c.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, beginErr(ctx, err)
	}
	return &pgTx{tx: tx}, nil
}

func (c *pgConnection) Stats() store.ConnStats {
	s := c.pool.Stat()
	return store.ConnStats{
		Driver:        "postgres",
		MaxConns:      int64(s.MaxConns()),
		TotalConns:    int64(s.TotalConns()),
		IdleConns:     int64(s.IdleConns()),
		AcquiredConns: int64(s.AcquiredConns()),
	}
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Accounts() repository.AccountRepository   { return &accountRepo{tx: t.tx} }
func (t *pgTx) Notes() repository.NoteRepository         { return &noteRepo{tx: t.tx} }
func (t *pgTx) Comments() repository.CommentRepository   { return &commentRepo{tx: t.tx} }
func (t *pgTx) Reactions() repository.ReactionRepository { return &reactionRepo{tx: t.tx} }
func (t *pgTx) Reports() repository.ReportRepository     { return &reportRepo{tx: t.tx} }
func (t *pgTx) Blocks() repository.BlockRepository       { return &blockRepo{tx: t.tx} }

func (t *pgTx) Commit(ctx context.Context) error   { return mapErr(t.tx.Commit(ctx)) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// beginErr marca como ErrConnectionUnavailable las fallas de Begin que
// vienen de la conexión (connect, acquire, red) y no de la consulta.
func beginErr(ctx context.Context, err error) error {
	if isConnErr(ctx, err) {
		return fmt.Errorf("%w: %w", store.ErrConnectionUnavailable, err)
	}
	return mapErr(err)
}

func isConnErr(ctx context.Context, err error) bool {
	var connErr *pgconn.ConnectError
	var opErr *net.OpError
	switch {
	case errors.As(err, &connErr), errors.As(err, &opErr):
		return true
	case pgconn.SafeToRetry(err):
		return true
	case ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		// timeout del acquire o del connect, no del caller
		return true
	}
	return false
}

// mapErr traduce errores de pgx a errores de dominio.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ReadOnlySQLTransaction:
			return fmt.Errorf("%w: %s", repository.ErrReadOnly, pgErr.Message)
		case pgerrcode.ForeignKeyViolation, pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.Message)
		}
	}
	return err
}
