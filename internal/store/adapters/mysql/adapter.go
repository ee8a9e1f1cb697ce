// Package mysql implementa el adapter MySQL para el store.
// Usa database/sql con github.com/go-sql-driver/mysql.
//
// Requisitos:
//   - MySQL 8.0+ (START TRANSACTION READ ONLY)
//   - DSN format: user:password@tcp(host:port)/database
//     (parseTime=true se fuerza al conectar)
package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/store"
)

func init() {
	store.RegisterAdapter(&mysqlAdapter{})
}

// Códigos de error del servidor que se traducen a errores de dominio.
const (
	erDupEntry              = 1062
	erRowIsReferenced       = 1451
	erNoReferencedRow       = 1452
	erCantExecuteReadOnlyTx = 1792
)

type mysqlAdapter struct{}

func (a *mysqlAdapter) Name() string { return "mysql" }

func (a *mysqlAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql: DSN required")
	}
	dsnCfg, err := mysqldrv.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse DSN: %w", err)
	}
	dsnCfg.ParseTime = true
	if dsnCfg.Loc == nil {
		dsnCfg.Loc = time.UTC
	}

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping failed: %w", err)
	}
	return &mysqlConnection{db: db}, nil
}

type mysqlConnection struct {
	db     *sql.DB
	closed atomic.Bool
}

func (c *mysqlConnection) Name() string { return "mysql" }

func (c *mysqlConnection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *mysqlConnection) Close() error {
	c.closed.Store(true)
	return c.db.Close()
}

// Begin usa START TRANSACTION READ ONLY cuando opts.ReadOnly.
func (c *mysqlConnection) Begin(ctx context.Context, opts store.TxOptions) (store.Tx, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("%w: mysql: pool closed", store.ErrConnectionUnavailable)
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, beginErr(ctx, err)
	}
	return &mysqlTx{tx: tx}, nil
}

func (c *mysqlConnection) Stats() store.ConnStats {
	s := c.db.Stats()
	return store.ConnStats{
		Driver:        "mysql",
		MaxConns:      int64(s.MaxOpenConnections),
		TotalConns:    int64(s.OpenConnections),
		IdleConns:     int64(s.Idle),
		AcquiredConns: int64(s.InUse),
	}
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) Accounts() repository.AccountRepository   { return &accountRepo{tx: t.tx} }
func (t *mysqlTx) Notes() repository.NoteRepository         { return &noteRepo{tx: t.tx} }
func (t *mysqlTx) Comments() repository.CommentRepository   { return &commentRepo{tx: t.tx} }
func (t *mysqlTx) Reactions() repository.ReactionRepository { return &reactionRepo{tx: t.tx} }
func (t *mysqlTx) Reports() repository.ReportRepository     { return &reportRepo{tx: t.tx} }
func (t *mysqlTx) Blocks() repository.BlockRepository       { return &blockRepo{tx: t.tx} }

func (t *mysqlTx) Commit(_ context.Context) error   { return mapErr(t.tx.Commit()) }
func (t *mysqlTx) Rollback(_ context.Context) error { return t.tx.Rollback() }

// mapErr traduce errores del driver a errores de dominio.
// beginErr marca como ErrConnectionUnavailable las fallas de Begin que
// vienen de la conexión y no del servidor.
func beginErr(ctx context.Context, err error) error {
	var opErr *net.OpError
	switch {
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysqldrv.ErrInvalidConn), errors.As(err, &opErr):
		return fmt.Errorf("%w: %w", store.ErrConnectionUnavailable, err)
	case ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", store.ErrConnectionUnavailable, err)
	}
	return mapErr(err)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case erCantExecuteReadOnlyTx:
			return fmt.Errorf("%w: %s", repository.ErrReadOnly, myErr.Message)
		case erDupEntry, erRowIsReferenced, erNoReferencedRow:
			return fmt.Errorf("%w: %s", repository.ErrConflict, myErr.Message)
		}
	}
	return err
}
