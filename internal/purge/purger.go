// Package purge implementa la purga definitiva de cuentas soft-deleted cuyo
// período de gracia venció.
//
// Cada cuenta se procesa en orden de dependencias, hojas primero:
//
//	PURGING_CONTENT   notas (blobs, reacciones, reportes, comentarios, fila),
//	                  comentarios propios en notas ajenas, reacciones y
//	                  reportes hechos por la cuenta
//	PURGING_RELATIONS bloqueos en ambas direcciones
//	PURGING_BLOBS     imagen de perfil
//	PURGED            fila de la cuenta
//
// Todos los pasos son idempotentes: una corrida interrumpida retoma desde
// el principio sin errores ni dobles conteos. Una falla en una cuenta no
// aborta la corrida; la cuenta queda elegible para la próxima.
package purge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/dropDatabas3/mapping/internal/blob"
	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/metrics"
	"github.com/dropDatabas3/mapping/internal/observability/logger"
	"github.com/dropDatabas3/mapping/internal/store"
)

// DefaultGracePeriod es el período de gracia por defecto (90 días).
const DefaultGracePeriod = 90 * 24 * time.Hour

// Units ejecuta unidades de trabajo (implementado por *store.DataSource).
type Units interface {
	Read(ctx context.Context, fn store.UnitFunc) error
	Write(ctx context.Context, fn store.UnitFunc) error
}

// BlobDeleter borra blobs externos (implementado por *blob.Deleter).
type BlobDeleter interface {
	Delete(ctx context.Context, key string) (blob.Result, error)
}

// Options configura el purgador.
type Options struct {
	GracePeriod time.Duration // default 90d
	// AccountTimeout limita la purga de una cuenta (0 = default 2m, <0 = sin límite).
	AccountTimeout time.Duration
	BatchSize      int         // default 500
	Clock          clock.Clock // default clock.WallClock
}

// Purger borra cuentas vencidas junto con todo su grafo de datos.
// Asume a lo sumo una invocación concurrente; el mutex lo garantiza dentro
// del proceso y el run-lock del scheduler entre procesos.
type Purger struct {
	units Units
	blobs BlobDeleter
	opts  Options

	mu sync.Mutex
}

// New crea el purgador.
func New(units Units, blobs BlobDeleter, opts Options) *Purger {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.AccountTimeout == 0 {
		opts.AccountTimeout = 2 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Purger{units: units, blobs: blobs, opts: opts}
}

// Cutoff retorna el instante límite de deleted_at para now.
func (p *Purger) Cutoff(now time.Time) time.Time {
	return now.Add(-p.opts.GracePeriod)
}

// Eligible lista las cuentas elegibles al instante actual en una unidad
// read-only (puede correr contra la replica). No borra nada.
func (p *Purger) Eligible(ctx context.Context) ([]repository.Account, error) {
	cutoff := p.Cutoff(p.opts.Clock.Now())
	var out []repository.Account
	var afterID int64
	for {
		batch, err := p.eligibleBatch(ctx, cutoff, afterID)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < p.opts.BatchSize {
			return out, nil
		}
		afterID = batch[len(batch)-1].ID
	}
}

func (p *Purger) eligibleBatch(ctx context.Context, cutoff time.Time, afterID int64) ([]repository.Account, error) {
	var batch []repository.Account
	err := p.units.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		batch, err = tx.Accounts().FindPurgeable(ctx, cutoff, afterID, p.opts.BatchSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("purge: select eligible accounts: %w", err)
	}
	return batch, nil
}

// Run ejecuta una corrida completa. Solo retorna error si no se pudo
// seleccionar cuentas o si ctx se canceló; las fallas por cuenta quedan en
// el Report.
func (p *Purger) Run(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := &Report{RunID: uuid.New(), Started: p.opts.Clock.Now()}
	report.Cutoff = p.Cutoff(report.Started)

	ctx, log := logger.Scoped(ctx, logger.Component("purge"), logger.RunID(report.RunID.String()))
	log.Info("purge run started", logger.Time("cutoff", report.Cutoff))

	runErr := p.run(ctx, report)

	report.Finished = p.opts.Clock.Now()
	result := "completed"
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		result = "canceled"
	case runErr != nil:
		result = "failed"
	}
	metrics.PurgeRunsTotal.WithLabelValues(result).Inc()
	metrics.PurgeRunDuration.Observe(report.Duration().Seconds())

	fields := []zap.Field{
		logger.String("result", result),
		logger.Int("eligible", report.Eligible),
		logger.Int("purged", report.Purged),
		logger.Int("failed", report.Failed),
		zap.Int64("rows_deleted", report.RowsDeleted),
		logger.Int("blobs_deleted", report.BlobsDeleted),
		logger.Duration(report.Duration()),
	}
	if runErr != nil {
		log.Error("purge run aborted", append(fields, logger.Err(runErr))...)
		return report, runErr
	}
	log.Info("purge run finished", fields...)
	return report, nil
}

func (p *Purger) run(ctx context.Context, report *Report) error {
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := p.eligibleBatch(ctx, report.Cutoff, afterID)
		if err != nil {
			return err
		}
		for _, acc := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			afterID = acc.ID
			report.add(p.purgeAccount(ctx, acc.ID, report.Cutoff))
		}
		if len(batch) < p.opts.BatchSize {
			return nil
		}
	}
}

// PurgeAccount purga una cuenta puntual si es elegible al instante actual.
// Es la misma secuencia que usa Run y se puede reinvocar sin efectos extra.
func (p *Purger) PurgeAccount(ctx context.Context, accountID int64) AccountResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.Cutoff(p.opts.Clock.Now())
	ctx, _ = logger.Scoped(ctx, logger.Component("purge"))
	return p.purgeAccount(ctx, accountID, cutoff)
}
