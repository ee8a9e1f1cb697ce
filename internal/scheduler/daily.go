// Package scheduler dispara un job una vez por día a hora fija, bajo un
// run-lock para que dos procesos no corran el mismo job a la vez.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/dropDatabas3/mapping/internal/metrics"
	"github.com/dropDatabas3/mapping/internal/observability/logger"
	"github.com/dropDatabas3/mapping/internal/runlock"
)

// Job es el trabajo programado.
type Job func(ctx context.Context) error

// Daily corre Job todos los días a Hour:Minute en Location.
type Daily struct {
	Name         string
	Hour, Minute int
	Location     *time.Location // nil = time.Local
	Clock        clock.Clock    // nil = clock.WallClock
	Locker       runlock.Locker
	LockName     string // default Name
	LockTTL      time.Duration
	// RenewEvery renueva el lease mientras el job corre (0 = sin renovar;
	// entonces LockTTL debe cubrir la corrida más larga). Si la renovación
	// falla se cancela el ctx del job.
	RenewEvery time.Duration
	Job        Job
}

func (d *Daily) clock() clock.Clock {
	if d.Clock == nil {
		return clock.WallClock
	}
	return d.Clock
}

func (d *Daily) location() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

// NextRun retorna el próximo disparo estrictamente posterior a now.
func (d *Daily) NextRun(now time.Time) time.Time {
	loc := d.location()
	n := now.In(loc)
	next := time.Date(n.Year(), n.Month(), n.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(n) {
		next = time.Date(n.Year(), n.Month(), n.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

// Start bloquea disparando el job hasta que ctx se cancele. Las fallas del
// job se loguean y no detienen el loop.
func (d *Daily) Start(ctx context.Context) error {
	if d.Job == nil || d.Locker == nil {
		return errors.New("scheduler: job and locker are required")
	}
	ctx, log := logger.Scoped(ctx, logger.Component("scheduler"), logger.String("job", d.Name))
	clk := d.clock()

	for {
		now := clk.Now()
		next := d.NextRun(now)
		log.Info("next run scheduled", logger.Time("at", next))

		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return nil
		case <-clk.After(next.Sub(now)):
		}

		if err := d.RunNow(ctx); err != nil && !errors.Is(err, runlock.ErrHeld) {
			log.Error("scheduled run failed", logger.Err(err))
		}
	}
}

// RunNow toma el run-lock y corre el job una vez. Si otro holder tiene el
// lock retorna runlock.ErrHeld sin correr nada.
func (d *Daily) RunNow(ctx context.Context) error {
	log := logger.From(ctx)
	lockName := d.LockName
	if lockName == "" {
		lockName = d.Name
	}

	lease, err := d.Locker.Acquire(ctx, lockName, d.LockTTL)
	if errors.Is(err, runlock.ErrHeld) {
		metrics.ScheduledRunsTotal.WithLabelValues(d.Name, "skipped").Inc()
		log.Warn("run skipped, lock held by another runner", logger.String("lock", lockName))
		return err
	}
	if err != nil {
		metrics.ScheduledRunsTotal.WithLabelValues(d.Name, "failed").Inc()
		return fmt.Errorf("scheduler: acquire lock %s: %w", lockName, err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("lock release failed", logger.String("lock", lockName), logger.Err(err))
		}
	}()

	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if d.RenewEvery > 0 {
		stop := d.keepAlive(jobCtx, lease, cancel)
		defer stop()
	}

	err = d.Job(jobCtx)
	if lost := context.Cause(jobCtx); lost != nil && ctx.Err() == nil {
		err = errors.Join(err, lost)
	}
	if err != nil {
		metrics.ScheduledRunsTotal.WithLabelValues(d.Name, "failed").Inc()
		return err
	}
	metrics.ScheduledRunsTotal.WithLabelValues(d.Name, "ok").Inc()
	return nil
}

// keepAlive extiende el lease cada RenewEvery hasta que stop se llame. Si
// el lease se pierde cancela ctx con la causa.
func (d *Daily) keepAlive(ctx context.Context, lease runlock.Lease, lost context.CancelCauseFunc) (stop func()) {
	log := logger.From(ctx)
	clk := d.clock()
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		timer := clk.NewTimer(d.RenewEvery)
		defer timer.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-timer.Chan():
			}
			if err := lease.Extend(ctx, d.LockTTL); err != nil {
				log.Error("lock renewal failed, canceling run",
					logger.String("lock", lease.Name()), logger.Err(err))
				lost(fmt.Errorf("scheduler: lock %s lost: %w", lease.Name(), err))
				return
			}
			log.Debug("lock renewed", logger.String("lock", lease.Name()))
			timer.Reset(d.RenewEvery)
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
