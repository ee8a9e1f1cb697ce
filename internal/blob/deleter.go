package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"

	"github.com/dropDatabas3/mapping/internal/observability/logger"
)

// Result es el desenlace de un borrado exitoso.
type Result int

const (
	// Deleted: el objeto existía y se borró.
	Deleted Result = iota + 1
	// AlreadyGone: el objeto no existía (cuenta como éxito).
	AlreadyGone
)

func (r Result) String() string {
	switch r {
	case Deleted:
		return "deleted"
	case AlreadyGone:
		return "not_found"
	default:
		return "unknown"
	}
}

// DeleterOptions configura los reintentos.
type DeleterOptions struct {
	Attempts int           // default 3
	Delay    time.Duration // default 500ms, se duplica entre intentos
	MaxDelay time.Duration // default 8*Delay
	Clock    clock.Clock   // default clock.WallClock
}

// Deleter envuelve un Store con reintentos acotados. Nunca reintenta
// ErrNotFound ni ErrInvalidKey.
type Deleter struct {
	store Store
	args  retry.CallArgs
}

func NewDeleter(store Store, opts DeleterOptions) *Deleter {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 8 * opts.Delay
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Deleter{
		store: store,
		args: retry.CallArgs{
			IsFatalError: isFatal,
			Attempts:     opts.Attempts,
			Delay:        opts.Delay,
			MaxDelay:     opts.MaxDelay,
			BackoffFunc:  retry.DoubleDelay,
			Clock:        opts.Clock,
		},
	}
}

// Store retorna el backend envuelto.
func (d *Deleter) Store() Store { return d.store }

// Delete borra key. Retorna AlreadyGone (sin error) si no existía.
func (d *Deleter) Delete(ctx context.Context, key string) (Result, error) {
	args := d.args // copia
	args.Stop = ctx.Done()

	log := logger.From(ctx)
	var last error
	args.Func = func() error {
		last = d.store.Delete(ctx, key)
		return last
	}
	args.NotifyFunc = func(err error, attempt int) {
		if isFatal(err) {
			return
		}
		log.Debug("blob delete attempt failed",
			logger.BlobKey(key),
			zap.Int("attempt", attempt),
			logger.Err(err),
		)
	}

	err := retry.Call(args)
	switch {
	case err == nil:
		return Deleted, nil
	case errors.Is(last, ErrNotFound):
		return AlreadyGone, nil
	case retry.IsAttemptsExceeded(err):
		return 0, fmt.Errorf("blob: delete %s failed after %d attempts: %w", key, args.Attempts, last)
	case retry.IsRetryStopped(err):
		if cerr := ctx.Err(); cerr != nil {
			return 0, fmt.Errorf("blob: delete %s: %w", key, cerr)
		}
		return 0, fmt.Errorf("blob: delete %s: %w", key, last)
	case last != nil:
		return 0, last
	default:
		return 0, err
	}
}

func isFatal(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
