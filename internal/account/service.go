// Package account implementa el retiro (soft delete) de cuentas y la
// consulta de perfil. La purga definitiva vive en internal/purge.
package account

import (
	"context"
	"errors"

	"github.com/juju/clock"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
	"github.com/dropDatabas3/mapping/internal/observability/logger"
	"github.com/dropDatabas3/mapping/internal/store"
)

// ErrAlreadyDeleted indica que la cuenta ya fue retirada.
var ErrAlreadyDeleted = errors.New("account: already deleted")

// Units ejecuta unidades de trabajo (implementado por *store.DataSource).
type Units interface {
	Read(ctx context.Context, fn store.UnitFunc) error
	Write(ctx context.Context, fn store.UnitFunc) error
}

type Service struct {
	units Units
	clock clock.Clock
}

func NewService(units Units, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Service{units: units, clock: clk}
}

// Withdraw marca la cuenta como eliminada. La referencia a la imagen de
// perfil se conserva para que el purgador borre el blob.
func (s *Service) Withdraw(ctx context.Context, id int64) error {
	at := s.clock.Now().UTC()
	err := s.units.Write(ctx, func(ctx context.Context, tx store.Tx) error {
		acc, err := tx.Accounts().Get(ctx, id)
		if err != nil {
			return err
		}
		if acc.Deleted {
			return ErrAlreadyDeleted
		}
		return tx.Accounts().MarkDeleted(ctx, id, at)
	})
	if err != nil {
		return err
	}
	logger.From(ctx).Info("account withdrawn", logger.AccountID(id), logger.Time("deleted_at", at))
	return nil
}

// Get lee la cuenta en una unidad read-only (replica).
func (s *Service) Get(ctx context.Context, id int64) (*repository.Account, error) {
	var acc *repository.Account
	err := s.units.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		acc, err = tx.Accounts().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}
