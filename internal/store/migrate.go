package store

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	mysqlmigrations "github.com/dropDatabas3/mapping/migrations/mysql"
	pgmigrations "github.com/dropDatabas3/mapping/migrations/postgres"

	"github.com/dropDatabas3/mapping/internal/observability/logger"
)

// MigrateDirection up o down.
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// Migrate aplica las migraciones embebidas del driver de cfg.
// El adapter memory no tiene esquema y es no-op.
func Migrate(cfg AdapterConfig, dir MigrateDirection) error {
	src, dbURL, err := migrationTarget(cfg)
	if err != nil {
		return err
	}
	if src == nil {
		return nil
	}

	source, err := iofs.New(src, ".")
	if err != nil {
		return fmt.Errorf("migrate: source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("migrate: init: %w", err)
	}
	defer m.Close()

	switch dir {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Down()
	default:
		return fmt.Errorf("migrate: unknown direction %q", dir)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}

	version, dirty, _ := m.Version()
	logger.L().Info("migrations applied",
		logger.Driver(cfg.Name),
		logger.String("direction", string(dir)),
		logger.Int("version", int(version)),
		logger.Bool("dirty", dirty),
	)
	return nil
}

// migrationTarget resuelve el FS de migraciones y la URL de golang-migrate.
func migrationTarget(cfg AdapterConfig) (fs.FS, string, error) {
	switch cfg.Name {
	case "postgres":
		dsn := cfg.DSN
		for _, prefix := range []string{"postgresql://", "postgres://"} {
			if strings.HasPrefix(dsn, prefix) {
				return pgmigrations.FS, "pgx5://" + strings.TrimPrefix(dsn, prefix), nil
			}
		}
		return nil, "", fmt.Errorf("migrate: postgres DSN must be a URL (postgres://...)")
	case "mysql":
		dsn := strings.TrimPrefix(cfg.DSN, "mysql://")
		if !strings.Contains(dsn, "multiStatements=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "multiStatements=true"
		}
		return mysqlmigrations.FS, "mysql://" + dsn, nil
	case "memory":
		return nil, "", nil
	default:
		return nil, "", fmt.Errorf("migrate: unsupported driver %q", cfg.Name)
	}
}
