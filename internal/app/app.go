// Package app arma el grafo de dependencias del proceso a partir de la
// configuración.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/mapping/internal/account"
	"github.com/dropDatabas3/mapping/internal/blob"
	"github.com/dropDatabas3/mapping/internal/config"
	httpapi "github.com/dropDatabas3/mapping/internal/http"
	"github.com/dropDatabas3/mapping/internal/metrics"
	"github.com/dropDatabas3/mapping/internal/observability/logger"
	"github.com/dropDatabas3/mapping/internal/purge"
	"github.com/dropDatabas3/mapping/internal/runlock"
	"github.com/dropDatabas3/mapping/internal/scheduler"
	"github.com/dropDatabas3/mapping/internal/store"
	"github.com/dropDatabas3/mapping/internal/store/routing"

	_ "github.com/dropDatabas3/mapping/internal/store/adapters/dal"
)

// Container agrupa los componentes construidos por Build.
type Container struct {
	Config     *config.Config
	Pools      *store.PoolSet
	DataSource *store.DataSource
	Blobs      *blob.Deleter
	Locker     runlock.Locker
	Purger     *purge.Purger
	Accounts   *account.Service
	Scheduler  *scheduler.Daily
	Registry   *prometheus.Registry
	Ops        *httpapi.Server
}

// Options ajustes que no vienen del archivo de configuración.
type Options struct {
	Version string
	Clock   clock.Clock // nil = clock.WallClock
}

// Build construye el contenedor. No abre conexiones a la base salvo que
// storage.auto_migrate esté activo.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	log := logger.Named("app")

	// En dev el mal uso de Begin/end hace panic en el punto del error.
	routing.SetStrict(cfg.App.Env == "dev")

	primary := adapterConfig(cfg.Storage.Primary)
	replica := adapterConfig(cfg.Storage.Replica)

	if cfg.Storage.AutoMigrate {
		if err := store.Migrate(primary, store.MigrateUp); err != nil {
			return nil, fmt.Errorf("app: migrate: %w", err)
		}
	}

	pools := store.NewPoolSet(primary, replica, store.PoolOptions{
		HealthCheckInterval: cfg.Storage.HealthCheckInterval,
		OnConnect: func(tag routing.Tag, conn store.AdapterConnection) {
			log.Info("pool connected", logger.Pool(string(tag)), logger.Driver(conn.Name()))
		},
		OnDisconnect: func(tag routing.Tag) {
			log.Warn("pool disconnected", logger.Pool(string(tag)))
		},
	})

	c := &Container{Config: cfg, Pools: pools, DataSource: store.NewDataSource(pools)}

	st, err := newBlobStore(ctx, cfg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Blobs = blob.NewDeleter(st, blob.DeleterOptions{
		Attempts: cfg.Blob.Retry.Attempts,
		Delay:    cfg.Blob.Retry.Delay,
		Clock:    clk,
	})

	c.Locker, err = runlock.New(ctx, runlock.Config{
		Driver:   cfg.Scheduler.LockKind,
		Addr:     cfg.Lock.Redis.Addr,
		Password: cfg.Lock.Redis.Password,
		DB:       cfg.Lock.Redis.DB,
		Prefix:   cfg.Lock.Redis.Prefix,
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("app: run lock: %w", err)
	}

	c.Purger = purge.New(c.DataSource, c.Blobs, purge.Options{
		GracePeriod:    cfg.Purge.GracePeriod,
		AccountTimeout: cfg.Purge.AccountTimeout,
		BatchSize:      cfg.Purge.BatchSize,
		Clock:          clk,
	})
	c.Accounts = account.NewService(c.DataSource, clk)

	c.Scheduler, err = newScheduler(cfg, clk, c.Locker, c.Purger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Registry = prometheus.NewRegistry()
	if err := metrics.Register(c.Registry); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	if err := httpapi.RegisterMetrics(c.Registry, pools); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("app: http metrics: %w", err)
	}

	c.Ops = httpapi.NewServer(cfg.Ops.Addr, httpapi.NewRouter(httpapi.Deps{
		Pools:    pools,
		Gatherer: c.Registry,
		Version:  opts.Version,
	}))

	log.Info("container ready",
		logger.String("blob_store", st.Name()),
		logger.String("lock", cfg.Scheduler.LockKind),
		logger.Driver(primary.Name),
	)
	return c, nil
}

// Close libera locker y pools. Es seguro llamarlo con el contenedor a medio
// construir.
func (c *Container) Close() error {
	var errs []error
	if c.Locker != nil {
		errs = append(errs, c.Locker.Close())
	}
	if c.Pools != nil {
		errs = append(errs, c.Pools.Close())
	}
	return errors.Join(errs...)
}

// PurgeJob adapta Purger.Run a un scheduler.Job.
func PurgeJob(p *purge.Purger) scheduler.Job {
	return func(ctx context.Context) error {
		rep, err := p.Run(ctx)
		if err != nil {
			return err
		}
		if rep.Failed > 0 {
			logger.From(ctx).Warn("purge run finished with failures",
				logger.RunID(rep.RunID.String()),
				logger.Int("failed", rep.Failed),
				logger.Int("purged", rep.Purged),
			)
		}
		return nil
	}
}

// ─── Helpers ───

func adapterConfig(p config.PoolConfig) store.AdapterConfig {
	return store.AdapterConfig{
		Name:            p.Driver,
		DSN:             p.DSN,
		MaxOpenConns:    p.MaxOpenConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
		ConnectTimeout:  p.ConnectTimeout,
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	s3c := cfg.Blob.S3
	switch cfg.Blob.Kind {
	case "s3":
		st, err := blob.NewS3(ctx, blob.S3Config{
			Bucket:          s3c.Bucket,
			Region:          s3c.Region,
			Endpoint:        s3c.Endpoint,
			BaseURL:         s3c.BaseURL,
			Prefix:          s3c.Prefix,
			AccessKeyID:     s3c.AccessKeyID,
			SecretAccessKey: s3c.SecretAccessKey,
			UsePathStyle:    s3c.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("app: blob store: %w", err)
		}
		return st, nil
	case "fs":
		// Las referencias guardadas usan la misma URL pública que en S3.
		st, err := blob.NewFS(cfg.Blob.FS.Root, blob.KeyOptions{
			BaseURL: s3c.BaseURL,
			Prefix:  s3c.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("app: blob store: %w", err)
		}
		return st, nil
	case "memory":
		logger.L().Warn("using in-memory blob store; blob deletes are not persisted")
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("app: unknown blob kind %q", cfg.Blob.Kind)
	}
}

func newScheduler(cfg *config.Config, clk clock.Clock, locker runlock.Locker, p *purge.Purger) (*scheduler.Daily, error) {
	hour, minute, err := config.ParseClock(cfg.Scheduler.DailyAt)
	if err != nil {
		return nil, fmt.Errorf("app: scheduler: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Scheduler.Location)
	if err != nil {
		return nil, fmt.Errorf("app: scheduler location: %w", err)
	}
	return &scheduler.Daily{
		Name:     "retention-purge",
		Hour:     hour,
		Minute:   minute,
		Location: loc,
		Clock:    clk,
		Locker:   locker,
		LockName: cfg.Scheduler.LockName,
		LockTTL:  cfg.Scheduler.LockTTL,
		// renueva tres veces por TTL mientras la purga corre
		RenewEvery: cfg.Scheduler.LockTTL / 3,
		Job:        PurgeJob(p),
	}, nil
}

// LoggerConfig traduce la sección log a logger.Config.
func LoggerConfig(cfg *config.Config, version string) logger.Config {
	return logger.Config{
		Env:         cfg.Log.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Version:     version,
	}
}
