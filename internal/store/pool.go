package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/mapping/internal/observability/logger"
	"github.com/dropDatabas3/mapping/internal/store/routing"
)

// PoolSet administra los dos pools del proceso (primary y replica).
// Cada pool se abre en el primer uso; singleflight evita connects duplicados.
type PoolSet struct {
	cfgs  map[routing.Tag]AdapterConfig
	conns sync.Map // routing.Tag → *poolEntry
	sf    singleflight.Group
	opts  PoolOptions

	stopOnce sync.Once
	stop     chan struct{}
}

// PoolOptions opciones del PoolSet.
type PoolOptions struct {
	// HealthCheckInterval intervalo de ping a los pools abiertos (0 = off).
	// Un pool que no responde se cierra y se reabre en el próximo Get.
	HealthCheckInterval time.Duration

	// OnConnect callback cuando se abre un pool
	OnConnect func(tag routing.Tag, conn AdapterConnection)

	// OnDisconnect callback cuando se cierra un pool
	OnDisconnect func(tag routing.Tag)
}

type poolEntry struct {
	conn       AdapterConnection
	createdAt  time.Time
	lastUsedAt time.Time
	mu         sync.Mutex
}

func (e *poolEntry) touch() {
	e.mu.Lock()
	e.lastUsedAt = time.Now()
	e.mu.Unlock()
}

// NewPoolSet crea el par de pools. No abre conexiones.
func NewPoolSet(primary, replica AdapterConfig, opts PoolOptions) *PoolSet {
	p := &PoolSet{
		cfgs: map[routing.Tag]AdapterConfig{
			routing.Primary: primary,
			routing.Replica: replica,
		},
		opts: opts,
		stop: make(chan struct{}),
	}
	if opts.HealthCheckInterval > 0 {
		go p.healthCheckLoop(opts.HealthCheckInterval)
	}
	return p
}

// Get retorna el pool del tag, abriéndolo si hace falta. Un tag desconocido
// resuelve a primary. Si el pool no se puede abrir retorna un *PoolError que
// envuelve ErrConnectionUnavailable; nunca cae al otro pool.
func (p *PoolSet) Get(ctx context.Context, tag routing.Tag) (AdapterConnection, error) {
	if _, ok := p.cfgs[tag]; !ok {
		tag = routing.Primary
	}
	if val, ok := p.conns.Load(tag); ok {
		entry := val.(*poolEntry)
		entry.touch()
		return entry.conn, nil
	}

	result, err, _ := p.sf.Do(tag.String(), func() (interface{}, error) {
		if val, ok := p.conns.Load(tag); ok {
			return val.(*poolEntry).conn, nil
		}
		cfg := p.cfgs[tag]

		// El connect no depende de la cancelación del primer caller:
		// otros callers comparten este resultado.
		cctx := context.WithoutCancel(ctx)
		if cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(cctx, cfg.ConnectTimeout)
			defer cancel()
		}
		conn, err := OpenAdapter(cctx, cfg)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		p.conns.Store(tag, &poolEntry{conn: conn, createdAt: now, lastUsedAt: now})
		logger.L().Info("pool connected",
			logger.Pool(tag.String()), logger.Driver(cfg.Name))
		if p.opts.OnConnect != nil {
			p.opts.OnConnect(tag, conn)
		}
		return conn, nil
	})
	if err != nil {
		return nil, &PoolError{Tag: tag, Op: "connect", Err: fmt.Errorf("%w: %w", ErrConnectionUnavailable, err)}
	}
	return result.(AdapterConnection), nil
}

// Ping abre (si hace falta) y verifica el pool del tag.
func (p *PoolSet) Ping(ctx context.Context, tag routing.Tag) error {
	conn, err := p.Get(ctx, tag)
	if err != nil {
		return err
	}
	if err := conn.Ping(ctx); err != nil {
		return &PoolError{Tag: tag, Op: "ping", Err: fmt.Errorf("%w: %w", ErrConnectionUnavailable, err)}
	}
	return nil
}

// Has verifica si el pool del tag está abierto.
func (p *PoolSet) Has(tag routing.Tag) bool {
	_, ok := p.conns.Load(tag)
	return ok
}

// Config retorna la configuración del pool del tag.
func (p *PoolSet) Config(tag routing.Tag) AdapterConfig {
	return p.cfgs[tag]
}

func (p *PoolSet) closeTag(tag routing.Tag) error {
	val, ok := p.conns.LoadAndDelete(tag)
	if !ok {
		return nil
	}
	if p.opts.OnDisconnect != nil {
		p.opts.OnDisconnect(tag)
	}
	return val.(*poolEntry).conn.Close()
}

// Close detiene el health check y cierra ambos pools.
func (p *PoolSet) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })

	var errs []error
	for _, tag := range []routing.Tag{routing.Primary, routing.Replica} {
		if err := p.closeTag(tag); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tag, err))
		}
	}
	return errors.Join(errs...)
}

// Stats retorna estadísticas de los pools abiertos.
func (p *PoolSet) Stats() PoolStats {
	stats := PoolStats{Pools: make(map[routing.Tag]PoolEntryStats)}

	p.conns.Range(func(key, value interface{}) bool {
		tag := key.(routing.Tag)
		entry := value.(*poolEntry)

		entry.mu.Lock()
		stats.Pools[tag] = PoolEntryStats{
			Conn:       entry.conn.Stats(),
			CreatedAt:  entry.createdAt,
			LastUsedAt: entry.lastUsedAt,
		}
		entry.mu.Unlock()

		stats.TotalActive++
		return true
	})
	return stats
}

// PoolStats estadísticas del PoolSet.
type PoolStats struct {
	TotalActive int
	Pools       map[routing.Tag]PoolEntryStats
}

// PoolEntryStats estadísticas de un pool abierto.
type PoolEntryStats struct {
	Conn       ConnStats
	CreatedAt  time.Time
	LastUsedAt time.Time
}

func (p *PoolSet) healthCheckLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.runHealthCheck()
		}
	}
}

func (p *PoolSet) runHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var toClose []routing.Tag
	p.conns.Range(func(key, value interface{}) bool {
		if err := value.(*poolEntry).conn.Ping(ctx); err != nil {
			tag := key.(routing.Tag)
			logger.L().Warn("pool health check failed",
				logger.Pool(tag.String()), zap.Error(err))
			toClose = append(toClose, tag)
		}
		return true
	})

	for _, tag := range toClose {
		_ = p.closeTag(tag)
	}
}
