// Package store provee el registry de adaptadores, el par de pools
// primary/replica y la fachada de unidades de trabajo (DataSource).
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/mapping/internal/domain/repository"
)

// Adapter representa un driver de almacenamiento capaz de abrir pools.
type Adapter interface {
	// Name retorna el nombre del adapter (ej: "postgres", "mysql", "memory").
	Name() string

	// Connect abre un pool físico con la configuración dada.
	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection representa un pool físico abierto.
type AdapterConnection interface {
	// Name retorna el nombre del adapter.
	Name() string

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra el pool.
	Close() error

	// Begin abre una transacción. Con ReadOnly toda escritura debe fallar
	// con repository.ErrReadOnly. Si el pool no puede dar una conexión
	// (caído, cerrado, agotado) el error envuelve ErrConnectionUnavailable.
	Begin(ctx context.Context, opts TxOptions) (Tx, error)

	// Stats retorna estadísticas del pool.
	Stats() ConnStats
}

// TxOptions opciones de la transacción.
type TxOptions struct {
	ReadOnly bool
}

// Tx es una transacción con los repositorios ligados a ella.
type Tx interface {
	repository.Repositories

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ConnStats estadísticas de un pool físico.
type ConnStats struct {
	Driver        string
	MaxConns      int64
	TotalConns    int64
	IdleConns     int64
	AcquiredConns int64
}

// AdapterConfig configuración para abrir un pool.
type AdapterConfig struct {
	// Name del adapter: "postgres", "mysql", "memory"
	Name string

	// DSN connection string. Para memory identifica la base compartida.
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectTimeout limita el connect+ping inicial (0 = sin límite propio).
	ConnectTimeout time.Duration
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres de los adapters registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre un pool usando el adapter especificado en la config.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered", cfg.Name)
	}
	return a.Connect(ctx, cfg)
}
