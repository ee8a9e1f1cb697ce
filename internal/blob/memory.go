package blob

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore es un backend en proceso con inyección de fallas.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]struct{}
	fail    map[string]failure
	calls   []string
}

type failure struct {
	err       error
	remaining int // <0 = siempre
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]struct{}),
		fail:    make(map[string]failure),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

// Put registra claves existentes.
func (m *MemoryStore) Put(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.objects[k] = struct{}{}
	}
}

// Has reporta si la clave existe.
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Keys retorna las claves existentes ordenadas.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FailOn hace que todo Delete de key falle con err.
func (m *MemoryStore) FailOn(key string, err error) { m.FailTimes(key, err, -1) }

// FailTimes hace que los próximos n Delete de key fallen con err.
func (m *MemoryStore) FailTimes(key string, err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[key] = failure{err: err, remaining: n}
}

// Calls retorna las claves recibidas por Delete, en orden.
func (m *MemoryStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, key)
	if f, ok := m.fail[key]; ok && f.remaining != 0 {
		if f.remaining > 0 {
			f.remaining--
			m.fail[key] = f
		}
		return f.err
	}
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(m.objects, key)
	return nil
}
