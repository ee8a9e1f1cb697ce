package runlock

import (
	"context"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryLocker implementa Locker sobre go-cache. Add falla si la key
// existe y no expiró, que es exactamente la semántica de "set if absent".
type memoryLocker struct {
	prefix string
	c      *gocache.Cache
	mu     sync.Mutex // compare-and-delete en Release
}

// NewMemory crea un locker en memoria.
func NewMemory(prefix string) *memoryLocker {
	return &memoryLocker{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *memoryLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, errors.New("runlock: ttl must be positive")
	}
	key := prefixed(m.prefix, name)
	token := newToken()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.c.Add(key, token, ttl); err != nil {
		return nil, ErrHeld
	}
	return &lease{
		name:  name,
		token: token,
		extend: func(_ context.Context, ttl time.Duration) error {
			return m.extend(key, token, ttl)
		},
		release: func(context.Context) error {
			return m.release(key, token)
		},
	}, nil
}

func (m *memoryLocker) extend(key, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(key)
	if !ok || v.(string) != token {
		return ErrNotHeld
	}
	m.c.Set(key, token, ttl)
	return nil
}

func (m *memoryLocker) release(key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(key)
	if !ok || v.(string) != token {
		return ErrNotHeld
	}
	m.c.Delete(key)
	return nil
}

func (m *memoryLocker) Close() error {
	m.c.Flush()
	return nil
}
