package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript borra la key solo si el valor sigue siendo nuestro token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript renueva el TTL (ms) solo si el valor sigue siendo nuestro token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// redisLocker implementa Locker usando SET NX PX.
type redisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedis crea un locker Redis y verifica la conexión.
func NewRedis(ctx context.Context, cfg Config) (*redisLocker, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verificar conexión
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("runlock: redis ping failed: %w", err)
	}

	return &redisLocker{client: rdb, prefix: cfg.Prefix}, nil
}

func (r *redisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	if ttl <= 0 {
		return nil, errors.New("runlock: ttl must be positive")
	}
	key := prefixed(r.prefix, name)
	token := newToken()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("runlock: redis acquire: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &lease{
		name:  name,
		token: token,
		extend: func(ctx context.Context, ttl time.Duration) error {
			n, err := extendScript.Run(ctx, r.client, []string{key}, token, ttl.Milliseconds()).Int()
			if err != nil {
				return fmt.Errorf("runlock: redis extend: %w", err)
			}
			if n == 0 {
				return ErrNotHeld
			}
			return nil
		},
		release: func(ctx context.Context) error {
			n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
			if err != nil {
				return fmt.Errorf("runlock: redis release: %w", err)
			}
			if n == 0 {
				return ErrNotHeld
			}
			return nil
		},
	}, nil
}

func (r *redisLocker) Close() error {
	return r.client.Close()
}
