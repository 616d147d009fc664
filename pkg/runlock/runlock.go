// Package runlock provides a best-effort mutual exclusion keyed by string,
// backed by Redis when available and process memory otherwise.
package runlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("lock is held")

// Locker hands out leases. Release must be called with the lease returned by
// Acquire; releasing an expired or foreign lease is a no-op.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
	Release(ctx context.Context, lease Lease) error
}

type Lease struct {
	Key   string
	Token string
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete script.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "runlock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	lease := Lease{Key: l.prefix + key, Token: uuid.New().String()}
	ok, err := l.client.SetNX(ctx, lease.Key, lease.Token, ttl).Result()
	if err != nil {
		return Lease{}, err
	}
	if !ok {
		return Lease{}, ErrHeld
	}
	return lease, nil
}

func (l *RedisLocker) Release(ctx context.Context, lease Lease) error {
	return releaseScript.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err()
}

// MemoryLocker implements Locker for a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	nowFn func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry), nowFn: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return Lease{}, ErrHeld
	}
	lease := Lease{Key: key, Token: uuid.New().String()}
	l.held[key] = memoryEntry{token: lease.Token, expires: now.Add(ttl)}
	return lease, nil
}

func (l *MemoryLocker) Release(_ context.Context, lease Lease) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.held[lease.Key]; ok && e.token == lease.Token {
		delete(l.held, lease.Key)
	}
	return nil
}
