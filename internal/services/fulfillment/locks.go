package fulfillment

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyedLock is the process-local "currently processing" set. TryLock
// never blocks: a held key means another goroutine is already
// fulfilling that auction and the caller should back off.
type KeyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{held: map[string]struct{}{}}
}

func (l *KeyedLock) TryLock(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

func (l *KeyedLock) Unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}

// Leaser extends exclusivity across processes. The in-process set
// covers a single instance; the lease covers horizontally scaled
// deployments.
type Leaser interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

const leaseKeyPrefix = "fulfill_lock:"

// RedisLease implements Leaser with SET NX + TTL, so a crashed holder
// frees its lease when the TTL lapses.
type RedisLease struct {
	rdc *redis.Client
}

func NewRedisLease(rdc *redis.Client) *RedisLease { return &RedisLease{rdc: rdc} }

func (r *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdc.SetNX(ctx, leaseKeyPrefix+key, 1, ttl).Result()
}

func (r *RedisLease) Release(ctx context.Context, key string) error {
	return r.rdc.Del(ctx, leaseKeyPrefix+key).Err()
}
