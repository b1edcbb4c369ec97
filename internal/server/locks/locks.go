// Package locks provides the short-lived mutual exclusion the finalizer uses
// to keep concurrent instances from committing the same document twice.
package locks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock held by another owner")

// Release frees a held lock. Releasing after the TTL expired is a no-op.
type Release func(ctx context.Context) error

// Locker hands out exclusive, expiring locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

const keyPrefix = "docattest:lock:"

// releaseScript deletes the key only if it still holds our token, so a
// holder whose TTL expired cannot free somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisClient is the part of redis.UniversalClient the locker uses.
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	rdb redisClient
}

func NewRedisLocker(rdb redisClient) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Connect parses url and returns a client for it.
func Connect(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{keyPrefix + key}, token).Err()
	}, nil
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.held[key]; ok && l.now().Before(until) {
		return nil, ErrNotAcquired
	}
	until := l.now().Add(ttl)
	l.held[key] = until

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == until {
			delete(l.held, key)
		}
		return nil
	}, nil
}
