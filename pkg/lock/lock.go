package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("lock: timed out waiting for key")

// Locker serialises work per key. Different keys never block each other.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Redis-backed lock: SET key token NX PX ttl, released by a compare-and-delete
// script so an expired holder cannot free somebody else's lock.
type RedisLocker struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	wait    time.Duration
	backoff time.Duration
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(rdb *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:     rdb,
		prefix:  prefix,
		ttl:     ttl,
		wait:    wait,
		backoff: 20 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	delay := l.backoff
	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock %s: %w", fullKey, err)
		}
		if ok {
			return func() {
				// отдельный контекст: запрос мог уже завершиться
				rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer rcancel()
				if err := unlockScript.Run(rctx, l.rdb, []string{fullKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
					log.Printf("[LOCK] Failed to release %s: %v", fullKey, err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w %s", ErrLockTimeout, fullKey)
		case <-time.After(delay):
		}
		if delay < 200*time.Millisecond {
			delay *= 2
		}
	}
}

// LocalLocker is an in-process keyed mutex for single-instance deployments
// and tests. Entries are reference counted and dropped when idle.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, fmt.Errorf("%w %s: %v", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *LocalLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
