package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const lockKeyPrefix = "lock:charge-intent:"

// releaseScript deletes the lock only if it still holds our token, so an
// expired holder cannot free a lock another replica has since taken.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// KeyedLocker serializes work per charge-intent id. Within a process it uses
// a refcounted lock per key; with Redis configured it also holds a TTL lock
// so replicas serialize too.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock

	redis *redis.Client
	ttl   time.Duration
	retry time.Duration
	token func() string
}

func NewKeyedLocker(client *redis.Client, ttl time.Duration) *KeyedLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &KeyedLocker{
		locks: make(map[string]*keyedLock),
		redis: client,
		ttl:   ttl,
		retry: 50 * time.Millisecond,
		token: newLockToken,
	}
}

// Lock blocks until key is held or ctx is done. The returned func releases it.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	local := l.acquire(key)
	select {
	case local.ch <- struct{}{}:
	case <-ctx.Done():
		l.forget(key, local)
		return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
	}

	releaseLocal := func() {
		<-local.ch
		l.forget(key, local)
	}

	if l.redis == nil {
		return releaseLocal, nil
	}

	token, held, err := l.lockRemote(ctx, key)
	if err != nil {
		releaseLocal()
		return nil, err
	}
	if !held {
		return releaseLocal, nil
	}

	return func() {
		l.unlockRemote(key, token)
		releaseLocal()
	}, nil
}

func (l *KeyedLocker) acquire(key string) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		lock = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (l *KeyedLocker) forget(key string, lock *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}

// lockRemote spins on SETNX until it wins or ctx is done. A Redis failure
// degrades to the local lock only and reports held=false.
func (l *KeyedLocker) lockRemote(ctx context.Context, key string) (string, bool, error) {
	token := l.token()
	redisKey := lockKeyPrefix + key

	for {
		ok, err := l.redis.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return "", false, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
			}
			log.Printf("[LOCK] Redis unavailable for %s, using local lock only: %v", key, err)
			return "", false, nil
		}
		if ok {
			return token, true, nil
		}

		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return "", false, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		}
	}
}

func (l *KeyedLocker) unlockRemote(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := l.redis.Eval(ctx, releaseScript, []string{lockKeyPrefix + key}, token).Err(); err != nil {
		log.Printf("[LOCK] Failed to release %s, it will expire after %s: %v", key, l.ttl, err)
	}
}

func newLockToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
