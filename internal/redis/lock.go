package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")

	errLockBackend = errors.New("lock backend unavailable")
)

const retryInterval = 25 * time.Millisecond

// Locker serializes critical sections sharing a key, e.g. one doctor's slot ledger.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// DoctorKey is the lock key guarding one doctor's ledger.
func DoctorKey(doctorID uuid.UUID) string {
	return "lock:ledger:" + doctorID.String()
}

// TestSlotKey is the lock key guarding one (test, date, time) slot.
func TestSlotKey(testID uuid.UUID, date, clock string) string {
	return fmt.Sprintf("lock:test:%s:%s:%s", testID, date, clock)
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger zerolog.Logger
}

// NewRedisLocker holds each key for at most ttl and waits up to wait for a busy key.
//
// When Redis cannot be reached the critical section runs unlocked and a
// warning is logged. Every section guarded by this locker also commits
// through a conditional write in Postgres, so the lock only narrows the
// window in which competing writers retry.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, logger zerolog.Logger) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	err := l.acquire(ctx, key, token)
	if errors.Is(err, errLockBackend) {
		l.logger.Warn().Err(err).Str("key", key).Msg("running without distributed lock")
		ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
		defer cancel()
		return fn(ctxWithTimeout)
	}
	if err != nil {
		return err
	}

	defer func() {
		// release must still run when the caller's ctx is already done
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(relCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("acquire lock %s: %w: %w", key, errLockBackend, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// LocalLocker is an in-process Locker for single-instance runs and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
