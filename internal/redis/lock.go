package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired means another request holds the slot right now.
	// Callers surface it as a retryable conflict, never as a wait.
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

// Locker guards the check-and-commit sequence of a single slot. Both the
// reservation path and slot cancellation go through it so the two mutators
// can never interleave.
type Locker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

type slotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSlotLocker returns a Locker backed by a per-slot Redis key. The lock is
// non-blocking: if SETNX fails the caller gets ErrLockNotAcquired immediately.
func NewSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &slotLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *slotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	key := "lock:slot:" + slotID.String()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	// The critical section must not outlive the lock key.
	fnCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(fnCtx)
}

// release deletes the key only when it still holds our token, so an expired
// lock that was re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *slotLocker) release(ctx context.Context, key, token string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
