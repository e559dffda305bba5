// Package synclock serializes sync runs. At most one run per
// (office, entity type) pair may be in flight; a second trigger while the
// lock is held is rejected, not queued.
package synclock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrAlreadyRunning is returned when another run holds the lock.
var ErrAlreadyRunning = errors.New("a sync run for this office and entity type is already in progress")

// releaseScript deletes the lock only when the caller still owns it, so a
// run that outlives the TTL cannot release a newer run's lock.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Locker acquires per-(office, entity type) run locks in Redis.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker wraps a Redis client. ttl bounds how long a crashed worker can
// keep an office locked out.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Locker{client: client, ttl: ttl}
}

func key(officeID, entityType string) string {
	return fmt.Sprintf("synclock:%s:%s", officeID, entityType)
}

// Acquire takes the lock for (office, entity type), storing runID as the
// owner token. Returns ErrAlreadyRunning when the lock is held.
func (l *Locker) Acquire(ctx context.Context, officeID, entityType, runID string) error {
	ok, err := l.client.SetNX(ctx, key(officeID, entityType), runID, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Release frees the lock if runID still owns it. Releasing a lock that has
// expired or been taken over is a no-op.
func (l *Locker) Release(ctx context.Context, officeID, entityType, runID string) error {
	err := l.client.Eval(ctx, releaseScript, []string{key(officeID, entityType)}, runID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release sync lock: %w", err)
	}
	return nil
}
