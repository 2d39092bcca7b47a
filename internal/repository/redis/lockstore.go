package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cerberus/internal/domain/lock"
	"cerberus/pkg/errors"
)

// Compile-time check
var _ lock.Store = (*LockStore)(nil)

const lockKeyPrefix = "liquidation:lock:"

// releaseScript deletes the key only when it still holds our token, so a
// lock that expired and was re-acquired elsewhere is never released by the
// old holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// LockStore is the Redis-backed TTL lock shared by all liquidator
// instances. SET NX PX gives atomic acquire-with-expiry; the TTL is the
// crash safety net for an instance that dies mid-liquidation.
type LockStore struct {
	rdb *redis.Client
}

// NewLockStore creates a Redis lock store
func NewLockStore(rdb *redis.Client) *LockStore {
	return &LockStore{rdb: rdb}
}

// Acquire attempts a non-blocking exclusive hold on a key
func (s *LockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Handle, error) {
	token := uuid.NewString()

	ok, err := s.rdb.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to acquire lock %s", key)
	}
	if !ok {
		// Held elsewhere: expected contention between redundant workers
		return nil, nil
	}

	return &lock.Handle{
		Key:        key,
		Token:      token,
		AcquiredAt: time.Now(),
		TTL:        ttl,
	}, nil
}

// Release drops the hold if the handle's token still owns the key
func (s *LockStore) Release(ctx context.Context, h *lock.Handle) error {
	if h == nil {
		return errors.ErrLockNotHeld
	}

	_, err := s.rdb.Eval(ctx, releaseScript, []string{lockKeyPrefix + h.Key}, h.Token).Result()
	if err != nil {
		return errors.Wrapf(err, "failed to release lock %s", h.Key)
	}

	return nil
}
