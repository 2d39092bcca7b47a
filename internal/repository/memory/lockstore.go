package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cerberus/internal/domain/lock"
	"cerberus/pkg/errors"
)

// Compile-time check
var _ lock.Store = (*LockStore)(nil)

type entry struct {
	token     string
	expiresAt time.Time
}

// LockStore is an in-process TTL lock with the same semantics as the Redis
// store. Single-instance deployments use it to skip the Redis dependency;
// tests use the injectable clock to drive TTL expiry deterministically.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]entry
	now   func() time.Time
}

// NewLockStore creates an in-memory lock store
func NewLockStore() *LockStore {
	return &LockStore{
		locks: make(map[string]entry),
		now:   time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (s *LockStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Acquire attempts a non-blocking exclusive hold on a key
func (s *LockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (*lock.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.locks[key]; ok && now.Before(e.expiresAt) {
		return nil, nil
	}

	token := uuid.NewString()
	s.locks[key] = entry{token: token, expiresAt: now.Add(ttl)}

	return &lock.Handle{
		Key:        key,
		Token:      token,
		AcquiredAt: now,
		TTL:        ttl,
	}, nil
}

// Release drops the hold if the handle's token still owns the key
func (s *LockStore) Release(ctx context.Context, h *lock.Handle) error {
	if h == nil {
		return errors.ErrLockNotHeld
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.locks[h.Key]; ok && e.token == h.Token {
		delete(s.locks, h.Key)
	}

	return nil
}
