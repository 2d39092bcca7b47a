package lock

import (
	"context"
	"time"
)

// Handle proves an exclusive TTL-bound hold on a key. The token guards
// release: a lock that expired and was re-acquired elsewhere must not be
// releasable by the old holder.
type Handle struct {
	Key        string
	Token      string
	AcquiredAt time.Time
	TTL        time.Duration
}

// Store is the TTL-based exclusive-hold primitive used to mutually exclude
// redundant liquidator instances. It is advisory: correctness rests on the
// re-check inside the hold, not on the store being a perfect mutex.
type Store interface {
	// Acquire attempts a non-blocking exclusive hold. A nil handle with a
	// nil error means the key is held elsewhere; that is expected
	// contention, not a failure.
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Handle, error)

	// Release drops the hold if the handle's token still owns the key.
	// Releasing an expired or re-acquired key is a no-op.
	Release(ctx context.Context, h *Handle) error
}
