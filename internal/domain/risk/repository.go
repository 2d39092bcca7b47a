package risk

import (
	"context"
)

// Repository persists circuit breaker state and the security event log
type Repository interface {
	// GetState loads the singleton breaker state, creating the armed
	// default row when none exists
	GetState(ctx context.Context) (*CircuitBreakerState, error)

	// SaveState upserts the singleton breaker state
	SaveState(ctx context.Context, state *CircuitBreakerState) error

	// CreateEvent appends to the security event log
	CreateEvent(ctx context.Context, event *SecurityEvent) error

	// GetEvents returns recent security events, newest first
	GetEvents(ctx context.Context, limit int) ([]*SecurityEvent, error)
}
