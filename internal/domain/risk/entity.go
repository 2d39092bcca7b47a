package risk

import (
	"time"

	"github.com/google/uuid"
)

// CircuitBreakerState is the persisted one-way latch that halts all
// settlement activity. Tripping is automatic; clearing requires Reset with
// an audited actor identity.
type CircuitBreakerState struct {
	ID      int  `db:"id"` // singleton row, always 1
	Tripped bool `db:"tripped"`

	TripReason *string    `db:"trip_reason"` // NULL when armed
	TrippedAt  *time.Time `db:"tripped_at"`

	// Metrics snapshot captured at the moment of the trip
	Loss1hLamports  int64 `db:"loss_1h_lamports"`
	Loss24hLamports int64 `db:"loss_24h_lamports"`
	Count1h         int   `db:"count_1h"`

	UpdatedAt time.Time `db:"updated_at"`
}

// Status is the read-side projection of breaker state plus the live window
// metrics it was evaluated against.
type Status struct {
	Tripped         bool       `json:"tripped"`
	TripReason      string     `json:"trip_reason,omitempty"`
	TrippedAt       *time.Time `json:"tripped_at,omitempty"`
	Loss1hLamports  int64      `json:"loss_1h_lamports"`
	Loss24hLamports int64      `json:"loss_24h_lamports"`
	Count1h         int        `json:"count_1h"`
}

// SecurityEvent is an audited, severity-tagged event on the security log
type SecurityEvent struct {
	ID        uuid.UUID `db:"id"`
	Timestamp time.Time `db:"timestamp"`

	EventType EventType `db:"event_type"`
	Severity  string    `db:"severity"` // info, warning, critical
	Message   string    `db:"message"`
	Data      string    `db:"data"` // JSON with details

	Actor string `db:"actor"` // instance id or admin actor id
}

// EventType defines types of security events
type EventType string

const (
	EventBreakerTripped  EventType = "circuit_breaker_tripped"
	EventBreakerReset    EventType = "circuit_breaker_reset"
	EventConfigFailure   EventType = "configuration_failure"
	EventAutoBlacklist   EventType = "token_auto_blacklisted"
	EventExposureWarning EventType = "exposure_warning"
)

// Valid checks if the event type is a known value
func (e EventType) Valid() bool {
	switch e {
	case EventBreakerTripped, EventBreakerReset, EventConfigFailure,
		EventAutoBlacklist, EventExposureWarning:
		return true
	}
	return false
}

// String returns string representation
func (e EventType) String() string {
	return string(e)
}
