package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"cerberus/internal/domain/risk"
)

// Compile-time check
var _ risk.Repository = (*RiskRepository)(nil)

// RiskRepository implements risk.Repository using sqlx
type RiskRepository struct {
	db *sqlx.DB
}

// NewRiskRepository creates a new risk repository
func NewRiskRepository(db *sqlx.DB) *RiskRepository {
	return &RiskRepository{db: db}
}

// GetState loads the singleton breaker state. A missing row means the
// breaker has never tripped; an armed default is returned without writing.
func (r *RiskRepository) GetState(ctx context.Context) (*risk.CircuitBreakerState, error) {
	var state risk.CircuitBreakerState

	query := `SELECT * FROM circuit_breaker_state WHERE id = 1`

	err := r.db.GetContext(ctx, &state, query)
	if err == sql.ErrNoRows {
		return &risk.CircuitBreakerState{ID: 1, UpdatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// SaveState upserts the singleton breaker state
func (r *RiskRepository) SaveState(ctx context.Context, state *risk.CircuitBreakerState) error {
	query := `
		INSERT INTO circuit_breaker_state (
			id, tripped, trip_reason, tripped_at,
			loss_1h_lamports, loss_24h_lamports, count_1h, updated_at
		) VALUES (
			1, $1, $2, $3, $4, $5, $6, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			tripped = $1,
			trip_reason = $2,
			tripped_at = $3,
			loss_1h_lamports = $4,
			loss_24h_lamports = $5,
			count_1h = $6,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		state.Tripped, state.TripReason, state.TrippedAt,
		state.Loss1hLamports, state.Loss24hLamports, state.Count1h,
	)

	return err
}

// CreateEvent appends to the security event log
func (r *RiskRepository) CreateEvent(ctx context.Context, event *risk.SecurityEvent) error {
	query := `
		INSERT INTO security_events (
			id, timestamp, event_type, severity, message, data, actor
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Timestamp, event.EventType, event.Severity,
		event.Message, event.Data, event.Actor,
	)

	return err
}

// GetEvents returns recent security events, newest first
func (r *RiskRepository) GetEvents(ctx context.Context, limit int) ([]*risk.SecurityEvent, error) {
	var events []*risk.SecurityEvent

	query := `
		SELECT * FROM security_events
		ORDER BY timestamp DESC
		LIMIT $1`

	err := r.db.SelectContext(ctx, &events, query, limit)
	if err != nil {
		return nil, err
	}

	return events, nil
}
