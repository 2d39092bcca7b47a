package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"cerberus/internal/domain/health"
	"cerberus/pkg/errors"
)

// Compile-time check
var _ health.Repository = (*HealthRepository)(nil)

// HealthRepository implements health.Repository using sqlx. Each instance
// only ever writes its own row; rows are never deleted.
type HealthRepository struct {
	db *sqlx.DB
}

// NewHealthRepository creates a new instance health repository
func NewHealthRepository(db *sqlx.DB) *HealthRepository {
	return &HealthRepository{db: db}
}

// Upsert saves one instance's health row
func (r *HealthRepository) Upsert(ctx context.Context, h *health.InstanceHealth) error {
	query := `
		INSERT INTO liquidator_instance_health (
			instance_id, last_run, last_successful_run, consecutive_failures,
			avg_processing_time_ms, liquidations_24h, last_error, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW()
		)
		ON CONFLICT (instance_id) DO UPDATE SET
			last_run = $2,
			last_successful_run = $3,
			consecutive_failures = $4,
			avg_processing_time_ms = $5,
			liquidations_24h = $6,
			last_error = $7,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		h.InstanceID, h.LastRun, h.LastSuccessfulRun, h.ConsecutiveFailures,
		h.AvgProcessingTimeMs, h.Liquidations24h, h.LastError,
	)

	return err
}

// Get retrieves one instance's health row
func (r *HealthRepository) Get(ctx context.Context, instanceID uuid.UUID) (*health.InstanceHealth, error) {
	var h health.InstanceHealth

	query := `SELECT * FROM liquidator_instance_health WHERE instance_id = $1`

	err := r.db.GetContext(ctx, &h, query, instanceID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "instance %s", instanceID)
	}
	if err != nil {
		return nil, err
	}

	return &h, nil
}

// GetAll returns all known instances
func (r *HealthRepository) GetAll(ctx context.Context) ([]*health.InstanceHealth, error) {
	var all []*health.InstanceHealth

	query := `SELECT * FROM liquidator_instance_health ORDER BY instance_id`

	err := r.db.SelectContext(ctx, &all, query)
	if err != nil {
		return nil, err
	}

	return all, nil
}
