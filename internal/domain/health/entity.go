package health

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InstanceHealth is one liquidator worker instance's own view of itself.
// Each instance writes only its own row; aggregation across instances
// happens at read time.
type InstanceHealth struct {
	InstanceID          uuid.UUID  `db:"instance_id"`
	LastRun             *time.Time `db:"last_run"`
	LastSuccessfulRun   *time.Time `db:"last_successful_run"`
	ConsecutiveFailures int        `db:"consecutive_failures"`
	AvgProcessingTimeMs int64      `db:"avg_processing_time_ms"`
	Liquidations24h     int        `db:"liquidations_24h"`
	LastError           *string    `db:"last_error"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// Verdict is the protocol-wide health answer. Workers are redundant by
// design, so the system is healthy as long as any one instance is.
type Verdict struct {
	Healthy   bool              `json:"healthy"`
	Instances []*InstanceHealth `json:"instances"`
}

// Repository persists per-instance health rows. Rows are never deleted.
type Repository interface {
	Upsert(ctx context.Context, h *InstanceHealth) error
	Get(ctx context.Context, instanceID uuid.UUID) (*InstanceHealth, error)
	GetAll(ctx context.Context) ([]*InstanceHealth, error)
}
