package workers

import (
	"context"
	"time"

	"cerberus/internal/services/health"
	"cerberus/internal/services/liquidation"
	"cerberus/pkg/errors"
)

// LiquidationWorker runs the liquidation cycle on a fixed interval and
// reports the outcome of every run to the instance health service.
type LiquidationWorker struct {
	*BaseWorker
	coordinator *liquidation.Coordinator
	health      *health.Service
}

// NewLiquidationWorker creates a new liquidation worker
func NewLiquidationWorker(
	coordinator *liquidation.Coordinator,
	healthSvc *health.Service,
	interval time.Duration,
	enabled bool,
) *LiquidationWorker {
	return &LiquidationWorker{
		BaseWorker:  NewBaseWorker("liquidation_cycle", interval, enabled),
		coordinator: coordinator,
		health:      healthSvc,
	}
}

// Run executes one liquidation cycle
func (w *LiquidationWorker) Run(ctx context.Context) error {
	start := w.health.RecordJobStart(ctx)

	result, err := w.coordinator.RunCycle(ctx)
	if err != nil {
		w.health.RecordJobFailure(ctx, err)
		return errors.Wrap(err, "liquidation cycle failed")
	}

	w.health.RecordJobSuccess(ctx, start, result.Liquidated)

	if result.Blocked {
		w.Log().Warn("Liquidation cycle blocked by circuit breaker",
			"checked", result.TotalChecked,
		)
		return nil
	}

	w.Log().Info("Liquidation cycle completed",
		"checked", result.TotalChecked,
		"liquidated", result.Liquidated,
		"skipped_locked", result.SkippedLocked,
		"errors", result.Errors,
		"duration", time.Since(start),
	)
	return nil
}
