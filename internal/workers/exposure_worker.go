package workers

import (
	"context"
	"time"

	domexposure "cerberus/internal/domain/exposure"
	"cerberus/internal/services/exposure"
	"cerberus/pkg/errors"
)

// ExposureWorker refreshes per-token concentration levels in the background
// so exposure warnings fire even while the loan book is quiet.
type ExposureWorker struct {
	*BaseWorker
	exposure *exposure.Service
}

// NewExposureWorker creates a new exposure refresh worker
func NewExposureWorker(svc *exposure.Service, interval time.Duration, enabled bool) *ExposureWorker {
	return &ExposureWorker{
		BaseWorker: NewBaseWorker("exposure_monitor", interval, enabled),
		exposure:   svc,
	}
}

// Run executes one exposure refresh pass
func (w *ExposureWorker) Run(ctx context.Context) error {
	exposures, err := w.exposure.RefreshAll(ctx)
	if err != nil {
		return errors.Wrap(err, "exposure refresh failed")
	}

	warnings := 0
	unknown := 0
	for _, e := range exposures {
		if e.LiquidityUnknown {
			unknown++
		}
		if e.WarningLevel > domexposure.LevelNone {
			warnings++
		}
	}

	w.Log().Debug("Exposure refresh completed",
		"tokens", len(exposures),
		"warnings", warnings,
		"liquidity_unknown", unknown,
	)
	return nil
}
