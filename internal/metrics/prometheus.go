package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Coordinator metrics
	CycleRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cerberus_cycle_runs_total",
			Help: "Total number of liquidation cycles",
		},
		[]string{"outcome"}, // outcome: completed|blocked|error
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cerberus_cycle_duration_seconds",
			Help:    "Liquidation cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	Liquidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cerberus_liquidations_total",
			Help: "Total number of executed liquidations",
		},
		[]string{"reason"}, // reason: expired|price_triggered
	)

	LossLamports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cerberus_loss_lamports_total",
			Help: "Total realized liquidation loss in lamports",
		},
	)

	LockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cerberus_lock_contention_total",
			Help: "Loan locks found held by another instance",
		},
	)

	SettlementErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cerberus_settlement_errors_total",
			Help: "Settlement calls that failed or were rejected",
		},
	)

	// Circuit breaker metrics
	BreakerTripped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cerberus_circuit_breaker_tripped",
			Help: "1 when the circuit breaker is tripped",
		},
	)

	// Exposure metrics
	ExposureBps = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cerberus_token_exposure_bps",
			Help: "Borrowed lamports per token as basis points of pool liquidity",
		},
		[]string{"token_mint"},
	)

	ExposureWarnings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cerberus_token_exposure_warning_level",
			Help: "Warning level per token: 0 none, 1 watch, 2 warning, 3 critical",
		},
		[]string{"token_mint"},
	)
)

// Register registers all metrics with the default registry
func Register() {
	prometheus.MustRegister(
		CycleRuns,
		CycleDuration,
		Liquidations,
		LossLamports,
		LockContention,
		SettlementErrors,
		BreakerTripped,
		ExposureBps,
		ExposureWarnings,
	)
}

// Handler returns the HTTP handler for the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
