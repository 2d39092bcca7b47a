package liquidation

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// BpsDivisor matches the on-chain basis point divisor
const BpsDivisor = 10_000

// BasisPoints computes part*BpsDivisor/whole without overflowing int64 on
// lamport-scale inputs. Returns 0 when either side is not positive.
func BasisPoints(part, whole int64) int64 {
	if part <= 0 || whole <= 0 {
		return 0
	}
	if part > math.MaxInt64/BpsDivisor {
		div := whole / BpsDivisor
		if div == 0 {
			return math.MaxInt64
		}
		return part / div
	}
	return part * BpsDivisor / whole
}

// Record is the append-only outcome of one executed liquidation. Records
// are immutable once written; the loss windows consumed by the circuit
// breaker are derived from them at read time.
type Record struct {
	ID               uuid.UUID `db:"id"`
	LoanID           int64     `db:"loan_id"`
	TokenMint        string    `db:"token_mint"`
	ExpectedLamports int64     `db:"expected_lamports"`
	ActualLamports   int64     `db:"actual_lamports"`
	LossLamports     int64     `db:"loss_lamports"`
	LossBps          int64     `db:"loss_bps"`
	Reason           Reason    `db:"reason"`
	InstanceID       uuid.UUID `db:"instance_id"`
	AutoBlacklisted  bool      `db:"auto_blacklisted"`
	LiquidatedAt     time.Time `db:"liquidated_at"`
}

// Reason separates time-based from price-based liquidations. Price wins
// when both conditions hold, matching the on-chain program.
type Reason string

const (
	ReasonExpired        Reason = "expired"
	ReasonPriceTriggered Reason = "price_triggered"
)

// NewRecord builds a record with the loss computed from expected and actual
// recovery. Loss is clamped at zero: recovering more than expected is not a
// loss, and lossBps is in [0, 10000] by construction.
func NewRecord(loanID int64, mint string, expected, actual int64, reason Reason, instanceID uuid.UUID, at time.Time) *Record {
	loss := expected - actual
	if loss < 0 {
		loss = 0
	}
	lossBps := BasisPoints(loss, expected)
	if lossBps > BpsDivisor {
		lossBps = BpsDivisor
	}
	return &Record{
		ID:               uuid.New(),
		LoanID:           loanID,
		TokenMint:        mint,
		ExpectedLamports: expected,
		ActualLamports:   actual,
		LossLamports:     loss,
		LossBps:          lossBps,
		Reason:           reason,
		InstanceID:       instanceID,
		LiquidatedAt:     at,
	}
}

// WindowMetrics are the trailing-window aggregates the circuit breaker
// evaluates. Derived, never stored.
type WindowMetrics struct {
	Loss1hLamports  int64 `db:"loss_1h"`
	Loss24hLamports int64 `db:"loss_24h"`
	Count1h         int   `db:"count_1h"`
}

// TokenStats summarizes the record log for one collateral mint
type TokenStats struct {
	TokenMint         string `db:"token_mint"`
	LiquidationCount  int    `db:"liquidation_count"`
	TotalLossLamports int64  `db:"total_loss_lamports"`
	WorstLossBps      int64  `db:"worst_loss_bps"`
}

// CycleResult summarizes one coordinator cycle
type CycleResult struct {
	TotalChecked  int  `json:"total_checked"`
	Liquidated    int  `json:"liquidated"`
	Errors        int  `json:"errors"`
	SkippedLocked int  `json:"skipped_locked"`
	Blocked       bool `json:"blocked"`
}
