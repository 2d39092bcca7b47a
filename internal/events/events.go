package events

import (
	"time"

	"github.com/google/uuid"
)

// LiquidationExecuted is published after a settlement succeeds and the
// record is appended
type LiquidationExecuted struct {
	RecordID         uuid.UUID `json:"record_id"`
	LoanID           int64     `json:"loan_id"`
	TokenMint        string    `json:"token_mint"`
	ExpectedLamports int64     `json:"expected_lamports"`
	ActualLamports   int64     `json:"actual_lamports"`
	LossLamports     int64     `json:"loss_lamports"`
	LossBps          int64     `json:"loss_bps"`
	Reason           string    `json:"reason"`
	InstanceID       uuid.UUID `json:"instance_id"`
	LiquidatedAt     time.Time `json:"liquidated_at"`
}

// CircuitBreakerChanged is published on trip and on manual reset
type CircuitBreakerChanged struct {
	Tripped         bool      `json:"tripped"`
	Reason          string    `json:"reason,omitempty"`
	Actor           string    `json:"actor,omitempty"`
	Loss1hLamports  int64     `json:"loss_1h_lamports"`
	Loss24hLamports int64     `json:"loss_24h_lamports"`
	Count1h         int       `json:"count_1h"`
	At              time.Time `json:"at"`
}
