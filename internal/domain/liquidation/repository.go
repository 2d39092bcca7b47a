package liquidation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository stores the append-only liquidation record log
type Repository interface {
	// Append writes a new record. Records are never updated or deleted.
	Append(ctx context.Context, rec *Record) error

	// WindowMetrics computes trailing 1h/24h loss sums and the 1h record
	// count relative to now
	WindowMetrics(ctx context.Context, now time.Time) (*WindowMetrics, error)

	// GetRecent returns the newest records, newest first
	GetRecent(ctx context.Context, limit int) ([]*Record, error)

	// GetWithLosses returns records with loss_lamports > 0, newest first
	GetWithLosses(ctx context.Context) ([]*Record, error)

	// GetTokenStats aggregates the log for one collateral mint
	GetTokenStats(ctx context.Context, tokenMint string) (*TokenStats, error)

	// CountByLoan returns how many records exist for a loan id. At most one
	// is expected; more indicates a double liquidation.
	CountByLoan(ctx context.Context, loanID int64) (int, error)

	// CountByInstanceSince counts records written by one worker instance
	// after the given time. Feeds the rolling 24h instance health counter.
	CountByInstanceSince(ctx context.Context, instanceID uuid.UUID, since time.Time) (int, error)
}

// SettlementResult is what the external executor reports back
type SettlementResult struct {
	Success        bool   `json:"success"`
	ActualLamports int64  `json:"actual_recovered_lamports"`
	TransactionSig string `json:"transaction_sig,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Settler executes the on-chain settlement of a liquidation. Transaction
// construction, signing and submission live behind this boundary.
type Settler interface {
	Settle(ctx context.Context, loanID int64, identity string) (*SettlementResult, error)
}

// IdentityResolver resolves the liquidator signing identity for this
// instance. Returns errors.ErrNoSigningIdentity when none is configured.
type IdentityResolver interface {
	Resolve(ctx context.Context) (string, error)
}
