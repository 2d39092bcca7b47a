package loan

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines loan ledger access. The ledger is owned by the lending
// protocol; this engine reads candidates and performs the single
// active -> liquidated transition.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Loan, error)

	// GetActive returns all active loans ordered by id
	GetActive(ctx context.Context) ([]*Loan, error)

	// MarkLiquidated transitions a loan out of active status. It must be a
	// compare-and-set on status so a loan can only leave active once; the
	// returned bool is false when the loan was no longer active.
	MarkLiquidated(ctx context.Context, id int64, status Status, at time.Time) (bool, error)

	// AggregateActiveByMint sums collateral and borrowed lamports over
	// active loans grouped by collateral mint
	AggregateActiveByMint(ctx context.Context) ([]*MintAggregate, error)
}

// PriceSource reads the current collateral token price in SOL per token.
// Backed by the DEX pool the loan was priced against.
type PriceSource interface {
	CurrentPrice(ctx context.Context, tokenMint string) (decimal.Decimal, error)
}
