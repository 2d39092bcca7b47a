package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks the loan lifecycle. The liquidation engine only ever
// transitions active -> liquidated_time/liquidated_price; creation and
// repayment belong to the lending ledger.
type Status string

const (
	StatusActive          Status = "active"
	StatusRepaid          Status = "repaid"
	StatusLiquidatedTime  Status = "liquidated_time"
	StatusLiquidatedPrice Status = "liquidated_price"
)

// Valid checks if the loan status is a known value
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRepaid, StatusLiquidatedTime, StatusLiquidatedPrice:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// Loan mirrors the on-chain loan account. Amounts are kept in base units:
// lamports for SOL, raw token units for collateral. Prices are SOL per token.
type Loan struct {
	ID               int64           `db:"id"`
	Borrower         string          `db:"borrower"`
	TokenMint        string          `db:"token_mint"`
	CollateralAmount int64           `db:"collateral_amount"`
	SolBorrowed      int64           `db:"sol_borrowed"`
	EntryPrice       decimal.Decimal `db:"entry_price"`
	LiquidationPrice decimal.Decimal `db:"liquidation_price"`
	CreatedAt        time.Time       `db:"created_at"`
	DueAt            time.Time       `db:"due_at"`
	Status           Status          `db:"status"`
}

// Expired reports whether the loan is past due
func (l *Loan) Expired(now time.Time) bool {
	return now.After(l.DueAt)
}

// PriceTriggered reports whether the current collateral price is at or
// below the liquidation trigger
func (l *Loan) PriceTriggered(currentPrice decimal.Decimal) bool {
	return currentPrice.LessThanOrEqual(l.LiquidationPrice)
}

// MintAggregate sums active loans per collateral mint
type MintAggregate struct {
	TokenMint        string `db:"token_mint"`
	ActiveLoans      int    `db:"active_loans"`
	TotalCollateral  int64  `db:"total_collateral"`
	TotalSolBorrowed int64  `db:"total_sol_borrowed"`
}
