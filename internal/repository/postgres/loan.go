package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"cerberus/internal/domain/loan"
	"cerberus/pkg/errors"
)

// Compile-time check
var _ loan.Repository = (*LoanRepository)(nil)

// LoanRepository implements loan.Repository using sqlx
type LoanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// GetByID retrieves a loan by id
func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*loan.Loan, error) {
	var l loan.Loan

	query := `SELECT * FROM loans WHERE id = $1`

	err := r.db.GetContext(ctx, &l, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "loan %d", id)
	}
	if err != nil {
		return nil, err
	}

	return &l, nil
}

// GetActive returns all active loans ordered by id for reproducible scans
func (r *LoanRepository) GetActive(ctx context.Context) ([]*loan.Loan, error) {
	var loans []*loan.Loan

	query := `SELECT * FROM loans WHERE status = $1 ORDER BY id`

	err := r.db.SelectContext(ctx, &loans, query, loan.StatusActive)
	if err != nil {
		return nil, err
	}

	return loans, nil
}


// MarkLiquidated performs the single active -> liquidated transition.
// The WHERE status = 'active' guard makes this a compare-and-set: the
// returned bool is false when another instance already closed the loan.
func (r *LoanRepository) MarkLiquidated(ctx context.Context, id int64, status loan.Status, at time.Time) (bool, error) {
	if status != loan.StatusLiquidatedTime && status != loan.StatusLiquidatedPrice {
		return false, errors.Wrapf(errors.ErrInvalidInput, "status %s is not a liquidation status", status)
	}

	query := `
		UPDATE loans SET status = $2
		WHERE id = $1 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, id, status, loan.StatusActive)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

// AggregateActiveByMint sums active loans per collateral mint
func (r *LoanRepository) AggregateActiveByMint(ctx context.Context) ([]*loan.MintAggregate, error) {
	var aggs []*loan.MintAggregate

	query := `
		SELECT
			token_mint,
			COUNT(*) AS active_loans,
			COALESCE(SUM(collateral_amount), 0) AS total_collateral,
			COALESCE(SUM(sol_borrowed), 0) AS total_sol_borrowed
		FROM loans
		WHERE status = $1
		GROUP BY token_mint
		ORDER BY token_mint`

	err := r.db.SelectContext(ctx, &aggs, query, loan.StatusActive)
	if err != nil {
		return nil, err
	}

	return aggs, nil
}
