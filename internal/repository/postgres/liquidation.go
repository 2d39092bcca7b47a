package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"cerberus/internal/domain/liquidation"
)

// Compile-time check
var _ liquidation.Repository = (*LiquidationRepository)(nil)

// LiquidationRepository implements liquidation.Repository using sqlx.
// The table is append-only; nothing here updates or deletes rows.
type LiquidationRepository struct {
	db *sqlx.DB
}

// NewLiquidationRepository creates a new liquidation record repository
func NewLiquidationRepository(db *sqlx.DB) *LiquidationRepository {
	return &LiquidationRepository{db: db}
}

// Append writes a new liquidation record
func (r *LiquidationRepository) Append(ctx context.Context, rec *liquidation.Record) error {
	query := `
		INSERT INTO liquidation_records (
			id, loan_id, token_mint, expected_lamports, actual_lamports,
			loss_lamports, loss_bps, reason, instance_id, auto_blacklisted,
			liquidated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.LoanID, rec.TokenMint, rec.ExpectedLamports, rec.ActualLamports,
		rec.LossLamports, rec.LossBps, rec.Reason, rec.InstanceID, rec.AutoBlacklisted,
		rec.LiquidatedAt,
	)

	return err
}

// WindowMetrics computes trailing loss windows on demand
func (r *LiquidationRepository) WindowMetrics(ctx context.Context, now time.Time) (*liquidation.WindowMetrics, error) {
	var m liquidation.WindowMetrics

	query := `
		SELECT
			COALESCE(SUM(loss_lamports) FILTER (WHERE liquidated_at > $1), 0) AS loss_1h,
			COALESCE(SUM(loss_lamports), 0) AS loss_24h,
			COALESCE(COUNT(*) FILTER (WHERE liquidated_at > $1), 0) AS count_1h
		FROM liquidation_records
		WHERE liquidated_at > $2`

	err := r.db.GetContext(ctx, &m, query, now.Add(-time.Hour), now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// GetRecent returns the newest records first
func (r *LiquidationRepository) GetRecent(ctx context.Context, limit int) ([]*liquidation.Record, error) {
	var records []*liquidation.Record

	query := `
		SELECT * FROM liquidation_records
		ORDER BY liquidated_at DESC
		LIMIT $1`

	err := r.db.SelectContext(ctx, &records, query, limit)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetWithLosses returns records that realized a loss, newest first
func (r *LiquidationRepository) GetWithLosses(ctx context.Context) ([]*liquidation.Record, error) {
	var records []*liquidation.Record

	query := `
		SELECT * FROM liquidation_records
		WHERE loss_lamports > 0
		ORDER BY liquidated_at DESC`

	err := r.db.SelectContext(ctx, &records, query)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetTokenStats aggregates the record log for one collateral mint
func (r *LiquidationRepository) GetTokenStats(ctx context.Context, tokenMint string) (*liquidation.TokenStats, error) {
	var stats liquidation.TokenStats

	query := `
		SELECT
			$1::text AS token_mint,
			COUNT(*) AS liquidation_count,
			COALESCE(SUM(loss_lamports), 0) AS total_loss_lamports,
			COALESCE(MAX(loss_bps), 0) AS worst_loss_bps
		FROM liquidation_records
		WHERE token_mint = $1`

	err := r.db.GetContext(ctx, &stats, query, tokenMint)
	if err == sql.ErrNoRows {
		return &liquidation.TokenStats{TokenMint: tokenMint}, nil
	}
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// CountByLoan returns how many records exist for a loan id
func (r *LiquidationRepository) CountByLoan(ctx context.Context, loanID int64) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM liquidation_records WHERE loan_id = $1`

	err := r.db.GetContext(ctx, &count, query, loanID)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CountByInstanceSince counts one instance's records after the given time
func (r *LiquidationRepository) CountByInstanceSince(ctx context.Context, instanceID uuid.UUID, since time.Time) (int, error) {
	var count int

	query := `
		SELECT COUNT(*) FROM liquidation_records
		WHERE instance_id = $1 AND liquidated_at > $2`

	err := r.db.GetContext(ctx, &count, query, instanceID, since)
	if err != nil {
		return 0, err
	}

	return count, nil
}
