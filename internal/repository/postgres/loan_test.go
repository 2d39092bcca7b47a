package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cerberus/internal/domain/loan"
	"cerberus/internal/repository/postgres"
	"cerberus/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "postgres"), mock
}

func TestMarkLiquidated_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("wins the transition", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := postgres.NewLoanRepository(db)

		mock.ExpectExec(`UPDATE loans SET status`).
			WithArgs(int64(7), loan.StatusLiquidatedTime, loan.StatusActive).
			WillReturnResult(sqlmock.NewResult(0, 1))

		marked, err := repo.MarkLiquidated(ctx, 7, loan.StatusLiquidatedTime, now)
		require.NoError(t, err)
		assert.True(t, marked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loses to a sibling", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := postgres.NewLoanRepository(db)

		// Zero rows affected: the loan was no longer active
		mock.ExpectExec(`UPDATE loans SET status`).
			WithArgs(int64(7), loan.StatusLiquidatedPrice, loan.StatusActive).
			WillReturnResult(sqlmock.NewResult(0, 0))

		marked, err := repo.MarkLiquidated(ctx, 7, loan.StatusLiquidatedPrice, now)
		require.NoError(t, err)
		assert.False(t, marked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-liquidation status", func(t *testing.T) {
		db, _ := newMockDB(t)
		repo := postgres.NewLoanRepository(db)

		_, err := repo.MarkLiquidated(ctx, 7, loan.StatusRepaid, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	})
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewLoanRepository(db)

	mock.ExpectQuery(`SELECT \* FROM loans WHERE id`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAggregateActiveByMint(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewLoanRepository(db)

	rows := sqlmock.NewRows([]string{"token_mint", "active_loans", "total_collateral", "total_sol_borrowed"}).
		AddRow("BONK", 3, int64(3_000_000_000_000), int64(4_500_000_000)).
		AddRow("WIF", 1, int64(200_000_000_000), int64(1_000_000_000))
	mock.ExpectQuery(`SELECT(.|\n)*FROM loans(.|\n)*GROUP BY token_mint`).
		WithArgs(loan.StatusActive).
		WillReturnRows(rows)

	aggs, err := repo.AggregateActiveByMint(context.Background())
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, "BONK", aggs[0].TokenMint)
	assert.Equal(t, 3, aggs[0].ActiveLoans)
	assert.Equal(t, int64(4_500_000_000), aggs[0].TotalSolBorrowed)
}
