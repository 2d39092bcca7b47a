package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cerberus/internal/domain/liquidation"
	"cerberus/internal/repository/postgres"
)

func TestLiquidationAppend(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewLiquidationRepository(db)

	rec := liquidation.NewRecord(7, "BONK", 1_000_000_000, 950_000_000,
		liquidation.ReasonExpired, uuid.New(), time.Now().UTC())

	mock.ExpectExec(`INSERT INTO liquidation_records`).
		WithArgs(rec.ID, rec.LoanID, rec.TokenMint, rec.ExpectedLamports, rec.ActualLamports,
			rec.LossLamports, rec.LossBps, rec.Reason, rec.InstanceID, rec.AutoBlacklisted,
			rec.LiquidatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Append(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowMetrics(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewLiquidationRepository(db)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"loss_1h", "loss_24h", "count_1h"}).
		AddRow(int64(2_200_000_000), int64(5_100_000_000), 4)
	mock.ExpectQuery(`SELECT(.|\n)*FROM liquidation_records`).
		WithArgs(now.Add(-time.Hour), now.Add(-24*time.Hour)).
		WillReturnRows(rows)

	m, err := repo.WindowMetrics(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2_200_000_000), m.Loss1hLamports)
	assert.Equal(t, int64(5_100_000_000), m.Loss24hLamports)
	assert.Equal(t, 4, m.Count1h)
}

func TestCountByLoan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewLiquidationRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM liquidation_records WHERE loan_id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountByLoan(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRiskGetState_DefaultsWhenMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewRiskRepository(db)

	mock.ExpectQuery(`SELECT \* FROM circuit_breaker_state`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	state, err := repo.GetState(context.Background())
	require.NoError(t, err)

	// A missing row reads as armed, nothing is written
	assert.Equal(t, 1, state.ID)
	assert.False(t, state.Tripped)
	assert.Nil(t, state.TripReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
