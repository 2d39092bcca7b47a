package breaker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cerberus/internal/alert"
	"cerberus/internal/domain/liquidation"
	"cerberus/internal/domain/risk"
	"cerberus/internal/services/breaker"
	"cerberus/pkg/errors"
)

// mockRiskRepo is a mock implementation of risk.Repository
type mockRiskRepo struct {
	state       *risk.CircuitBreakerState
	saveCount   int
	events      []*risk.SecurityEvent
	getStateErr error
}

func newMockRiskRepo() *mockRiskRepo {
	return &mockRiskRepo{
		state: &risk.CircuitBreakerState{ID: 1},
	}
}

func (m *mockRiskRepo) GetState(ctx context.Context) (*risk.CircuitBreakerState, error) {
	if m.getStateErr != nil {
		return nil, m.getStateErr
	}
	copied := *m.state
	return &copied, nil
}

func (m *mockRiskRepo) SaveState(ctx context.Context, state *risk.CircuitBreakerState) error {
	copied := *state
	m.state = &copied
	m.saveCount++
	return nil
}

func (m *mockRiskRepo) CreateEvent(ctx context.Context, event *risk.SecurityEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockRiskRepo) GetEvents(ctx context.Context, limit int) ([]*risk.SecurityEvent, error) {
	return m.events, nil
}

// mockRecordRepo is a mock implementation of liquidation.Repository
type mockRecordRepo struct {
	metrics liquidation.WindowMetrics
}

func (m *mockRecordRepo) Append(ctx context.Context, rec *liquidation.Record) error { return nil }

func (m *mockRecordRepo) WindowMetrics(ctx context.Context, now time.Time) (*liquidation.WindowMetrics, error) {
	copied := m.metrics
	return &copied, nil
}

func (m *mockRecordRepo) GetRecent(ctx context.Context, limit int) ([]*liquidation.Record, error) {
	return nil, nil
}

func (m *mockRecordRepo) GetWithLosses(ctx context.Context) ([]*liquidation.Record, error) {
	return nil, nil
}

func (m *mockRecordRepo) GetTokenStats(ctx context.Context, tokenMint string) (*liquidation.TokenStats, error) {
	return &liquidation.TokenStats{TokenMint: tokenMint}, nil
}

func (m *mockRecordRepo) CountByLoan(ctx context.Context, loanID int64) (int, error) {
	return 0, nil
}

func (m *mockRecordRepo) CountByInstanceSince(ctx context.Context, instanceID uuid.UUID, since time.Time) (int, error) {
	return 0, nil
}

var testLimits = breaker.Limits{
	Loss1hLamports:  2_000_000_000,  // 2 SOL
	Loss24hLamports: 10_000_000_000, // 10 SOL
	Count1h:         20,
}

func newTestService(riskRepo *mockRiskRepo, recordRepo *mockRecordRepo) *breaker.Service {
	alerts := alert.New(riskRepo, nil, nil, nil)
	return breaker.New(riskRepo, recordRepo, testLimits, alerts, nil)
}

func TestEvaluate_TripsOn1hLoss(t *testing.T) {
	riskRepo := newMockRiskRepo()
	recordRepo := &mockRecordRepo{
		metrics: liquidation.WindowMetrics{Loss1hLamports: 2_200_000_000},
	}
	svc := newTestService(riskRepo, recordRepo)

	status, err := svc.Evaluate(context.Background())
	require.NoError(t, err)

	assert.True(t, status.Tripped)
	assert.Contains(t, status.TripReason, "1h loss")
	assert.Equal(t, int64(2_200_000_000), status.Loss1hLamports)

	// Latch persisted with the metrics snapshot
	assert.True(t, riskRepo.state.Tripped)
	require.NotNil(t, riskRepo.state.TrippedAt)
	assert.Equal(t, int64(2_200_000_000), riskRepo.state.Loss1hLamports)

	// Critical security event raised
	require.Len(t, riskRepo.events, 1)
	assert.Equal(t, risk.EventBreakerTripped, riskRepo.events[0].EventType)
	assert.Equal(t, alert.SeverityCritical, riskRepo.events[0].Severity)
}

func TestEvaluate_LimitsAreStrict(t *testing.T) {
	riskRepo := newMockRiskRepo()
	recordRepo := &mockRecordRepo{
		metrics: liquidation.WindowMetrics{
			Loss1hLamports:  2_000_000_000,
			Loss24hLamports: 10_000_000_000,
			Count1h:         20,
		},
	}
	svc := newTestService(riskRepo, recordRepo)

	status, err := svc.Evaluate(context.Background())
	require.NoError(t, err)

	// Exactly at every limit is still armed
	assert.False(t, status.Tripped)
	assert.False(t, riskRepo.state.Tripped)
}

func TestEvaluate_TripsOn24hLossAndCount(t *testing.T) {
	testCases := []struct {
		name    string
		metrics liquidation.WindowMetrics
		reason  string
	}{
		{
			name:    "24h loss",
			metrics: liquidation.WindowMetrics{Loss24hLamports: 10_000_000_001},
			reason:  "24h loss",
		},
		{
			name:    "1h count",
			metrics: liquidation.WindowMetrics{Count1h: 21},
			reason:  "count",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			riskRepo := newMockRiskRepo()
			svc := newTestService(riskRepo, &mockRecordRepo{metrics: tc.metrics})

			status, err := svc.Evaluate(context.Background())
			require.NoError(t, err)

			assert.True(t, status.Tripped)
			assert.Contains(t, status.TripReason, tc.reason)
		})
	}
}

func TestStatus_ReportsTrippedWithoutLatching(t *testing.T) {
	riskRepo := newMockRiskRepo()
	recordRepo := &mockRecordRepo{
		metrics: liquidation.WindowMetrics{Loss1hLamports: 3_000_000_000},
	}
	svc := newTestService(riskRepo, recordRepo)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)

	// The window condition holds, so the verdict is tripped
	assert.True(t, status.Tripped)
	assert.NotEmpty(t, status.TripReason)

	// But Status never persists the latch
	assert.Equal(t, 0, riskRepo.saveCount)
	assert.False(t, riskRepo.state.Tripped)
}

func TestReset_RequiresActor(t *testing.T) {
	riskRepo := newMockRiskRepo()
	svc := newTestService(riskRepo, &mockRecordRepo{})

	err := svc.Reset(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestReset_NoOpWhenArmed(t *testing.T) {
	riskRepo := newMockRiskRepo()
	svc := newTestService(riskRepo, &mockRecordRepo{})

	require.NoError(t, svc.Reset(context.Background(), "admin-1"))
	assert.Equal(t, 0, riskRepo.saveCount)
	assert.Empty(t, riskRepo.events)
}

func TestReset_ClearsLatchAndReTripsOnNextEvaluate(t *testing.T) {
	ctx := context.Background()
	riskRepo := newMockRiskRepo()
	recordRepo := &mockRecordRepo{
		metrics: liquidation.WindowMetrics{Loss1hLamports: 2_500_000_000},
	}
	svc := newTestService(riskRepo, recordRepo)

	// Trip, then reset
	_, err := svc.Evaluate(ctx)
	require.NoError(t, err)
	require.True(t, riskRepo.state.Tripped)

	require.NoError(t, svc.Reset(ctx, "admin-1"))
	assert.False(t, riskRepo.state.Tripped)
	assert.Nil(t, riskRepo.state.TripReason)

	// Reset is audited
	var resetEvents int
	for _, e := range riskRepo.events {
		if e.EventType == risk.EventBreakerReset {
			resetEvents++
			assert.Equal(t, "admin-1", e.Actor)
		}
	}
	assert.Equal(t, 1, resetEvents)

	// The window still holds, so the next evaluation re-trips
	status, err := svc.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, status.Tripped)
	assert.True(t, riskRepo.state.Tripped)
}
