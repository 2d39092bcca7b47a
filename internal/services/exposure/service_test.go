package exposure_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cerberus/internal/alert"
	domain "cerberus/internal/domain/exposure"
	"cerberus/internal/domain/loan"
	"cerberus/internal/domain/risk"
	"cerberus/internal/domain/token"
	"cerberus/internal/services/exposure"
	"cerberus/pkg/errors"
)

// mockLoanRepo is a mock implementation of loan.Repository
type mockLoanRepo struct {
	aggregates []*loan.MintAggregate
}

func (m *mockLoanRepo) GetByID(ctx context.Context, id int64) (*loan.Loan, error) { return nil, nil }
func (m *mockLoanRepo) GetActive(ctx context.Context) ([]*loan.Loan, error)      { return nil, nil }
func (m *mockLoanRepo) MarkLiquidated(ctx context.Context, id int64, status loan.Status, at time.Time) (bool, error) {
	return false, nil
}
func (m *mockLoanRepo) AggregateActiveByMint(ctx context.Context) ([]*loan.MintAggregate, error) {
	return m.aggregates, nil
}

// mockTokenRepo is a mock implementation of token.Repository
type mockTokenRepo struct {
	enabled []*token.Config
}

func (m *mockTokenRepo) Get(ctx context.Context, tokenMint string) (*token.Config, error) {
	return nil, errors.ErrNotFound
}
func (m *mockTokenRepo) GetAll(ctx context.Context) ([]*token.Config, error)     { return m.enabled, nil }
func (m *mockTokenRepo) GetEnabled(ctx context.Context) ([]*token.Config, error) { return m.enabled, nil }
func (m *mockTokenRepo) Disable(ctx context.Context, tokenMint string, reason string, at time.Time) error {
	return nil
}

// mockLiquidity returns per-mint liquidity or an error
type mockLiquidity struct {
	liquidity map[string]int64
	err       error
}

func (m *mockLiquidity) PoolLiquidity(ctx context.Context, tokenMint string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.liquidity[tokenMint], nil
}

// mockEventRepo only records security events
type mockEventRepo struct {
	events []*risk.SecurityEvent
}

func (m *mockEventRepo) GetState(ctx context.Context) (*risk.CircuitBreakerState, error) {
	return &risk.CircuitBreakerState{ID: 1}, nil
}
func (m *mockEventRepo) SaveState(ctx context.Context, state *risk.CircuitBreakerState) error {
	return nil
}
func (m *mockEventRepo) CreateEvent(ctx context.Context, event *risk.SecurityEvent) error {
	m.events = append(m.events, event)
	return nil
}
func (m *mockEventRepo) GetEvents(ctx context.Context, limit int) ([]*risk.SecurityEvent, error) {
	return m.events, nil
}

var testBands = exposure.Bands{WatchBps: 1000, WarningBps: 2500, CriticalBps: 5000}

func TestBands_Level(t *testing.T) {
	testCases := []struct {
		bps  int64
		want domain.WarningLevel
	}{
		{0, domain.LevelNone},
		{999, domain.LevelNone},
		{1000, domain.LevelWatch},
		{2499, domain.LevelWatch},
		{2500, domain.LevelWarning},
		{4999, domain.LevelWarning},
		{5000, domain.LevelCritical},
		{50_000, domain.LevelCritical},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, testBands.Level(tc.bps), "bps=%d", tc.bps)
	}
}

func TestComputeExposure_Levels(t *testing.T) {
	loanRepo := &mockLoanRepo{
		aggregates: []*loan.MintAggregate{
			{TokenMint: "BONK", ActiveLoans: 3, TotalSolBorrowed: 1_500_000_000},
		},
	}
	// 1.5 SOL borrowed against 10 SOL of pool liquidity = 1500 bps
	liq := &mockLiquidity{liquidity: map[string]int64{"BONK": 10_000_000_000}}
	eventRepo := &mockEventRepo{}
	svc := exposure.New(loanRepo, &mockTokenRepo{}, liq, testBands, alert.New(eventRepo, nil, nil, nil))

	exp, err := svc.ComputeExposure(context.Background(), "BONK")
	require.NoError(t, err)

	require.NotNil(t, exp.ExposureBps)
	assert.Equal(t, int64(1500), *exp.ExposureBps)
	assert.Equal(t, domain.LevelWatch, exp.WarningLevel)
	assert.False(t, exp.LiquidityUnknown)
}

func TestComputeExposure_LiquidityOutageDegradesToUnknown(t *testing.T) {
	loanRepo := &mockLoanRepo{
		aggregates: []*loan.MintAggregate{
			{TokenMint: "WIF", ActiveLoans: 9, TotalSolBorrowed: 9_000_000_000},
		},
	}
	liq := &mockLiquidity{err: errors.ErrUnavailable}
	eventRepo := &mockEventRepo{}
	svc := exposure.New(loanRepo, &mockTokenRepo{}, liq, testBands, alert.New(eventRepo, nil, nil, nil))

	exp, err := svc.ComputeExposure(context.Background(), "WIF")
	require.NoError(t, err)

	// An outage is a data gap, not a risk signal
	assert.True(t, exp.LiquidityUnknown)
	assert.Nil(t, exp.ExposureBps)
	assert.Nil(t, exp.PoolLiquidity)
	assert.Equal(t, domain.LevelNone, exp.WarningLevel)
}

func TestGetAllExposures_IncludesIdleWhitelistedTokens(t *testing.T) {
	loanRepo := &mockLoanRepo{
		aggregates: []*loan.MintAggregate{
			{TokenMint: "BONK", ActiveLoans: 1, TotalSolBorrowed: 100_000_000},
		},
	}
	tokenRepo := &mockTokenRepo{
		enabled: []*token.Config{
			{TokenMint: "BONK", Enabled: true},
			{TokenMint: "POPCAT", Enabled: true},
		},
	}
	liq := &mockLiquidity{liquidity: map[string]int64{"BONK": 10_000_000_000, "POPCAT": 5_000_000_000}}
	eventRepo := &mockEventRepo{}
	svc := exposure.New(loanRepo, tokenRepo, liq, testBands, alert.New(eventRepo, nil, nil, nil))

	all, err := svc.GetAllExposures(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Sorted by mint; POPCAT has zero loans but still appears
	assert.Equal(t, "BONK", all[0].TokenMint)
	assert.Equal(t, "POPCAT", all[1].TokenMint)
	assert.Equal(t, 0, all[1].ActiveLoans)
	require.NotNil(t, all[1].ExposureBps)
	assert.Equal(t, int64(0), *all[1].ExposureBps)
}

func TestRefreshAll_RaisesCriticalEvent(t *testing.T) {
	loanRepo := &mockLoanRepo{
		aggregates: []*loan.MintAggregate{
			// 6 SOL against 10 SOL = 6000 bps, critical
			{TokenMint: "BONK", ActiveLoans: 12, TotalSolBorrowed: 6_000_000_000},
		},
	}
	liq := &mockLiquidity{liquidity: map[string]int64{"BONK": 10_000_000_000}}
	eventRepo := &mockEventRepo{}
	svc := exposure.New(loanRepo, &mockTokenRepo{}, liq, testBands, alert.New(eventRepo, nil, nil, nil))

	all, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.LevelCritical, all[0].WarningLevel)

	require.Len(t, eventRepo.events, 1)
	assert.Equal(t, risk.EventExposureWarning, eventRepo.events[0].EventType)
	assert.Equal(t, alert.SeverityCritical, eventRepo.events[0].Severity)
}
