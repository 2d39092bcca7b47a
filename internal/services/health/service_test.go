package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "cerberus/internal/domain/health"
	"cerberus/internal/domain/liquidation"
	"cerberus/internal/services/health"
	"cerberus/pkg/errors"
)

// mockHealthRepo is a mock implementation of health.Repository
type mockHealthRepo struct {
	rows map[uuid.UUID]*domain.InstanceHealth
}

func newMockHealthRepo() *mockHealthRepo {
	return &mockHealthRepo{rows: make(map[uuid.UUID]*domain.InstanceHealth)}
}

func (m *mockHealthRepo) Upsert(ctx context.Context, h *domain.InstanceHealth) error {
	copied := *h
	m.rows[h.InstanceID] = &copied
	return nil
}

func (m *mockHealthRepo) Get(ctx context.Context, instanceID uuid.UUID) (*domain.InstanceHealth, error) {
	if h, ok := m.rows[instanceID]; ok {
		return h, nil
	}
	return nil, errors.ErrNotFound
}

func (m *mockHealthRepo) GetAll(ctx context.Context) ([]*domain.InstanceHealth, error) {
	all := make([]*domain.InstanceHealth, 0, len(m.rows))
	for _, h := range m.rows {
		all = append(all, h)
	}
	return all, nil
}

// mockRecordRepo only serves the 24h instance counter
type mockRecordRepo struct {
	count24h int
}

func (m *mockRecordRepo) Append(ctx context.Context, rec *liquidation.Record) error { return nil }
func (m *mockRecordRepo) WindowMetrics(ctx context.Context, now time.Time) (*liquidation.WindowMetrics, error) {
	return &liquidation.WindowMetrics{}, nil
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
func (m *mockRecordRepo) CountByLoan(ctx context.Context, loanID int64) (int, error) { return 0, nil }
func (m *mockRecordRepo) CountByInstanceSince(ctx context.Context, instanceID uuid.UUID, since time.Time) (int, error) {
	return m.count24h, nil
}

var testPolicy = health.Policy{
	CycleInterval:         time.Minute,
	FailureAlertThreshold: 3,
	StalenessMultiple:     3,
}

func TestRecordJobSuccess_PersistsInstanceRow(t *testing.T) {
	ctx := context.Background()
	repo := newMockHealthRepo()
	instanceID := uuid.New()
	svc := health.New(repo, &mockRecordRepo{count24h: 7}, instanceID, testPolicy)

	start := svc.RecordJobStart(ctx)
	svc.RecordJobSuccess(ctx, start, 2)

	row, err := repo.Get(ctx, instanceID)
	require.NoError(t, err)
	assert.NotNil(t, row.LastRun)
	assert.NotNil(t, row.LastSuccessfulRun)
	assert.Equal(t, 0, row.ConsecutiveFailures)
	assert.Nil(t, row.LastError)
	assert.Equal(t, 7, row.Liquidations24h)
}

func TestRecordJobFailure_CountsConsecutively(t *testing.T) {
	ctx := context.Background()
	repo := newMockHealthRepo()
	instanceID := uuid.New()
	svc := health.New(repo, &mockRecordRepo{}, instanceID, testPolicy)

	svc.RecordJobFailure(ctx, errors.New("settlement timeout"))
	svc.RecordJobFailure(ctx, errors.New("settlement timeout"))

	row, err := repo.Get(ctx, instanceID)
	require.NoError(t, err)
	assert.Equal(t, 2, row.ConsecutiveFailures)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "settlement timeout", *row.LastError)

	// A success resets the streak
	start := svc.RecordJobStart(ctx)
	svc.RecordJobSuccess(ctx, start, 0)

	row, err = repo.Get(ctx, instanceID)
	require.NoError(t, err)
	assert.Equal(t, 0, row.ConsecutiveFailures)
	assert.Nil(t, row.LastError)
}

func TestGetLiquidatorHealth_AnyOneHealthy(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	recent := now.Add(-time.Minute)
	stale := now.Add(-10 * time.Minute)

	testCases := []struct {
		name      string
		instances []*domain.InstanceHealth
		want      bool
	}{
		{
			name: "one healthy among failing",
			instances: []*domain.InstanceHealth{
				{InstanceID: uuid.New(), ConsecutiveFailures: 5, LastSuccessfulRun: &recent},
				{InstanceID: uuid.New(), ConsecutiveFailures: 0, LastSuccessfulRun: &recent},
			},
			want: true,
		},
		{
			name: "all failing",
			instances: []*domain.InstanceHealth{
				{InstanceID: uuid.New(), ConsecutiveFailures: 3, LastSuccessfulRun: &recent},
				{InstanceID: uuid.New(), ConsecutiveFailures: 4, LastSuccessfulRun: &recent},
			},
			want: false,
		},
		{
			name: "all stale",
			instances: []*domain.InstanceHealth{
				{InstanceID: uuid.New(), LastSuccessfulRun: &stale},
			},
			want: false,
		},
		{
			name: "never succeeded",
			instances: []*domain.InstanceHealth{
				{InstanceID: uuid.New()},
			},
			want: false,
		},
		{
			name:      "no instances",
			instances: nil,
			want:      false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockHealthRepo()
			for _, inst := range tc.instances {
				require.NoError(t, repo.Upsert(ctx, inst))
			}
			svc := health.New(repo, &mockRecordRepo{}, uuid.New(), testPolicy)

			verdict, err := svc.GetLiquidatorHealth(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, verdict.Healthy)
			assert.Len(t, verdict.Instances, len(tc.instances))
		})
	}
}
