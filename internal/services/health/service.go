package health

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cerberus/internal/domain/health"
	"cerberus/internal/domain/liquidation"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

// Policy controls how the protocol-wide verdict is derived
type Policy struct {
	// CycleInterval is the expected scan interval of the coordinator
	CycleInterval time.Duration
	// FailureAlertThreshold is the consecutive-failure count at which an
	// instance stops counting as healthy
	FailureAlertThreshold int
	// StalenessMultiple bounds how many intervals a successful run may lag
	// before an instance counts as stale
	StalenessMultiple int
}

// Service records this instance's cycle outcomes and aggregates all known
// instances into one verdict. Each instance owns its own row; merging
// happens only at read time, because workers are redundant and the
// question is "is the system healthy", not "is this process healthy".
type Service struct {
	repo       health.Repository
	recordRepo liquidation.Repository
	instanceID uuid.UUID
	policy     Policy
	log        *logger.Logger

	mu      sync.Mutex
	current health.InstanceHealth
}

// New creates a health service for one worker instance
func New(repo health.Repository, recordRepo liquidation.Repository, instanceID uuid.UUID, policy Policy) *Service {
	return &Service{
		repo:       repo,
		recordRepo: recordRepo,
		instanceID: instanceID,
		policy:     policy,
		current:    health.InstanceHealth{InstanceID: instanceID},
		log:        logger.Get().With("component", "liquidator_health", "instance_id", instanceID),
	}
}

// RecordJobStart marks the beginning of a cycle and returns its start time
func (s *Service) RecordJobStart(ctx context.Context) time.Time {
	now := time.Now().UTC()

	s.mu.Lock()
	s.current.LastRun = &now
	s.mu.Unlock()

	return now
}

// RecordJobSuccess marks a completed cycle and persists the instance row
func (s *Service) RecordJobSuccess(ctx context.Context, start time.Time, liquidated int) {
	now := time.Now().UTC()
	elapsed := now.Sub(start).Milliseconds()

	count24h, err := s.recordRepo.CountByInstanceSince(ctx, s.instanceID, now.Add(-24*time.Hour))
	if err != nil {
		s.log.Warn("Failed to count 24h liquidations", "error", err)
	}

	s.mu.Lock()
	s.current.LastRun = &now
	s.current.LastSuccessfulRun = &now
	s.current.ConsecutiveFailures = 0
	s.current.LastError = nil
	s.current.Liquidations24h = count24h
	// Exponential moving average keeps the row cheap to maintain
	if s.current.AvgProcessingTimeMs == 0 {
		s.current.AvgProcessingTimeMs = elapsed
	} else {
		s.current.AvgProcessingTimeMs = (s.current.AvgProcessingTimeMs*4 + elapsed) / 5
	}
	snapshot := s.current
	s.mu.Unlock()

	s.persist(ctx, &snapshot)
}

// RecordJobFailure marks a failed cycle and persists the instance row
func (s *Service) RecordJobFailure(ctx context.Context, jobErr error) {
	now := time.Now().UTC()
	msg := jobErr.Error()

	s.mu.Lock()
	s.current.LastRun = &now
	s.current.ConsecutiveFailures++
	s.current.LastError = &msg
	snapshot := s.current
	s.mu.Unlock()

	s.persist(ctx, &snapshot)
}

func (s *Service) persist(ctx context.Context, h *health.InstanceHealth) {
	if err := s.repo.Upsert(ctx, h); err != nil {
		s.log.Error("Failed to persist instance health", "error", err)
	}
}

// GetLiquidatorHealth merges all known instances into the protocol-wide
// verdict: healthy iff at least one instance is live and recently succeeded
func (s *Service) GetLiquidatorHealth(ctx context.Context) (*health.Verdict, error) {
	instances, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load instance health")
	}

	now := time.Now().UTC()
	verdict := &health.Verdict{Instances: instances}

	for _, inst := range instances {
		if s.instanceHealthy(inst, now) {
			verdict.Healthy = true
			break
		}
	}

	return verdict, nil
}

func (s *Service) instanceHealthy(inst *health.InstanceHealth, now time.Time) bool {
	if inst.ConsecutiveFailures >= s.policy.FailureAlertThreshold {
		return false
	}
	if inst.LastSuccessfulRun == nil {
		return false
	}
	staleAfter := s.policy.CycleInterval * time.Duration(s.policy.StalenessMultiple)
	return now.Sub(*inst.LastSuccessfulRun) <= staleAfter
}
