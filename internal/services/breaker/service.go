package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"cerberus/internal/adapters/kafka"
	"cerberus/internal/alert"
	"cerberus/internal/domain/liquidation"
	"cerberus/internal/domain/risk"
	"cerberus/internal/events"
	"cerberus/internal/metrics"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

// Limits are the trip thresholds. Values come from configuration; the
// mechanism never hardcodes them.
type Limits struct {
	Loss1hLamports  int64
	Loss24hLamports int64
	Count1h         int
}

// Service is the one-way loss circuit breaker. Tripping is automatic on
// evaluation; only Reset with an audited actor clears the latch. A reset
// does not rewrite history: if the window condition still holds, the next
// evaluation re-trips.
type Service struct {
	riskRepo   risk.Repository
	recordRepo liquidation.Repository
	limits     Limits
	alerts     *alert.Sink
	producer   alert.Producer
	log        *logger.Logger
}

// New creates a circuit breaker service. producer may be nil.
func New(riskRepo risk.Repository, recordRepo liquidation.Repository, limits Limits, alerts *alert.Sink, producer alert.Producer) *Service {
	return &Service{
		riskRepo:   riskRepo,
		recordRepo: recordRepo,
		limits:     limits,
		alerts:     alerts,
		producer:   producer,
		log:        logger.Get().With("component", "circuit_breaker"),
	}
}

// tripReason returns the first limit the metrics strictly exceed, or ""
func (s *Service) tripReason(m *liquidation.WindowMetrics) string {
	switch {
	case m.Loss1hLamports > s.limits.Loss1hLamports:
		return fmt.Sprintf("1h loss %s lamports exceeds limit %s",
			humanize.Comma(m.Loss1hLamports), humanize.Comma(s.limits.Loss1hLamports))
	case m.Loss24hLamports > s.limits.Loss24hLamports:
		return fmt.Sprintf("24h loss %s lamports exceeds limit %s",
			humanize.Comma(m.Loss24hLamports), humanize.Comma(s.limits.Loss24hLamports))
	case m.Count1h > s.limits.Count1h:
		return fmt.Sprintf("1h liquidation count %d exceeds limit %d", m.Count1h, s.limits.Count1h)
	}
	return ""
}

// Status computes the breaker verdict from the record log and the persisted
// latch without mutating anything. A window condition that holds right now
// reports tripped even before Evaluate has persisted the latch.
func (s *Service) Status(ctx context.Context) (*risk.Status, error) {
	state, err := s.riskRepo.GetState(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load breaker state")
	}

	m, err := s.recordRepo.WindowMetrics(ctx, time.Now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute loss windows")
	}

	status := &risk.Status{
		Tripped:         state.Tripped,
		TrippedAt:       state.TrippedAt,
		Loss1hLamports:  m.Loss1hLamports,
		Loss24hLamports: m.Loss24hLamports,
		Count1h:         m.Count1h,
	}
	if state.TripReason != nil {
		status.TripReason = *state.TripReason
	}

	if !status.Tripped {
		if reason := s.tripReason(m); reason != "" {
			status.Tripped = true
			status.TripReason = reason
		}
	}

	return status, nil
}

// Evaluate checks the loss windows and latches the trip when a limit is
// exceeded. Called before every cycle and after every new record.
func (s *Service) Evaluate(ctx context.Context) (*risk.Status, error) {
	state, err := s.riskRepo.GetState(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load breaker state")
	}

	now := time.Now().UTC()
	m, err := s.recordRepo.WindowMetrics(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute loss windows")
	}

	if state.Tripped {
		metrics.BreakerTripped.Set(1)
		return stateStatus(state, m), nil
	}

	reason := s.tripReason(m)
	if reason == "" {
		metrics.BreakerTripped.Set(0)
		return stateStatus(state, m), nil
	}

	// Trip: one-way latch with a metrics snapshot
	state.Tripped = true
	state.TripReason = &reason
	state.TrippedAt = &now
	state.Loss1hLamports = m.Loss1hLamports
	state.Loss24hLamports = m.Loss24hLamports
	state.Count1h = m.Count1h

	if err := s.riskRepo.SaveState(ctx, state); err != nil {
		return nil, errors.Wrap(err, "failed to persist breaker trip")
	}

	metrics.BreakerTripped.Set(1)
	s.log.Error("Circuit breaker tripped", "reason", reason,
		"loss_1h", m.Loss1hLamports, "loss_24h", m.Loss24hLamports, "count_1h", m.Count1h)

	s.alerts.Security(ctx, risk.EventBreakerTripped, alert.SeverityCritical,
		"Liquidation circuit breaker tripped: "+reason,
		map[string]interface{}{
			"loss_1h_lamports":  m.Loss1hLamports,
			"loss_24h_lamports": m.Loss24hLamports,
			"count_1h":          m.Count1h,
		}, "circuit_breaker")

	s.publishChange(ctx, state, m, "")

	return stateStatus(state, m), nil
}

// Reset clears the latch on behalf of an audited actor. History is not
// rewritten: the next Evaluate re-trips if the window condition still holds.
func (s *Service) Reset(ctx context.Context, actorID string) error {
	if actorID == "" {
		return errors.Wrap(errors.ErrUnauthorized, "breaker reset requires an actor id")
	}

	state, err := s.riskRepo.GetState(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load breaker state")
	}

	if !state.Tripped {
		s.log.Info("Breaker reset requested while armed", "actor", actorID)
		return nil
	}

	prevReason := ""
	if state.TripReason != nil {
		prevReason = *state.TripReason
	}

	state.Tripped = false
	state.TripReason = nil
	state.TrippedAt = nil

	if err := s.riskRepo.SaveState(ctx, state); err != nil {
		return errors.Wrap(err, "failed to persist breaker reset")
	}

	metrics.BreakerTripped.Set(0)
	s.log.Warn("Circuit breaker reset", "actor", actorID, "previous_reason", prevReason)

	s.alerts.Security(ctx, risk.EventBreakerReset, alert.SeverityWarning,
		"Circuit breaker manually reset",
		map[string]interface{}{"previous_reason": prevReason}, actorID)

	m, err := s.recordRepo.WindowMetrics(ctx, time.Now().UTC())
	if err != nil {
		m = &liquidation.WindowMetrics{}
	}
	s.publishChange(ctx, state, m, actorID)

	return nil
}

func (s *Service) publishChange(ctx context.Context, state *risk.CircuitBreakerState, m *liquidation.WindowMetrics, actor string) {
	if s.producer == nil {
		return
	}

	reason := ""
	if state.TripReason != nil {
		reason = *state.TripReason
	}

	event := events.CircuitBreakerChanged{
		Tripped:         state.Tripped,
		Reason:          reason,
		Actor:           actor,
		Loss1hLamports:  m.Loss1hLamports,
		Loss24hLamports: m.Loss24hLamports,
		Count1h:         m.Count1h,
		At:              time.Now().UTC(),
	}

	if err := s.producer.Publish(ctx, kafka.TopicCircuitBreaker, "circuit_breaker", event); err != nil {
		s.log.Errorf("Failed to publish breaker change: %v", err)
	}
}

func stateStatus(state *risk.CircuitBreakerState, m *liquidation.WindowMetrics) *risk.Status {
	status := &risk.Status{
		Tripped:         state.Tripped,
		TrippedAt:       state.TrippedAt,
		Loss1hLamports:  m.Loss1hLamports,
		Loss24hLamports: m.Loss24hLamports,
		Count1h:         m.Count1h,
	}
	if state.TripReason != nil {
		status.TripReason = *state.TripReason
	}
	return status
}
