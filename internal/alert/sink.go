package alert

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"cerberus/internal/adapters/kafka"
	"cerberus/internal/domain/risk"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

// Severity levels for security events
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notifier pushes a human-readable alert to an operator channel
type Notifier interface {
	Send(ctx context.Context, severity, title, body string) error
}

// Producer publishes structured events to a topic
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Sink is the single entry point for severity-tagged security events.
// Every event lands in the audited Postgres log; critical events fan out to
// the operator channel, the risk topic and the error tracker. Fan-out
// failures are logged and swallowed: alerting must never fail the
// money-touching path that raised the alert.
type Sink struct {
	repo     risk.Repository
	producer Producer
	notifier Notifier
	tracker  errors.Tracker
	log      *logger.Logger
}

// New creates an alert sink. producer, notifier and tracker may be nil.
func New(repo risk.Repository, producer Producer, notifier Notifier, tracker errors.Tracker) *Sink {
	return &Sink{
		repo:     repo,
		producer: producer,
		notifier: notifier,
		tracker:  tracker,
		log:      logger.Get().With("component", "alert_sink"),
	}
}

// Security records a security event and fans it out by severity
func (s *Sink) Security(ctx context.Context, eventType risk.EventType, severity, message string, data map[string]interface{}, actor string) {
	payload := "{}"
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			payload = string(raw)
		}
	}

	event := &risk.SecurityEvent{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Severity:  severity,
		Message:   message,
		Data:      payload,
		Actor:     actor,
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		s.log.Errorf("Failed to persist security event %s: %v", eventType, err)
	}

	if s.producer != nil {
		if err := s.producer.Publish(ctx, kafka.TopicRiskAlert, eventType.String(), event); err != nil {
			s.log.Errorf("Failed to publish security event %s: %v", eventType, err)
		}
	}

	if severity != SeverityCritical {
		return
	}

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, severity, eventType.String(), message); err != nil {
			s.log.Errorf("Failed to notify security event %s: %v", eventType, err)
		}
	}

	if s.tracker != nil {
		s.tracker.CaptureMessage(ctx, message, errors.LevelError, map[string]string{
			"event_type": eventType.String(),
			"actor":      actor,
		})
	}
}
