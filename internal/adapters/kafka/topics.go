package kafka

// Topic definitions for Kafka event streaming
const (
	// Liquidation events
	TopicLiquidationExecuted = "liquidations.executed"

	// Risk events
	TopicCircuitBreaker = "risk.circuit_breaker"
	TopicRiskAlert      = "risk.alerts"
)
