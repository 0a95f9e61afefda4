package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Dispatch metrics
	TriggerAttemptCompleted(statusClass string, duration time.Duration)
	TriggerOutcome(outcome string)
	TriggersInFlightIncr()
	TriggersInFlightDecr()

	// Callback metrics
	CallbackProcessed(result string)

	// ReportBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()

	// Registry metrics
	RegistryRowsDeleted(count int)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Outcome constants for TriggerOutcome metric.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// StatusClass constants for TriggerAttemptCompleted metric.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// Result constants for CallbackProcessed metric.
const (
	CallbackApplied   = "applied"
	CallbackDuplicate = "duplicate"
	CallbackNotFound  = "not_found"
	CallbackError     = "error"
)
