package metrics

import (
	"testing"
	"time"
)

var _ Sink = (*NoopSink)(nil)
var _ Sink = (*PrometheusSink)(nil)

func TestNoopSink_AllMethodsSafe(t *testing.T) {
	sink := NewNoopSink()

	sink.TriggerAttemptCompleted(StatusClass2xx, time.Second)
	sink.TriggerOutcome(OutcomeSuccess)
	sink.TriggersInFlightIncr()
	sink.TriggersInFlightDecr()
	sink.CallbackProcessed(CallbackApplied)
	sink.BufferSizeUpdate(1)
	sink.BufferCapacitySet(10)
	sink.BufferSaturationUpdate(0.1)
	sink.EmitError()
	sink.RegistryRowsDeleted(1)
	sink.LeaderStatusChanged(true)
	sink.LeaderAcquired()
	sink.LeaderLost("shutdown")
}
