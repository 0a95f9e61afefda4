package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TriggerAttemptCompleted(statusClass string, duration time.Duration) {}
func (n *NoopSink) TriggerOutcome(outcome string)                                      {}
func (n *NoopSink) TriggersInFlightIncr()                                              {}
func (n *NoopSink) TriggersInFlightDecr()                                              {}
func (n *NoopSink) CallbackProcessed(result string)                                    {}
func (n *NoopSink) BufferSizeUpdate(size int)                                          {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                     {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                          {}
func (n *NoopSink) EmitError()                                                         {}
func (n *NoopSink) RegistryRowsDeleted(count int)                                      {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                  {}
func (n *NoopSink) LeaderAcquired()                                                    {}
func (n *NoopSink) LeaderLost(reason string)                                           {}
