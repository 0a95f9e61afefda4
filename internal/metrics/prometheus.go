package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Dispatch metrics
	triggerAttemptsTotal *prometheus.CounterVec
	triggerOutcomesTotal *prometheus.CounterVec
	triggerDuration      prometheus.Histogram
	triggersInFlight     prometheus.Gauge

	// Callback metrics
	callbackReportsTotal *prometheus.CounterVec

	// ReportBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	// Registry metrics
	registryRowsDeletedTotal prometheus.Counter

	// Leader election metrics
	leaderStatus            prometheus.Gauge
	leaderAcquisitionsTotal prometheus.Counter
	leaderLossesTotal       *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initDispatchMetrics(reg)
	s.initCallbackMetrics(reg)
	s.initReportBusMetrics(reg)
	s.initRegistryMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initDispatchMetrics(reg prometheus.Registerer) {
	s.triggerAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobadmin_dispatch_trigger_attempts_total",
		Help: "Total number of per-address trigger attempts.",
	}, []string{"status_class"})

	s.triggerOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobadmin_dispatch_trigger_outcomes_total",
		Help: "Total number of final trigger outcomes per dispatch.",
	}, []string{"outcome"})

	s.triggerDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "jobadmin_dispatch_trigger_duration_seconds",
		Help:    "Trigger request latency per attempt in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	s.triggersInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobadmin_dispatch_triggers_in_flight",
		Help: "Number of trigger requests currently being processed.",
	})

	s.register(reg, s.triggerAttemptsTotal, "jobadmin_dispatch_trigger_attempts_total")
	s.register(reg, s.triggerOutcomesTotal, "jobadmin_dispatch_trigger_outcomes_total")
	s.register(reg, s.triggerDuration, "jobadmin_dispatch_trigger_duration_seconds")
	s.register(reg, s.triggersInFlight, "jobadmin_dispatch_triggers_in_flight")
}

func (s *PrometheusSink) initCallbackMetrics(reg prometheus.Registerer) {
	s.callbackReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobadmin_callback_reports_total",
		Help: "Total number of callback reports processed, by result.",
	}, []string{"result"})

	s.register(reg, s.callbackReportsTotal, "jobadmin_callback_reports_total")
}

func (s *PrometheusSink) initReportBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobadmin_reportbus_buffer_size",
		Help: "Current number of reports in the callback bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobadmin_reportbus_buffer_capacity",
		Help: "Capacity of the callback bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobadmin_reportbus_buffer_saturation",
		Help: "Fill ratio of the callback bus buffer (0.0 to 1.0).",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobadmin_reportbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full or cancelled).",
	})

	s.register(reg, s.bufferSize, "jobadmin_reportbus_buffer_size")
	s.register(reg, s.bufferCapacity, "jobadmin_reportbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "jobadmin_reportbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "jobadmin_reportbus_emit_errors_total")
}

func (s *PrometheusSink) initRegistryMetrics(reg prometheus.Registerer) {
	s.registryRowsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobadmin_registry_rows_deleted_total",
		Help: "Total number of dead registry rows removed by the janitor.",
	})

	s.register(reg, s.registryRowsDeletedTotal, "jobadmin_registry_rows_deleted_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobadmin_leader_status",
		Help: "Whether this instance currently holds the leader lock (1 or 0).",
	})
	s.leaderAcquisitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobadmin_leader_acquisitions_total",
		Help: "Total number of times this instance acquired the leader lock.",
	})
	s.leaderLossesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobadmin_leader_losses_total",
		Help: "Total number of times leadership was lost, by reason.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "jobadmin_leader_status")
	s.register(reg, s.leaderAcquisitionsTotal, "jobadmin_leader_acquisitions_total")
	s.register(reg, s.leaderLossesTotal, "jobadmin_leader_losses_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Dispatch metrics implementation

func (s *PrometheusSink) TriggerAttemptCompleted(statusClass string, duration time.Duration) {
	s.triggerAttemptsTotal.WithLabelValues(statusClass).Inc()
	s.triggerDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) TriggerOutcome(outcome string) {
	s.triggerOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) TriggersInFlightIncr() {
	s.triggersInFlight.Inc()
}

func (s *PrometheusSink) TriggersInFlightDecr() {
	s.triggersInFlight.Dec()
}

// Callback metrics implementation

func (s *PrometheusSink) CallbackProcessed(result string) {
	s.callbackReportsTotal.WithLabelValues(result).Inc()
}

// ReportBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Registry metrics implementation

func (s *PrometheusSink) RegistryRowsDeleted(count int) {
	s.registryRowsDeletedTotal.Add(float64(count))
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquisitionsTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLossesTotal.WithLabelValues(reason).Inc()
}
