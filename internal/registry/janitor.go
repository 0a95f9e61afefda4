package registry

import (
	"context"
	"log"
	"time"
)

// JanitorStore deletes registry rows whose heartbeat lapsed before the cutoff.
type JanitorStore interface {
	DeleteRegistryEntriesOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// MetricsSink records janitor metrics. Methods must be non-blocking.
type MetricsSink interface {
	RegistryRowsDeleted(count int)
}

// JanitorConfig holds registry janitor configuration.
type JanitorConfig struct {
	// Interval is how often dead rows are swept.
	Interval time.Duration
	// DeadTimeout is the heartbeat age after which a row is deleted. It
	// should be at least the resolver's heartbeat timeout, otherwise the
	// stale-address fallback never sees anything.
	DeadTimeout time.Duration
	// BatchSize caps deletions per cycle.
	BatchSize int
}

// DefaultJanitorConfig returns the default janitor configuration.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval:    30 * time.Second,
		DeadTimeout: DefaultHeartbeatTimeout,
		BatchSize:   500,
	}
}

// Janitor periodically removes registry rows from executors that stopped
// heartbeating. It should run on a single instance at a time; the caller
// gates it behind leader election.
type Janitor struct {
	config  JanitorConfig
	store   JanitorStore
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

func NewJanitor(config JanitorConfig, store JanitorStore) *Janitor {
	return &Janitor{
		config: config,
		store:  store,
		clock:  time.Now,
	}
}

// WithMetrics attaches a metrics sink to the janitor.
func (j *Janitor) WithMetrics(sink MetricsSink) *Janitor {
	j.metrics = sink
	return j
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	log.Printf("registry: janitor started (interval=%s, dead_timeout=%s, batch=%d)",
		j.config.Interval, j.config.DeadTimeout, j.config.BatchSize)

	// Sweep immediately on startup, then on ticker.
	j.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("registry: janitor stopped")
			return
		case <-ticker.C:
			j.runCycle(ctx)
		}
	}
}

func (j *Janitor) runCycle(ctx context.Context) {
	cutoff := j.clock().Add(-j.config.DeadTimeout)

	deleted, err := j.store.DeleteRegistryEntriesOlderThan(ctx, cutoff, j.config.BatchSize)
	if err != nil {
		// DB error: log and abort cycle. Will retry next interval.
		log.Printf("registry: janitor sweep failed: %v", err)
		return
	}
	if deleted == 0 {
		return
	}

	log.Printf("registry: janitor removed %d dead row(s)", deleted)
	if j.metrics != nil {
		j.metrics.RegistryRowsDeleted(int(deleted))
	}
}
