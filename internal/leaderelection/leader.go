// Package leaderelection gates singleton background duties (the registry
// janitor) behind a Postgres session advisory lock, so only one console
// instance runs them at a time.
//
// The lock lives for as long as the dedicated connection does; Postgres
// releases it server-side when the session ends. There is no TTL and no
// renewal. The periodic ping only notices that the connection died locally,
// so duties can be stopped without waiting for the next sweep.
package leaderelection

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// Loss reasons reported to the metrics sink and logs.
const (
	lossShutdown = "shutdown"
	lossConnLost = "conn_lost"
)

// MetricsSink records election state changes. Methods must be non-blocking.
type MetricsSink interface {
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Config holds leader election configuration.
type Config struct {
	// LockKey identifies the advisory lock. Every console instance of the
	// same deployment must campaign on the same key.
	LockKey int64
	// RetryInterval is how long a follower waits between campaign attempts.
	RetryInterval time.Duration
	// HeartbeatInterval is how often the leader pings its dedicated
	// connection to detect that the lock-holding session died.
	HeartbeatInterval time.Duration
}

// DefaultConfig returns the default election configuration.
func DefaultConfig() Config {
	return Config{
		LockKey:           847291,
		RetryInterval:     15 * time.Second,
		HeartbeatInterval: 10 * time.Second,
	}
}

// Elector campaigns for the advisory lock and runs leader duties while it
// holds it.
type Elector struct {
	config    Config
	db        *sql.DB
	onElected func(ctx context.Context)
	onDemoted func()
	metrics   MetricsSink // optional, nil = disabled
}

// NewElector builds an elector. onElected runs in its own goroutine once the
// lock is won; its context is cancelled when leadership ends, and it should
// start the duties and return. onDemoted runs synchronously after leadership
// ends and must block until the duties have stopped; it must be idempotent.
func NewElector(config Config, db *sql.DB, onElected func(ctx context.Context), onDemoted func()) *Elector {
	def := DefaultConfig()
	if config.LockKey == 0 {
		config.LockKey = def.LockKey
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = def.HeartbeatInterval
	}
	return &Elector{
		config:    config,
		db:        db,
		onElected: onElected,
		onDemoted: onDemoted,
	}
}

// WithMetrics attaches a metrics sink to the elector.
func (e *Elector) WithMetrics(sink MetricsSink) *Elector {
	e.metrics = sink
	return e
}

// Run campaigns until ctx is cancelled, alternating between follower waits
// and leadership terms.
func (e *Elector) Run(ctx context.Context) {
	log.Printf("leaderelection: campaigning (lock_key=%d, retry=%s, heartbeat=%s)",
		e.config.LockKey, e.config.RetryInterval, e.config.HeartbeatInterval)

	for ctx.Err() == nil {
		if won := e.campaign(ctx); won {
			// campaign returns only after a full leadership term.
			if ctx.Err() != nil {
				break
			}
			log.Printf("leaderelection: leadership ended, campaigning again in %s", e.config.RetryInterval)
		}

		select {
		case <-ctx.Done():
		case <-time.After(e.config.RetryInterval):
		}
	}

	log.Println("leaderelection: stopped")
}

// campaign makes one lock attempt on a dedicated connection. When the lock
// is won it serves the whole leadership term before returning true.
func (e *Elector) campaign(ctx context.Context) bool {
	// Session advisory locks belong to one connection, so the pool cannot
	// be allowed to swap it out underneath the term.
	conn, err := e.db.Conn(ctx)
	if err != nil {
		log.Printf("leaderelection: no dedicated connection: %v", err)
		return false
	}
	defer conn.Close()

	var won bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", e.config.LockKey).Scan(&won); err != nil {
		log.Printf("leaderelection: lock attempt failed: %v", err)
		return false
	}
	if !won {
		log.Printf("leaderelection: lock %d held elsewhere", e.config.LockKey)
		return false
	}

	e.lead(ctx, conn)
	return true
}

// lead runs one leadership term: start duties, watch the connection, stop
// duties, report how the term ended.
func (e *Elector) lead(ctx context.Context, conn *sql.Conn) {
	log.Printf("leaderelection: won lock %d, starting duties", e.config.LockKey)
	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(true)
		e.metrics.LeaderAcquired()
	}

	dutyCtx, stopDuties := context.WithCancel(ctx)
	go e.onElected(dutyCtx)

	reason := e.watchConn(ctx, conn)

	stopDuties()
	e.onDemoted()

	if e.metrics != nil {
		e.metrics.LeaderStatusChanged(false)
		e.metrics.LeaderLost(reason)
	}
	log.Printf("leaderelection: gave up lock %d (%s)", e.config.LockKey, reason)
}

// watchConn pings the lock-holding connection until it dies or ctx ends.
// The ping never renews anything; a dead connection means Postgres already
// released the lock on its side.
func (e *Elector) watchConn(ctx context.Context, conn *sql.Conn) string {
	ticker := time.NewTicker(e.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return lossShutdown
		case <-ticker.C:
			if err := conn.PingContext(ctx); err != nil {
				if ctx.Err() != nil {
					return lossShutdown
				}
				log.Printf("leaderelection: lock connection lost: %v", err)
				return lossConnLost
			}
		}
	}
}
