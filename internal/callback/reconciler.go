// Package callback incorporates executors' asynchronous completion reports
// into their trigger log rows, exactly once per log id.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/djlord-it/jobadmin/internal/domain"
)

var (
	// ErrLogNotFound is returned when a report names a log id that does
	// not exist.
	ErrLogNotFound = errors.New("log item not found")
	// ErrDuplicateCallback is returned when a report arrives for a log
	// whose handle fields were already set. The stored outcome is kept.
	ErrDuplicateCallback = errors.New("log repeat callback")
)

// Store applies a callback to a log row.
type Store interface {
	// ApplyCallback sets the handle fields of the log row identified by
	// logID. Implementations MUST apply the idempotence guard and the
	// update as one atomic write: a row whose handle code is already
	// non-zero is left untouched and ErrDuplicateCallback is returned.
	// A missing row yields ErrLogNotFound.
	ApplyCallback(ctx context.Context, logID int64, handleCode int, handleMsg string, handleTime time.Time) error
}

// MetricsSink records reconciler metrics. Methods must be non-blocking.
type MetricsSink interface {
	CallbackProcessed(result string)
}

// Reconciler finalizes trigger logs from callback reports.
type Reconciler struct {
	store        Store
	metrics      MetricsSink // optional, nil = disabled
	clock        func() time.Time
	drainTimeout time.Duration
}

func New(store Store) *Reconciler {
	return &Reconciler{
		store:        store,
		clock:        time.Now,
		drainTimeout: DefaultDrainTimeout,
	}
}

// WithMetrics attaches a metrics sink to the reconciler.
func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

// Apply records one completion report. It returns ErrLogNotFound or
// ErrDuplicateCallback when the report cannot be applied.
func (r *Reconciler) Apply(ctx context.Context, report domain.CallbackReport) error {
	err := r.store.ApplyCallback(ctx, report.LogID, report.HandleCode, report.HandleMsg, r.clock())

	switch {
	case err == nil:
		log.Printf("callback: log=%d finalized code=%d", report.LogID, report.HandleCode)
		r.record("applied")
		return nil
	case errors.Is(err, ErrDuplicateCallback):
		log.Printf("callback: log=%d repeat callback ignored", report.LogID)
		r.record("duplicate")
		return err
	case errors.Is(err, ErrLogNotFound):
		log.Printf("callback: log=%d not found", report.LogID)
		r.record("not_found")
		return err
	default:
		r.record("error")
		return fmt.Errorf("apply callback for log %d: %w", report.LogID, err)
	}
}

// ApplyBatch processes reports independently: a failed item never aborts its
// siblings. Per-item failures are observability-only.
func (r *Reconciler) ApplyBatch(ctx context.Context, reports []domain.CallbackReport) {
	for _, report := range reports {
		if ctx.Err() != nil {
			log.Printf("callback: batch interrupted with %d report(s) unprocessed", len(reports))
			return
		}
		// Apply logs per-item outcomes; errors are intentionally dropped.
		_ = r.Apply(ctx, report)
	}
}

// Run consumes reports from the channel until ctx is cancelled.
// After cancellation, it drains remaining buffered reports with a timeout.
func (r *Reconciler) Run(ctx context.Context, ch <-chan domain.CallbackReport) {
	for {
		select {
		case <-ctx.Done():
			r.drain(ch)
			return
		case report := <-ch:
			_ = r.Apply(ctx, report)
		}
	}
}

// DefaultDrainTimeout is the maximum time to wait for buffered reports
// during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// WithDrainTimeout overrides the shutdown drain timeout.
func (r *Reconciler) WithDrainTimeout(timeout time.Duration) *Reconciler {
	if timeout > 0 {
		r.drainTimeout = timeout
	}
	return r
}

// drain processes remaining reports in the channel buffer after shutdown.
// Uses a background context since the main context is already cancelled.
func (r *Reconciler) drain(ch <-chan domain.CallbackReport) {
	drainCtx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("callback: drain timeout, processed %d reports", count)
			}
			return
		case report, ok := <-ch:
			if !ok {
				log.Printf("callback: drain complete, processed %d reports", count)
				return
			}
			_ = r.Apply(drainCtx, report)
			count++
		default:
			// No more buffered reports
			if count > 0 {
				log.Printf("callback: drain complete, processed %d reports", count)
			}
			return
		}
	}
}

func (r *Reconciler) record(result string) {
	if r.metrics != nil {
		r.metrics.CallbackProcessed(result)
	}
}
