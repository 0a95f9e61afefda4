// Package channel decouples the callback HTTP endpoint from the reconciler:
// the endpoint acknowledges immediately and the reconciler consumes reports
// from a buffered channel.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/djlord-it/jobadmin/internal/domain"
)

// ErrBufferFull is returned when a report cannot be enqueued within the
// emit timeout.
var ErrBufferFull = errors.New("report buffer full")

// DefaultEmitTimeout bounds how long Emit blocks on a full buffer.
const DefaultEmitTimeout = 5 * time.Second

// MetricsSink records buffer health. Methods must be non-blocking.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

// ReportBus is an in-process buffered queue of callback reports.
type ReportBus struct {
	ch          chan domain.CallbackReport
	emitTimeout time.Duration
	metrics     MetricsSink // optional, nil = disabled
}

type Option func(*ReportBus)

// WithEmitTimeout overrides the default emit timeout.
func WithEmitTimeout(timeout time.Duration) Option {
	return func(b *ReportBus) {
		b.emitTimeout = timeout
	}
}

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *ReportBus) {
		b.metrics = sink
	}
}

func NewReportBus(buffer int, opts ...Option) *ReportBus {
	b := &ReportBus{
		ch:          make(chan domain.CallbackReport, buffer),
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit enqueues a report. It blocks up to the emit timeout when the buffer
// is full, then fails with ErrBufferFull.
func (b *ReportBus) Emit(ctx context.Context, report domain.CallbackReport) error {
	select {
	case b.ch <- report:
		b.updateBufferMetrics()
		return nil
	default:
	}

	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- report:
		b.updateBufferMetrics()
		return nil
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	case <-ctx.Done():
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ctx.Err()
	}
}

// Channel exposes the consumer side of the bus.
func (b *ReportBus) Channel() <-chan domain.CallbackReport {
	return b.ch
}

func (b *ReportBus) updateBufferMetrics() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	capacity := cap(b.ch)
	b.metrics.BufferSizeUpdate(size)
	if capacity > 0 {
		b.metrics.BufferSaturationUpdate(float64(size) / float64(capacity))
	}
}
