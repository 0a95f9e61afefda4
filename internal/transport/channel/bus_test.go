package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/djlord-it/jobadmin/internal/domain"
)

func newTestReport(logID int64) domain.CallbackReport {
	return domain.CallbackReport{
		LogID:       logID,
		LogDateTime: time.Now().UnixMilli(),
		HandleCode:  200,
		HandleMsg:   "ok",
	}
}

func TestReportBus_EmitAndReceive(t *testing.T) {
	bus := NewReportBus(10)
	report := newTestReport(42)

	ctx := context.Background()
	if err := bus.Emit(ctx, report); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case got := <-bus.Channel():
		if got.LogID != report.LogID {
			t.Errorf("LogID = %d, want %d", got.LogID, report.LogID)
		}
		if got.HandleCode != report.HandleCode {
			t.Errorf("HandleCode = %d, want %d", got.HandleCode, report.HandleCode)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for report on channel")
	}
}

func TestReportBus_BufferFull(t *testing.T) {
	bus := NewReportBus(1, WithEmitTimeout(50*time.Millisecond))

	ctx := context.Background()

	if err := bus.Emit(ctx, newTestReport(1)); err != nil {
		t.Fatalf("first Emit failed: %v", err)
	}

	// Second emit should timeout and return ErrBufferFull
	if err := bus.Emit(ctx, newTestReport(2)); err != ErrBufferFull {
		t.Errorf("expected ErrBufferFull, got: %v", err)
	}
}

func TestReportBus_ContextCancelled(t *testing.T) {
	bus := NewReportBus(1, WithEmitTimeout(5*time.Second))

	ctx := context.Background()

	if err := bus.Emit(ctx, newTestReport(1)); err != nil {
		t.Fatalf("first Emit failed: %v", err)
	}

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bus.Emit(cancelledCtx, newTestReport(2)); err != context.Canceled {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestReportBus_ConcurrentEmit(t *testing.T) {
	bus := NewReportBus(1000)
	ctx := context.Background()

	const numGoroutines = 10
	const reportsPerGoroutine = 100

	var wg sync.WaitGroup
	var emitErrors atomic.Int64

	var received atomic.Int64
	done := make(chan struct{})
	go func() {
		for range bus.Channel() {
			received.Add(1)
			if received.Load() >= numGoroutines*reportsPerGoroutine {
				close(done)
				return
			}
		}
	}()

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for j := 0; j < reportsPerGoroutine; j++ {
				if err := bus.Emit(ctx, newTestReport(base*1000+int64(j))); err != nil {
					emitErrors.Add(1)
				}
			}
		}(int64(i))
	}

	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Logf("received %d of %d reports", received.Load(), numGoroutines*reportsPerGoroutine)
	}

	if emitErrors.Load() > 0 {
		t.Errorf("had %d emit errors", emitErrors.Load())
	}
}

func TestReportBus_DefaultEmitTimeout(t *testing.T) {
	bus := NewReportBus(10)

	if bus.emitTimeout != DefaultEmitTimeout {
		t.Errorf("emitTimeout = %v, want %v", bus.emitTimeout, DefaultEmitTimeout)
	}
}

// mockBusMetrics tracks calls to MetricsSink methods.
type mockBusMetrics struct {
	mu                    sync.Mutex
	bufferSizeCalls       []int
	bufferCapacityCalls   []int
	bufferSaturationCalls []float64
	emitErrorCalls        int
}

func (m *mockBusMetrics) BufferSizeUpdate(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufferSizeCalls = append(m.bufferSizeCalls, size)
}

func (m *mockBusMetrics) BufferCapacitySet(capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufferCapacityCalls = append(m.bufferCapacityCalls, capacity)
}

func (m *mockBusMetrics) BufferSaturationUpdate(saturation float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufferSaturationCalls = append(m.bufferSaturationCalls, saturation)
}

func (m *mockBusMetrics) EmitError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitErrorCalls++
}

func TestReportBus_WithMetrics(t *testing.T) {
	metrics := &mockBusMetrics{}
	bus := NewReportBus(10, WithMetrics(metrics))

	metrics.mu.Lock()
	capCalls := len(metrics.bufferCapacityCalls)
	metrics.mu.Unlock()
	if capCalls != 1 {
		t.Errorf("BufferCapacitySet should be called once on init, got %d calls", capCalls)
	}

	ctx := context.Background()
	if err := bus.Emit(ctx, newTestReport(1)); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	metrics.mu.Lock()
	sizeCalls := len(metrics.bufferSizeCalls)
	satCalls := len(metrics.bufferSaturationCalls)
	metrics.mu.Unlock()

	if sizeCalls != 1 {
		t.Errorf("BufferSizeUpdate should be called once after emit, got %d", sizeCalls)
	}
	if satCalls != 1 {
		t.Errorf("BufferSaturationUpdate should be called once after emit, got %d", satCalls)
	}
}

func TestReportBus_MetricsOnBufferFull(t *testing.T) {
	metrics := &mockBusMetrics{}
	bus := NewReportBus(1, WithEmitTimeout(50*time.Millisecond), WithMetrics(metrics))

	ctx := context.Background()

	bus.Emit(ctx, newTestReport(1))
	bus.Emit(ctx, newTestReport(2))

	metrics.mu.Lock()
	errCalls := metrics.emitErrorCalls
	metrics.mu.Unlock()

	if errCalls != 1 {
		t.Errorf("EmitError should be called once on buffer full, got %d", errCalls)
	}
}
