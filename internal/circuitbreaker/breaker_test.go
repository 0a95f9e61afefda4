package circuitbreaker

import (
	"testing"
	"time"

	"github.com/djlord-it/jobadmin/internal/testutil"
)

func newBreakerAt(threshold int, cooldown time.Duration, clock *testutil.FakeClock) *CircuitBreaker {
	cb := New(threshold, cooldown)
	cb.clock = clock.Now
	return cb
}

func TestAllow_UnknownAddress_Allowed(t *testing.T) {
	cb := New(3, 5*time.Second)
	if err := cb.Allow("http://10.0.0.1:9999"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllow_BelowThreshold_Allowed(t *testing.T) {
	cb := New(3, 5*time.Second)
	addr := "http://10.0.0.1:9999"
	cb.RecordFailure(addr)
	cb.RecordFailure(addr)
	if err := cb.Allow(addr); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllow_AtThreshold_Open(t *testing.T) {
	cb := New(3, 5*time.Second)
	addr := "http://10.0.0.1:9999"
	cb.RecordFailure(addr)
	cb.RecordFailure(addr)
	cb.RecordFailure(addr)
	if err := cb.Allow(addr); err == nil {
		t.Fatal("expected ErrCircuitOpen, got nil")
	}
}

func TestAllow_OpenAfterCooldown_HalfOpen(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	cb := newBreakerAt(3, 10*time.Second, clock)
	addr := "http://10.0.0.1:9999"
	cb.RecordFailure(addr)
	cb.RecordFailure(addr)
	cb.RecordFailure(addr)

	clock.Advance(11 * time.Second)
	if err := cb.Allow(addr); err != nil {
		t.Fatalf("expected nil (probe allowed), got %v", err)
	}
	if err := cb.Allow(addr); err == nil {
		t.Fatal("expected ErrCircuitOpen while half-open probe in flight")
	}
}

func TestRecordSuccess_ResetsToClosed(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	cb := newBreakerAt(3, 10*time.Second, clock)
	addr := "http://10.0.0.1:9999"
	cb.RecordFailure(addr)
	cb.RecordFailure(addr)
	cb.RecordFailure(addr)

	clock.Advance(11 * time.Second)
	cb.Allow(addr)
	cb.RecordSuccess(addr)
	if err := cb.Allow(addr); err != nil {
		t.Fatalf("expected nil after reset, got %v", err)
	}
}

func TestRecordFailure_HalfOpenReOpens(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	cb := newBreakerAt(3, 10*time.Second, clock)
	addr := "http://10.0.0.1:9999"
	cb.RecordFailure(addr)
	cb.RecordFailure(addr)
	cb.RecordFailure(addr)

	clock.Advance(11 * time.Second)
	cb.Allow(addr)
	cb.RecordFailure(addr)
	if err := cb.Allow(addr); err == nil {
		t.Fatal("expected ErrCircuitOpen after probe failure re-open")
	}
}

func TestRecordSuccess_ClosedState_NoOp(t *testing.T) {
	cb := New(3, 5*time.Second)
	addr := "http://10.0.0.1:9999"
	cb.RecordSuccess(addr)
	if err := cb.Allow(addr); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIndependentAddresses(t *testing.T) {
	cb := New(2, 5*time.Second)
	addr1 := "http://10.0.0.1:9999"
	addr2 := "http://10.0.0.2:9999"
	cb.RecordFailure(addr1)
	cb.RecordFailure(addr1)
	if err := cb.Allow(addr1); err == nil {
		t.Fatal("expected addr1 open")
	}
	if err := cb.Allow(addr2); err != nil {
		t.Fatalf("expected addr2 allowed, got %v", err)
	}
}

func TestZeroThreshold_NeverOpens(t *testing.T) {
	cb := New(0, 5*time.Second)
	addr := "http://10.0.0.1:9999"
	for i := 0; i < 10; i++ {
		cb.RecordFailure(addr)
	}
	if err := cb.Allow(addr); err != nil {
		t.Fatalf("threshold 0 disables the breaker, got %v", err)
	}
}
