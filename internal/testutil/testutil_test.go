package testutil

import (
	"testing"
	"time"
)

func TestFakeClock_Advance(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %s, want %s", clock.Now(), start)
	}

	clock.Advance(90 * time.Second)
	if want := start.Add(90 * time.Second); !clock.Now().Equal(want) {
		t.Errorf("Now() after Advance = %s, want %s", clock.Now(), want)
	}
}

func TestTestContext_HasDeadline(t *testing.T) {
	ctx := TestContext(t)
	if _, ok := ctx.Deadline(); !ok {
		t.Error("TestContext should carry a deadline")
	}
}
