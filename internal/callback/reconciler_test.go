package callback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/djlord-it/jobadmin/internal/domain"
	"github.com/djlord-it/jobadmin/internal/testutil"
)

// mockCallbackStore mimics the atomic guarded update: the first callback per
// log id wins, later ones fail ErrDuplicateCallback.
type mockCallbackStore struct {
	mu      sync.Mutex
	known   map[int64]bool
	applied map[int64]appliedCallback
	err     error
}

type appliedCallback struct {
	code int
	msg  string
	at   time.Time
}

func newMockCallbackStore(logIDs ...int64) *mockCallbackStore {
	known := make(map[int64]bool, len(logIDs))
	for _, id := range logIDs {
		known[id] = true
	}
	return &mockCallbackStore{known: known, applied: make(map[int64]appliedCallback)}
}

func (s *mockCallbackStore) ApplyCallback(ctx context.Context, logID int64, handleCode int, handleMsg string, handleTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if !s.known[logID] {
		return ErrLogNotFound
	}
	if _, done := s.applied[logID]; done {
		return ErrDuplicateCallback
	}
	s.applied[logID] = appliedCallback{code: handleCode, msg: handleMsg, at: handleTime}
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	results []string
}

func (s *recordingSink) CallbackProcessed(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

func TestReconciler_ApplyOnce(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockCallbackStore(42)
	r := New(store)
	r.clock = testutil.NewFakeClock(now).Now

	report := domain.CallbackReport{LogID: 42, HandleCode: 200, HandleMsg: "done"}
	if err := r.Apply(testutil.TestContext(t), report); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	got := store.applied[42]
	if got.code != 200 || got.msg != "done" {
		t.Errorf("applied = %+v, want code 200 msg done", got)
	}
	if !got.at.Equal(now) {
		t.Errorf("handle time = %s, want %s", got.at, now)
	}
}

func TestReconciler_DuplicateRejectedFirstWins(t *testing.T) {
	store := newMockCallbackStore(42)
	r := New(store)

	first := domain.CallbackReport{LogID: 42, HandleCode: 200, HandleMsg: "first"}
	second := domain.CallbackReport{LogID: 42, HandleCode: 500, HandleMsg: "second"}

	if err := r.Apply(testutil.TestContext(t), first); err != nil {
		t.Fatalf("first Apply error: %v", err)
	}
	if err := r.Apply(testutil.TestContext(t), second); !errors.Is(err, ErrDuplicateCallback) {
		t.Fatalf("second Apply error = %v, want ErrDuplicateCallback", err)
	}

	got := store.applied[42]
	if got.code != 200 || got.msg != "first" {
		t.Errorf("stored callback = %+v, the first report must stand", got)
	}
}

func TestReconciler_LogNotFound(t *testing.T) {
	r := New(newMockCallbackStore())

	err := r.Apply(testutil.TestContext(t), domain.CallbackReport{LogID: 99, HandleCode: 200})
	if !errors.Is(err, ErrLogNotFound) {
		t.Errorf("error = %v, want ErrLogNotFound", err)
	}
}

func TestReconciler_ApplyBatchItemsIndependent(t *testing.T) {
	store := newMockCallbackStore(1, 3)
	sink := &recordingSink{}
	r := New(store).WithMetrics(sink)

	r.ApplyBatch(testutil.TestContext(t), []domain.CallbackReport{
		{LogID: 1, HandleCode: 200, HandleMsg: "a"},
		{LogID: 2, HandleCode: 200, HandleMsg: "missing"},
		{LogID: 3, HandleCode: 500, HandleMsg: "c"},
	})

	if len(store.applied) != 2 {
		t.Fatalf("applied = %d rows, want 2 (missing id must not abort batch)", len(store.applied))
	}
	if store.applied[3].code != 500 {
		t.Errorf("log 3 code = %d, want 500", store.applied[3].code)
	}

	want := []string{"applied", "not_found", "applied"}
	if len(sink.results) != len(want) {
		t.Fatalf("metrics results = %v, want %v", sink.results, want)
	}
	for i := range want {
		if sink.results[i] != want[i] {
			t.Errorf("metrics result[%d] = %q, want %q", i, sink.results[i], want[i])
		}
	}
}

func TestReconciler_RunDrainsBufferedReports(t *testing.T) {
	store := newMockCallbackStore(1, 2)
	r := New(store)

	ch := make(chan domain.CallbackReport, 4)
	ch <- domain.CallbackReport{LogID: 1, HandleCode: 200}
	ch <- domain.CallbackReport{LogID: 2, HandleCode: 200}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx, ch)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if len(store.applied) != 2 {
		t.Errorf("drained %d reports, want 2", len(store.applied))
	}
}
