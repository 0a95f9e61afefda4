package registry

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/djlord-it/jobadmin/internal/domain"
	"github.com/djlord-it/jobadmin/internal/testutil"
)

type mockStore struct {
	entries []domain.RegistryEntry
	err     error
	calls   int
}

func (s *mockStore) ListRegistryEntries(ctx context.Context, registryGroup, registryKey string) ([]domain.RegistryEntry, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var result []domain.RegistryEntry
	for _, e := range s.entries {
		if e.RegistryGroup == registryGroup && e.RegistryKey == registryKey {
			result = append(result, e)
		}
	}
	return result, nil
}

func newResolverAt(store Store, now time.Time) *Resolver {
	r := NewResolver(store, 90*time.Second)
	clock := testutil.NewFakeClock(now)
	r.clock = clock.Now
	return r
}

func entry(key, value string, at time.Time) domain.RegistryEntry {
	return domain.RegistryEntry{
		RegistryGroup: domain.RegistryGroupExecutor,
		RegistryKey:   key,
		RegistryValue: value,
		UpdatedAt:     at,
	}
}

func TestResolver_OverrideWins(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{entries: []domain.RegistryEntry{entry("app", "10.0.0.1:9999", now)}}
	r := newResolverAt(store, now)

	group := domain.Group{ID: 1, Name: "app", AddressMode: domain.AddressModeManual, AddressList: "static:1111"}

	got, err := r.Resolve(context.Background(), group, "a:1, b:2\n a:1 ")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := []string{"http://a:1", "http://b:2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
	if store.calls != 0 {
		t.Errorf("registry should not be queried when override is supplied")
	}
}

func TestResolver_ManualStaticList(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{}
	r := newResolverAt(store, now)

	group := domain.Group{ID: 1, Name: "app", AddressMode: domain.AddressModeManual, AddressList: "http://s1:8081,s2:8082"}

	got, err := r.Resolve(context.Background(), group, "")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := []string{"http://s1:8081", "http://s2:8082"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolver_ManualEmptyFallsBackToRegistry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{entries: []domain.RegistryEntry{entry("app", "10.0.0.1:9999", now)}}
	r := newResolverAt(store, now)

	group := domain.Group{ID: 1, Name: "app", AddressMode: domain.AddressModeManual, AddressList: " , "}

	got, err := r.Resolve(context.Background(), group, "")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if want := []string{"http://10.0.0.1:9999"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolver_RegistryAliveOnly(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{entries: []domain.RegistryEntry{
		entry("app", "10.0.0.1:9999", now.Add(-30*time.Second)),
		entry("app", "10.0.0.2:9999", now.Add(-5*time.Minute)), // stale
		entry("app", "10.0.0.1:9999", now.Add(-10*time.Second)),
		entry("other", "10.9.9.9:9999", now),
	}}
	r := newResolverAt(store, now)

	group := domain.Group{ID: 1, Name: "app", AddressMode: domain.AddressModeAuto}

	got, err := r.Resolve(context.Background(), group, "")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if want := []string{"http://10.0.0.1:9999"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v (stale must be ignored while any instance is alive)", got, want)
	}
}

func TestResolver_RegistryBoundaryIsAlive(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	// Exactly heartbeat-timeout old: last-update >= now - timeout counts as alive.
	store := &mockStore{entries: []domain.RegistryEntry{
		entry("app", "10.0.0.1:9999", now.Add(-90*time.Second)),
	}}
	r := newResolverAt(store, now)

	got, err := r.Resolve(context.Background(), domain.Group{ID: 1, Name: "app"}, "")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if want := []string{"http://10.0.0.1:9999"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolver_StaleFallback(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{entries: []domain.RegistryEntry{
		entry("app", "10.0.0.1:9999", now.Add(-10*time.Minute)),
		entry("app", "10.0.0.2:9999", now.Add(-20*time.Minute)),
	}}
	r := newResolverAt(store, now)

	got, err := r.Resolve(context.Background(), domain.Group{ID: 1, Name: "app"}, "")
	if err != nil {
		t.Fatalf("Resolve should degrade to stale addresses, got error: %v", err)
	}
	want := []string{"http://10.0.0.1:9999", "http://10.0.0.2:9999"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolver_NoAvailableExecutor(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newResolverAt(&mockStore{}, now)

	_, err := r.Resolve(context.Background(), domain.Group{ID: 1, Name: "app"}, "")
	if !errors.Is(err, ErrNoAvailableExecutor) {
		t.Errorf("error = %v, want ErrNoAvailableExecutor", err)
	}
}

func TestParseAddressList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"blanks only", " ,\n, ", nil},
		{"mixed separators", "a:1,b:2\nc:3", []string{"http://a:1", "http://b:2", "http://c:3"}},
		{"keeps scheme", "https://a:1,a:1", []string{"https://a:1", "http://a:1"}},
		{"dedupes preserving order", "b:2, a:1, b:2", []string{"http://b:2", "http://a:1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAddressList(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAddressList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
