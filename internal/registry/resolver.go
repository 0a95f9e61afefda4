// Package registry resolves executor addresses from the heartbeat registry
// and keeps the registry table free of long-dead rows.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/djlord-it/jobadmin/internal/domain"
)

// ErrNoAvailableExecutor is returned when override, static config and the
// registry all yield no address.
var ErrNoAvailableExecutor = errors.New("no available executor address")

// DefaultHeartbeatTimeout is the age after which a registry entry is
// considered stale.
const DefaultHeartbeatTimeout = 90 * time.Second

// Store reads heartbeat rows for one registry key.
type Store interface {
	ListRegistryEntries(ctx context.Context, registryGroup, registryKey string) ([]domain.RegistryEntry, error)
}

// Resolver produces an ordered candidate address list for a group. Explicit
// operator intent wins: a per-request override beats the group's static list,
// which beats registry discovery.
type Resolver struct {
	store            Store
	heartbeatTimeout time.Duration
	clock            func() time.Time
}

func NewResolver(store Store, heartbeatTimeout time.Duration) *Resolver {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = DefaultHeartbeatTimeout
	}
	return &Resolver{
		store:            store,
		heartbeatTimeout: heartbeatTimeout,
		clock:            time.Now,
	}
}

// Resolve returns the candidate addresses for the group, normalized and
// de-duplicated, in attempt order. A non-empty override list short-circuits
// everything else.
func (r *Resolver) Resolve(ctx context.Context, group domain.Group, override string) ([]string, error) {
	if override != "" {
		if list := ParseAddressList(override); len(list) > 0 {
			log.Printf("registry: group=%d using %d override address(es)", group.ID, len(list))
			return list, nil
		}
		log.Printf("registry: group=%d override address list empty after parsing, trying other sources", group.ID)
	}

	if group.AddressMode == domain.AddressModeManual {
		if list := ParseAddressList(group.AddressList); len(list) > 0 {
			log.Printf("registry: group=%d using %d static address(es)", group.ID, len(list))
			return list, nil
		}
		log.Printf("registry: group=%d static address list empty, falling back to registry", group.ID)
	}

	entries, err := r.store.ListRegistryEntries(ctx, domain.RegistryGroupExecutor, group.Name)
	if err != nil {
		return nil, fmt.Errorf("list registry entries: %w", err)
	}

	cutoff := r.clock().Add(-r.heartbeatTimeout)

	seen := make(map[string]bool)
	var alive, stale []string
	for _, entry := range entries {
		addr := NormalizeAddress(entry.RegistryValue)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		if entry.UpdatedAt.Before(cutoff) {
			stale = append(stale, addr)
		} else {
			alive = append(alive, addr)
		}
	}

	if len(alive) > 0 {
		if len(stale) > 0 {
			log.Printf("registry: group=%d skipped %d stale instance(s) past heartbeat timeout", group.ID, len(stale))
		}
		return alive, nil
	}
	if len(stale) > 0 {
		// Better a possibly-dead address than no attempt at all.
		log.Printf("registry: group=%d all %d instance(s) past heartbeat timeout, using stale addresses", group.ID, len(stale))
		return stale, nil
	}

	return nil, ErrNoAvailableExecutor
}

// ParseAddressList splits a raw address list on commas and newlines, trims,
// drops empties and de-duplicates preserving order.
func ParseAddressList(raw string) []string {
	var values []string
	seen := make(map[string]bool)
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }) {
		addr := NormalizeAddress(part)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		values = append(values, addr)
	}
	return values
}

// NormalizeAddress trims the address and prefixes bare host:port with http://.
// Returns "" for blank input.
func NormalizeAddress(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, "://") {
		return trimmed
	}
	return "http://" + trimmed
}
