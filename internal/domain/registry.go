package domain

import "time"

// RegistryGroupExecutor is the registry partition executors heartbeat into.
const RegistryGroupExecutor = "EXECUTOR"

// RegistryEntry is one executor heartbeat row. Uniqueness is on the
// (RegistryGroup, RegistryKey, RegistryValue) triple; multiple entries may
// share a key, one per live executor instance.
type RegistryEntry struct {
	ID            int64
	RegistryGroup string
	RegistryKey   string // group name
	RegistryValue string // executor address
	UpdatedAt     time.Time
}
