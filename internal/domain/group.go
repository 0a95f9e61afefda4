package domain

import "time"

type AddressMode int8

const (
	// AddressModeAuto resolves executor addresses from the heartbeat registry.
	AddressModeAuto AddressMode = 0
	// AddressModeManual uses the group's static address list.
	AddressModeManual AddressMode = 1
)

// Group is a named collection of executor instances sharing one handler
// deployment. Name doubles as the registry lookup key.
type Group struct {
	ID          int64
	Name        string
	Title       string
	AddressMode AddressMode
	AddressList string // comma-separated, used when AddressModeManual

	UpdatedAt time.Time
}
