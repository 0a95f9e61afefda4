// Package circuitbreaker short-circuits trigger attempts against executor
// addresses that keep failing, so one dead instance does not slow every
// dispatch by a full connect timeout.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type addressState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker tracks consecutive failures per executor address. After
// threshold failures the address is refused until the cooldown elapses, then
// a single half-open probe is allowed through.
type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*addressState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*addressState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

func (cb *CircuitBreaker) Allow(address string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[address]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.clock().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		// One probe is already in flight.
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(address string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[address]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

func (cb *CircuitBreaker) RecordFailure(address string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[address]
	if !ok {
		s = &addressState{}
		cb.states[address] = s
	}

	s.consecutiveFailures++
	if cb.threshold > 0 && s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = cb.clock()
	}
}
