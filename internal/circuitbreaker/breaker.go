// Package circuitbreaker isolates failing quote providers so that a
// misbehaving upstream cannot drag down every search.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of a circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls are rejected
	StateHalfOpen              // Probing whether the provider has recovered
)

// String returns a human-readable state name for logs and status endpoints.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitOpenError is returned by Execute when the breaker rejects a call.
type CircuitOpenError struct {
	Provider string
}

func (e *CircuitOpenError) Error() string {
	return "circuit open: provider " + e.Provider + " is isolated"
}

// Breaker implements the circuit breaker pattern for a single provider.
//
// Closed moves to Open after failureThreshold consecutive failures. Open
// moves to HalfOpen lazily: the first call queried after the cooldown has
// elapsed since the last failure is admitted as a probe. successThreshold
// consecutive probe successes close the circuit again; a single probe
// failure reopens it immediately.
type Breaker struct {
	// Provider this breaker guards
	name string

	// Consecutive failures needed to open the circuit
	failureThreshold int

	// Consecutive half-open successes needed to close the circuit
	successThreshold int

	// How long the circuit stays open before admitting a probe
	cooldown time.Duration

	// Mutex for thread safety; one breaker guards one provider, so
	// different providers never contend on the same lock
	mu sync.Mutex

	state       State
	failures    int
	successes   int
	lastFailure time.Time

	// Event callback for monitoring/alerting
	onStateChange func(name string, from, to State)
}

// New creates a Breaker for the named provider with default thresholds.
func New(name string) *Breaker {
	return &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 2,
		cooldown:         60 * time.Second,
		state:            StateClosed,
	}
}

// WithFailureThreshold sets the consecutive-failure count that opens the circuit
func (b *Breaker) WithFailureThreshold(n int) *Breaker {
	b.failureThreshold = n
	return b
}

// WithSuccessThreshold sets the half-open successes needed to close the circuit
func (b *Breaker) WithSuccessThreshold(n int) *Breaker {
	b.successThreshold = n
	return b
}

// WithCooldown sets how long the circuit stays open before probing
func (b *Breaker) WithCooldown(d time.Duration) *Breaker {
	b.cooldown = d
	return b
}

// WithStateChangeCallback sets a callback invoked on every state transition
func (b *Breaker) WithStateChangeCallback(fn func(name string, from, to State)) *Breaker {
	b.onStateChange = fn
	return b
}

// IsOpen reports whether the breaker currently rejects calls. It is
// evaluated lazily: when the cooldown has elapsed the breaker moves to
// HalfOpen here and reports "not open", admitting exactly this probing call.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return false
	}
	if time.Since(b.lastFailure) > b.cooldown {
		b.transition(StateHalfOpen)
		b.successes = 0
		return false
	}
	return true
}

// Execute runs call under the breaker's protection. When the circuit is
// open it invokes fallback if supplied, or fails with CircuitOpenError.
// Otherwise the call's outcome is recorded; on failure the fallback, if
// supplied, replaces error propagation.
func (b *Breaker) Execute(call func() error, fallback func() error) error {
	if b.IsOpen() {
		if fallback != nil {
			return fallback()
		}
		return &CircuitOpenError{Provider: b.name}
	}

	if err := call(); err != nil {
		b.RecordFailure()
		if fallback != nil {
			return fallback()
		}
		return err
	}

	b.RecordSuccess()
	return nil
}

// State returns the breaker's current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the provider this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// RecordSuccess resets the failure counter when closed and advances the
// probe counter when half-open. It has no effect while the circuit is open.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.failures = 0
			b.successes = 0
			b.transition(StateClosed)
			logrus.Infof("Circuit breaker closed: provider %s has recovered", b.name)
		}
	}
}

// RecordFailure counts a failure and opens the circuit when the threshold
// is reached. A half-open breaker reopens on the very first failure.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		if b.state != StateOpen {
			b.transition(StateOpen)
			logrus.Warnf("Circuit breaker opened: provider %s after %d consecutive failures", b.name, b.failures)
		}
	}
}

// Reset forcibly returns the breaker to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.transition(StateClosed)
	logrus.Infof("Circuit breaker manually reset: provider %s", b.name)
}

// transition changes state and fires the callback. Callers hold b.mu.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		go b.onStateChange(b.name, from, to)
	}
}
