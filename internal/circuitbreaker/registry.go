package circuitbreaker

import (
	"sync"
	"time"
)

// Registry owns one breaker per provider id. Breakers are created lazily
// on first call and live for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	onStateChange    func(name string, from, to State)
}

// RegistryOption configures breakers created by a Registry.
type RegistryOption func(*Registry)

// WithThresholds sets the failure and success thresholds for new breakers.
func WithThresholds(failures, successes int) RegistryOption {
	return func(r *Registry) {
		r.failureThreshold = failures
		r.successThreshold = successes
	}
}

// WithRegistryCooldown sets the open-state cooldown for new breakers.
func WithRegistryCooldown(d time.Duration) RegistryOption {
	return func(r *Registry) { r.cooldown = d }
}

// WithRegistryStateChangeCallback sets the state-change callback for new breakers.
func WithRegistryStateChangeCallback(fn func(name string, from, to State)) RegistryOption {
	return func(r *Registry) { r.onStateChange = fn }
}

// NewRegistry creates a Registry with default thresholds, adjusted by opts.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		breakers:         make(map[string]*Breaker),
		failureThreshold: 5,
		successThreshold: 2,
		cooldown:         60 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the breaker for the provider, creating it on first use.
func (r *Registry) Get(provider string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[provider]; ok {
		return b
	}
	b := New(provider).
		WithFailureThreshold(r.failureThreshold).
		WithSuccessThreshold(r.successThreshold).
		WithCooldown(r.cooldown)
	if r.onStateChange != nil {
		b.WithStateChangeCallback(r.onStateChange)
	}
	r.breakers[provider] = b
	return b
}

// States returns a snapshot of every known breaker's state, keyed by provider.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		states[name] = b.State()
	}
	return states
}
