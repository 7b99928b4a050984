package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProvider = errors.New("provider unavailable")

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("quickmart").WithFailureThreshold(5)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		assert.False(t, b.IsOpen(), "breaker should stay closed below the threshold")
	}

	b.RecordFailure()
	assert.True(t, b.IsOpen(), "breaker should open on the fifth consecutive failure")
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("quickmart").WithFailureThreshold(3)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	assert.False(t, b.IsOpen(), "a success should reset the consecutive-failure count")
}

func TestBreaker_CooldownAdmitsProbe(t *testing.T) {
	b := New("quickmart").WithFailureThreshold(1).WithCooldown(30 * time.Millisecond)

	b.RecordFailure()
	require.True(t, b.IsOpen())

	time.Sleep(40 * time.Millisecond)

	assert.False(t, b.IsOpen(), "after cooldown the probing call must be admitted")
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	b := New("quickmart").
		WithFailureThreshold(1).
		WithSuccessThreshold(2).
		WithCooldown(10 * time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.False(t, b.IsOpen())
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State(), "one success should not yet close the circuit")

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State(), "two successes should close the circuit")
}

func TestBreaker_HalfOpenReopensOnSingleFailure(t *testing.T) {
	b := New("quickmart").WithFailureThreshold(5).WithCooldown(10 * time.Millisecond)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	time.Sleep(20 * time.Millisecond)
	require.False(t, b.IsOpen())
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State(), "any half-open failure must reopen immediately")
	assert.True(t, b.IsOpen())
}

func TestBreaker_ExecuteRecordsOutcomes(t *testing.T) {
	b := New("quickmart").WithFailureThreshold(2)

	err := b.Execute(func() error { return errProvider }, nil)
	assert.ErrorIs(t, err, errProvider, "call errors propagate without a fallback")

	err = b.Execute(func() error { return errProvider }, nil)
	require.ErrorIs(t, err, errProvider)
	require.Equal(t, StateOpen, b.State())

	err = b.Execute(func() error { return nil }, nil)
	var open *CircuitOpenError
	require.ErrorAs(t, err, &open, "open circuit should reject with CircuitOpenError")
	assert.Equal(t, "quickmart", open.Provider)
}

func TestBreaker_ExecuteFallback(t *testing.T) {
	b := New("quickmart").WithFailureThreshold(1)

	fallbackCalled := false
	fallback := func() error {
		fallbackCalled = true
		return nil
	}

	err := b.Execute(func() error { return errProvider }, fallback)
	assert.NoError(t, err, "fallback replaces error propagation on failure")
	assert.True(t, fallbackCalled)

	fallbackCalled = false
	err = b.Execute(func() error { return nil }, fallback)
	assert.NoError(t, err)
	assert.True(t, fallbackCalled, "open circuit should invoke the fallback")
}

func TestRegistry_OneBreakerPerProvider(t *testing.T) {
	r := NewRegistry(WithThresholds(1, 2), WithRegistryCooldown(time.Minute))

	a := r.Get("quickmart")
	b := r.Get("grocio")
	assert.Same(t, a, r.Get("quickmart"), "registry must reuse the provider's breaker")

	a.RecordFailure()
	assert.True(t, a.IsOpen())
	assert.False(t, b.IsOpen(), "one provider's failures must not affect another")

	states := r.States()
	assert.Equal(t, StateOpen, states["quickmart"])
	assert.Equal(t, StateClosed, states["grocio"])
}
