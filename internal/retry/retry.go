// Package retry wraps a single provider call with bounded
// exponential-backoff retries.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Options controls how a single operation is retried.
type Options struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int

	// BaseDelay is the wait before the second attempt
	BaseDelay time.Duration

	// Multiplier grows the delay between attempts: 1 yields a constant
	// delay, values above 1 yield exponential growth
	Multiplier float64

	// OnRetry, if set, observes each failed attempt before the wait
	OnRetry func(attempt int, err error)
}

// DefaultOptions returns the standard retry policy: three attempts,
// one-second constant delay.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  1,
	}
}

// Permanent marks err as non-retryable: Run stops immediately and
// returns it unchanged.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Run attempts op until it succeeds, is classified permanent, the context
// is cancelled, or MaxAttempts is exhausted. The wait before attempt n+1
// is BaseDelay * Multiplier^(n-1). The last observed error is returned
// when attempts run out.
func Run(ctx context.Context, op func(context.Context) error, opts Options) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = 1
	}

	var policy backoff.BackOff
	if opts.Multiplier == 1 {
		policy = backoff.NewConstantBackOff(opts.BaseDelay)
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = opts.BaseDelay
		eb.RandomizationFactor = 0
		eb.Multiplier = opts.Multiplier
		eb.MaxInterval = time.Hour
		eb.MaxElapsedTime = 0
		policy = eb
	}
	policy = backoff.WithContext(backoff.WithMaxRetries(policy, uint64(opts.MaxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		return op(ctx)
	}
	notify := func(err error, _ time.Duration) {
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}
	}

	return backoff.RetryNotify(operation, policy, notify)
}
