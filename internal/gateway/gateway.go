// Package gateway composes the per-provider protection layer: rate-limit
// admission, circuit breaker and retry around one provider's search call.
// A gateway is the unit of fan-out; it absorbs every provider failure
// into an empty result set so that a single bad provider can never abort
// the aggregate.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/quickquote/internal/circuitbreaker"
	"github.com/yourorg/quickquote/internal/fetch"
	"github.com/yourorg/quickquote/internal/model"
	"github.com/yourorg/quickquote/internal/ratelimit"
	"github.com/yourorg/quickquote/internal/retry"
)

// Gateway wraps one provider client with admission control, failure
// isolation and retries.
type Gateway struct {
	client   fetch.Client
	limiter  *ratelimit.Limiter
	breakers *circuitbreaker.Registry
	retry    retry.Options
	timeout  time.Duration

	// OnError, if set, observes the kind of every absorbed failure
	// ("rate_limited", "circuit_open", "timeout", "call_failed")
	OnError func(provider, kind string)
}

// Options holds the protection-layer settings for a gateway.
type Options struct {
	Retry   retry.Options
	Timeout time.Duration
}

// DefaultOptions returns the standard protection policy: three attempts,
// one-second constant delay, five-second per-call timeout.
func DefaultOptions() Options {
	return Options{
		Retry:   retry.DefaultOptions(),
		Timeout: 5 * time.Second,
	}
}

// New creates a gateway for the client. The limiter keys on the calling
// client; the breaker registry keys on the provider id.
func New(client fetch.Client, limiter *ratelimit.Limiter, breakers *circuitbreaker.Registry, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Gateway{
		client:   client,
		limiter:  limiter,
		breakers: breakers,
		retry:    opts.Retry,
		timeout:  opts.Timeout,
	}
}

// Provider returns the id of the provider this gateway wraps.
func (g *Gateway) Provider() string {
	return g.client.Provider()
}

// Search runs the protected provider call and absorbs any failure into
// an empty quote slice. It never returns an error to the aggregator.
func (g *Gateway) Search(ctx context.Context, query string, lat, lng float64, clientKey string) []model.Quote {
	quotes, err := g.Call(ctx, query, lat, lng, clientKey)
	if err != nil {
		g.recordError(err)
		return []model.Quote{}
	}
	return quotes
}

// Call runs the protected provider call and reports the reason for
// failure. Admission is checked first and is never retried; the breaker
// guards the retry-wrapped invocation, so it records one outcome per
// gateway call.
func (g *Gateway) Call(ctx context.Context, query string, lat, lng float64, clientKey string) ([]model.Quote, error) {
	if !g.limiter.Allow(clientKey) {
		return nil, &ratelimit.RateLimitedError{
			ClientKey:  clientKey,
			RetryAfter: g.limiter.RetryAfter(clientKey),
		}
	}

	var quotes []model.Quote
	breaker := g.breakers.Get(g.Provider())
	err := breaker.Execute(func() error {
		return retry.Run(ctx, func(ctx context.Context) error {
			qs, err := g.attempt(ctx, query, lat, lng)
			if err != nil {
				return err
			}
			quotes = qs
			return nil
		}, g.retry)
	}, nil)
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

// attempt performs a single timed provider call. The call runs in its
// own goroutine with a buffered outcome channel: when the timeout fires
// the call is abandoned and a late result is dropped, so exactly one
// outcome is recorded per attempt.
func (g *Gateway) attempt(ctx context.Context, query string, lat, lng float64) ([]model.Quote, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		quotes []model.Quote
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		qs, err := g.client.Search(cctx, query, lat, lng)
		done <- outcome{quotes: qs, err: err}
	}()

	select {
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, &ProviderTimeoutError{Provider: g.Provider(), Timeout: g.timeout}
		}
		return nil, &ProviderCallError{Provider: g.Provider(), Err: cctx.Err()}
	case o := <-done:
		if o.err != nil {
			return nil, &ProviderCallError{Provider: g.Provider(), Err: o.err}
		}
		return o.quotes, nil
	}
}

// recordError logs the absorbed failure and notifies the error observer.
func (g *Gateway) recordError(err error) {
	kind := "call_failed"
	var rl *ratelimit.RateLimitedError
	var co *circuitbreaker.CircuitOpenError
	var to *ProviderTimeoutError
	switch {
	case errors.As(err, &rl):
		kind = "rate_limited"
	case errors.As(err, &co):
		kind = "circuit_open"
	case errors.As(err, &to):
		kind = "timeout"
	}

	logrus.WithFields(logrus.Fields{
		"provider": g.Provider(),
		"kind":     kind,
	}).Warnf("Provider contributed no quotes: %v", err)

	if g.OnError != nil {
		g.OnError(g.Provider(), kind)
	}
}
