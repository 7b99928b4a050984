package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/quickquote/internal/circuitbreaker"
	"github.com/yourorg/quickquote/internal/model"
	"github.com/yourorg/quickquote/internal/ratelimit"
	"github.com/yourorg/quickquote/internal/retry"
)

// fakeClient implements fetch.Client with a pluggable search function.
type fakeClient struct {
	name   string
	search func(ctx context.Context, query string, lat, lng float64) ([]model.Quote, error)
}

func (f *fakeClient) Provider() string { return f.name }

func (f *fakeClient) Search(ctx context.Context, query string, lat, lng float64) ([]model.Quote, error) {
	return f.search(ctx, query, lat, lng)
}

func fastOptions() Options {
	return Options{
		Retry:   retry.Options{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 1},
		Timeout: 50 * time.Millisecond,
	}
}

func newTestGateway(client *fakeClient, opts Options) *Gateway {
	limiter := ratelimit.New(1000, 1000)
	breakers := circuitbreaker.NewRegistry()
	return New(client, limiter, breakers, opts)
}

func TestGateway_SuccessReturnsQuotes(t *testing.T) {
	quotes := []model.Quote{{Provider: "quickmart", Product: "Amul Butter 500g", Price: 245}}
	gw := newTestGateway(&fakeClient{
		name: "quickmart",
		search: func(context.Context, string, float64, float64) ([]model.Quote, error) {
			return quotes, nil
		},
	}, fastOptions())

	got := gw.Search(context.Background(), "butter", 12.9, 77.6, "client-a")
	assert.Equal(t, quotes, got)
}

func TestGateway_FailureAbsorbedIntoEmptySet(t *testing.T) {
	calls := 0
	gw := newTestGateway(&fakeClient{
		name: "quickmart",
		search: func(context.Context, string, float64, float64) ([]model.Quote, error) {
			calls++
			return nil, errors.New("http 500")
		},
	}, fastOptions())

	var observed []string
	gw.OnError = func(provider, kind string) {
		observed = append(observed, provider+"/"+kind)
	}

	got := gw.Search(context.Background(), "butter", 12.9, 77.6, "client-a")
	assert.NotNil(t, got)
	assert.Empty(t, got, "provider failure must yield an empty set, never an error")
	assert.Equal(t, 2, calls, "the failing call should have been retried")
	assert.Equal(t, []string{"quickmart/call_failed"}, observed)
}

func TestGateway_CallReportsProviderCallError(t *testing.T) {
	cause := errors.New("connection refused")
	gw := newTestGateway(&fakeClient{
		name: "quickmart",
		search: func(context.Context, string, float64, float64) ([]model.Quote, error) {
			return nil, cause
		},
	}, fastOptions())

	_, err := gw.Call(context.Background(), "butter", 12.9, 77.6, "client-a")
	var callErr *ProviderCallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "quickmart", callErr.Provider)
	assert.ErrorIs(t, err, cause)
}

func TestGateway_TimeoutTreatedAsFailure(t *testing.T) {
	opts := fastOptions()
	opts.Timeout = 20 * time.Millisecond
	opts.Retry.MaxAttempts = 1

	gw := newTestGateway(&fakeClient{
		name: "quickmart",
		search: func(ctx context.Context, _ string, _, _ float64) ([]model.Quote, error) {
			select {
			case <-time.After(500 * time.Millisecond):
				return []model.Quote{{Provider: "quickmart"}}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}, opts)

	start := time.Now()
	_, err := gw.Call(context.Background(), "butter", 12.9, 77.6, "client-a")
	elapsed := time.Since(start)

	var timeoutErr *ProviderTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "quickmart", timeoutErr.Provider)
	assert.Less(t, elapsed, 200*time.Millisecond, "the aggregator must not wait beyond the timeout")
}

func TestGateway_RateLimitedFailsFastWithoutRetry(t *testing.T) {
	calls := 0
	client := &fakeClient{
		name: "quickmart",
		search: func(context.Context, string, float64, float64) ([]model.Quote, error) {
			calls++
			return []model.Quote{}, nil
		},
	}
	limiter := ratelimit.New(0.001, 1)
	gw := New(client, limiter, circuitbreaker.NewRegistry(), fastOptions())

	_, err := gw.Call(context.Background(), "butter", 12.9, 77.6, "client-a")
	require.NoError(t, err)

	_, err = gw.Call(context.Background(), "butter", 12.9, 77.6, "client-a")
	var rlErr *ratelimit.RateLimitedError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "client-a", rlErr.ClientKey)
	assert.Equal(t, 1, calls, "a denied call must never reach the provider")
}

func TestGateway_BreakerOpensAndRejects(t *testing.T) {
	opts := fastOptions()
	opts.Retry.MaxAttempts = 1

	client := &fakeClient{
		name: "quickmart",
		search: func(context.Context, string, float64, float64) ([]model.Quote, error) {
			return nil, errors.New("http 503")
		},
	}
	breakers := circuitbreaker.NewRegistry(circuitbreaker.WithThresholds(2, 2))
	gw := New(client, ratelimit.New(1000, 1000), breakers, opts)

	for i := 0; i < 2; i++ {
		_, err := gw.Call(context.Background(), "butter", 12.9, 77.6, "client-a")
		require.Error(t, err)
	}

	_, err := gw.Call(context.Background(), "butter", 12.9, 77.6, "client-a")
	var open *circuitbreaker.CircuitOpenError
	require.ErrorAs(t, err, &open, "after the threshold the breaker should reject outright")

	got := gw.Search(context.Background(), "butter", 12.9, 77.6, "client-a")
	assert.Empty(t, got, "an open circuit is absorbed like any other provider failure")
}
