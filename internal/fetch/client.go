// Package fetch provides HTTP clients for retrieving price quotes from
// the upstream providers.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/yourorg/quickquote/internal/config"
	"github.com/yourorg/quickquote/internal/model"
)

// Client defines the interface that all provider clients must implement
type Client interface {
	// Provider returns the provider id quotes from this client carry
	Provider() string

	// Search retrieves quotes for the query around the given location
	Search(ctx context.Context, query string, lat, lng float64) ([]model.Quote, error)
}

// NewClients creates one client per configured provider.
func NewClients(cfg config.Config) []Client {
	clients := make([]Client, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		clients = append(clients, NewRESTClient(p.Name, p.URL, p.APIKey))
	}
	return clients
}

// newRetryClient creates an HTTP client that absorbs transient transport
// failures (connection resets, 5xx) below the gateway's retry policy.
func newRetryClient() *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 1
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.Logger = nil
	return c.StandardClient()
}
