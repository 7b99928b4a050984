package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/quickquote/internal/model"
)

// RESTClient talks to one provider's quote-search endpoint. Every
// configured provider speaks the same JSON shape; provider-specific
// schema mapping happens upstream of this service.
type RESTClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRESTClient creates a client for the named provider.
func NewRESTClient(name, baseURL, apiKey string) *RESTClient {
	return &RESTClient{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: newRetryClient(),
	}
}

// Provider returns the provider id this client fetches for.
func (c *RESTClient) Provider() string {
	return c.name
}

// searchResponse is the common wire shape all providers return.
type searchResponse struct {
	Results []struct {
		ID            string  `json:"id"`
		Name          string  `json:"name"`
		Price         float64 `json:"price"`
		OriginalPrice float64 `json:"original_price"`
		DeliveryFee   float64 `json:"delivery_fee"`
		PlatformFee   float64 `json:"platform_fee"`
		Quantity      float64 `json:"quantity"`
		Unit          string  `json:"unit"`
		InStock       bool    `json:"in_stock"`
		ETA           string  `json:"eta"`
	} `json:"results"`
}

// Search retrieves quotes for the query around the given location.
func (c *RESTClient) Search(ctx context.Context, query string, lat, lng float64) ([]model.Quote, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	logrus.Debugf("Fetching quotes from %s for %q", c.name, query)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching quotes from %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s API error: status %d, body: %s", c.name, resp.StatusCode, string(body))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("error decoding %s response: %w", c.name, err)
	}

	quotes := make([]model.Quote, 0, len(payload.Results))
	for _, r := range payload.Results {
		eta, err := ParseETA(r.ETA)
		if err != nil {
			logrus.Debugf("Unparseable ETA %q from %s, treating as unknown", r.ETA, c.name)
		}
		quotes = append(quotes, model.Quote{
			Provider:      c.name,
			ProductID:     r.ID,
			Product:       r.Name,
			Price:         r.Price,
			OriginalPrice: r.OriginalPrice,
			DeliveryFee:   r.DeliveryFee,
			PlatformFee:   r.PlatformFee,
			Quantity:      r.Quantity,
			Unit:          r.Unit,
			InStock:       r.InStock,
			DeliveryETA:   eta,
		})
	}

	logrus.Debugf("Received %d quotes from %s", len(quotes), c.name)
	return quotes, nil
}
