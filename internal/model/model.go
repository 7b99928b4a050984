// Package model defines the core data structures for quickquote.
package model

import (
	"time"
)

// Quote represents a single provider's offer for a search query.
// This is the shape every provider response is normalized into before
// it reaches the aggregation engine.
type Quote struct {
	// Provider is the unique identifier of the quote source
	Provider string `json:"provider"`

	// ProductID is the provider-side identifier for the product
	ProductID string `json:"product_id,omitempty"`

	// Product is the display name of the offered product
	Product string `json:"product"`

	// Price is the current asking price in rupees
	Price float64 `json:"price"`

	// OriginalPrice is the pre-discount price, if the provider reports one
	OriginalPrice float64 `json:"original_price,omitempty"`

	// DeliveryFee and PlatformFee are added to Price to form the effective price
	DeliveryFee float64 `json:"delivery_fee"`
	PlatformFee float64 `json:"platform_fee"`

	// Quantity and Unit describe the offered amount, e.g. 500 "g" or 2 "pc"
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`

	// InStock reports whether the provider can currently fulfil the offer
	InStock bool `json:"in_stock"`

	// DeliveryETA is the provider's estimated delivery time. Providers that
	// report free-text ETAs have them parsed at the fetch boundary; the
	// aggregator only ever sees a structured duration.
	DeliveryETA time.Duration `json:"delivery_eta"`

	// Derived fields below are recomputed from the raw fields on every
	// aggregation pass and never set by a provider.

	// BaseQuantity is Quantity converted to the base unit: grams for mass,
	// millilitres for volume, the count itself otherwise
	BaseQuantity float64 `json:"base_quantity"`

	// PricePerUnit is the price per 100 base units for mass/volume, or the
	// per-item price for count-based quantities
	PricePerUnit float64 `json:"price_per_unit"`

	// EffectivePrice is Price + DeliveryFee + PlatformFee
	EffectivePrice float64 `json:"effective_price"`

	// Cheapest and Fastest are rank badges assigned by the aggregator
	Cheapest bool `json:"cheapest,omitempty"`
	Fastest  bool `json:"fastest,omitempty"`
}

// Location is the geo point a search was issued for.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Pincode string  `json:"pincode,omitempty"`
}

// AggregateResult is the ranked, badged union of all providers' quotes
// for one search.
type AggregateResult struct {
	// Query is the search string the quotes were gathered for
	Query string `json:"query"`

	// Location the search was scoped to
	Location Location `json:"location"`

	// Results is ordered ascending by effective price. If non-empty the
	// first element carries the cheapest badge.
	Results []Quote `json:"results"`

	// Timestamp is when the aggregate was computed
	Timestamp time.Time `json:"timestamp"`

	// CacheHit reports whether this aggregate was served from cache
	CacheHit bool `json:"cacheHit"`
}

// ETAMinutes returns the delivery ETA in whole minutes, for display.
func (q Quote) ETAMinutes() int {
	return int(q.DeliveryETA / time.Minute)
}
