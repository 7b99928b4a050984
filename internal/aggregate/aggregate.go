// Package aggregate implements the concurrent fan-out over all provider
// gateways and the normalize/rank/badge pass over the joined results.
package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/quickquote/internal/model"
)

// Searcher is the unit of fan-out. Its Search never fails: provider
// errors are absorbed into an empty slice by the gateway layer.
type Searcher interface {
	Provider() string
	Search(ctx context.Context, query string, lat, lng float64, clientKey string) []model.Quote
}

// Request carries one search through the aggregation engine.
type Request struct {
	Query     string
	Lat       float64
	Lng       float64
	Pincode   string
	ClientKey string
}

// Run invokes every gateway concurrently, waits for all of them to
// settle, and returns the ranked, badged union of their quotes. A slow
// or failing provider cannot block the others: each gateway bounds its
// own call with a timeout and always returns.
func Run(ctx context.Context, req Request, gateways []Searcher) model.AggregateResult {
	// Collect per gateway into a fixed slot so the concatenation order
	// is the gateway order, independent of completion order. Ties in
	// the ranking sort fall back to this order, keeping results
	// deterministic across runs.
	collected := make([][]model.Quote, len(gateways))

	var wg sync.WaitGroup
	for i, gw := range gateways {
		wg.Add(1)
		go func(i int, gw Searcher) {
			defer wg.Done()
			collected[i] = gw.Search(ctx, req.Query, req.Lat, req.Lng, req.ClientKey)
		}(i, gw)
	}
	wg.Wait()

	var quotes []model.Quote
	for _, qs := range collected {
		quotes = append(quotes, qs...)
	}

	logrus.WithFields(logrus.Fields{
		"query":     req.Query,
		"providers": len(gateways),
		"quotes":    len(quotes),
	}).Debug("Fan-out settled")

	return model.AggregateResult{
		Query: req.Query,
		Location: model.Location{
			Lat:     req.Lat,
			Lng:     req.Lng,
			Pincode: req.Pincode,
		},
		Results:   Rank(quotes),
		Timestamp: time.Now().UTC(),
	}
}

// Rank recomputes every derived field, sorts ascending by effective
// price and assigns badges. The sort is stable: quotes with equal
// effective prices keep their input order.
func Rank(quotes []model.Quote) []model.Quote {
	ranked := make([]model.Quote, len(quotes))
	copy(ranked, quotes)

	for i := range ranked {
		Normalize(&ranked[i])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EffectivePrice < ranked[j].EffectivePrice
	})

	badge(ranked)
	return ranked
}

// badge marks the first quote cheapest and the minimum-ETA quote
// fastest. The fastest badge is only assigned when its holder differs
// from the cheapest quote; an empty set gets no badges at all.
func badge(ranked []model.Quote) {
	if len(ranked) == 0 {
		return
	}

	ranked[0].Cheapest = true

	fastest := 0
	for i := 1; i < len(ranked); i++ {
		if ranked[i].DeliveryETA < ranked[fastest].DeliveryETA {
			fastest = i
		}
	}
	if fastest != 0 {
		ranked[fastest].Fastest = true
	}
}
