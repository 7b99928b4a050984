package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/quickquote/internal/model"
)

func sampleResult(query string) *model.AggregateResult {
	return &model.AggregateResult{
		Query:     query,
		Results:   []model.Quote{{Provider: "quickmart", Product: query, Price: 245}},
		Timestamp: time.Now().UTC(),
	}
}

func TestKey_CoarseGeoBucketing(t *testing.T) {
	assert.Equal(t, "amul butter:13:78", Key("amul butter", 12.9716, 77.5946))
	assert.Equal(t, "amul butter:13:78", Key("Amul Butter", 13.01, 77.62),
		"nearby coordinates share a bucket")
	assert.Equal(t, "amul butter:12:78", Key("amul butter", 12.4, 77.5946),
		"rounding, not truncation")
	assert.Equal(t, "milk:-23:-43", Key(" Milk ", -22.9, -43.2))
}

func TestResultCache_SetThenGet(t *testing.T) {
	c := New(NewMemoryStore(), time.Second)
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	require.False(t, ok)

	c.Set(ctx, "k", sampleResult("butter"))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "butter", got.Query)
	assert.True(t, got.CacheHit, "cached reads are marked as hits")
}

func TestResultCache_LazyExpiry(t *testing.T) {
	c := New(NewMemoryStore(), 30*time.Millisecond)
	ctx := context.Background()

	c.Set(ctx, "k", sampleResult("butter"))
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "a read past expiry is a miss")
}

func TestResultCache_GetOrSetPopulates(t *testing.T) {
	c := New(NewMemoryStore(), time.Second)
	ctx := context.Background()

	computes := 0
	compute := func(context.Context) (*model.AggregateResult, error) {
		computes++
		return sampleResult("butter"), nil
	}

	first, err := c.GetOrSet(ctx, "k", compute)
	require.NoError(t, err)
	assert.False(t, first.CacheHit, "the computing caller sees a fresh result")

	second, err := c.GetOrSet(ctx, "k", compute)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, computes, "the second call must be served from cache")
}

func TestResultCache_ConcurrentMissesCoalesced(t *testing.T) {
	c := New(NewMemoryStore(), time.Second)
	ctx := context.Background()

	var computes int64
	compute := func(context.Context) (*model.AggregateResult, error) {
		atomic.AddInt64(&computes, 1)
		time.Sleep(20 * time.Millisecond)
		return sampleResult("butter"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.GetOrSet(ctx, "k", compute)
			assert.NoError(t, err)
			assert.Equal(t, "butter", got.Query)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&computes),
		"concurrent misses for one key must trigger a single aggregation")
}

func TestResultCache_HitDoesNotMutateStoredEntry(t *testing.T) {
	c := New(NewMemoryStore(), time.Second)
	ctx := context.Background()

	c.Set(ctx, "k", sampleResult("butter"))

	hit, ok := c.Get(ctx, "k")
	require.True(t, ok)
	hit.Query = "mutated"
	hit.Results[0].Price = 0

	again, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "butter", again.Query, "callers get copies, not the stored entry")
}

func TestMemoryStore_TTLPerEntry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "short", sampleResult("a"), 20*time.Millisecond)
	s.Set(ctx, "long", sampleResult("b"), time.Minute)

	time.Sleep(40 * time.Millisecond)

	_, ok := s.Get(ctx, "short")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "long")
	assert.True(t, ok)
}
