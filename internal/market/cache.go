package market

import (
	"sync"
	"time"
)

// seriesCache keeps fetched price history for a short window so that
// back-to-back dashboard requests don't hammer the quote endpoint.
type seriesCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]seriesCacheEntry
}

func newSeriesCache(ttl time.Duration) *seriesCache {
	return &seriesCache{ttl: ttl, entries: map[string]seriesCacheEntry{}}
}

func (c *seriesCache) get(key string) (PriceSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.createdAt.Add(c.ttl)) {
		return PriceSeries{}, false
	}
	out := PriceSeries{Ticker: entry.series.Ticker}
	out.Points = make([]PricePoint, len(entry.series.Points))
	copy(out.Points, entry.series.Points)
	return out, true
}

func (c *seriesCache) set(key string, s PriceSeries) {
	c.mu.Lock()
	c.entries[key] = seriesCacheEntry{createdAt: time.Now(), series: s}
	c.mu.Unlock()
}
