// Package forecast fetches per-provider weather forecasts and fuses them into
// ensemble estimates.
package forecast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/suncheck/weatheredge/internal/models"
)

// ErrUnavailable signals that a provider has no forecast for the requested
// location, date, or variable. Partial availability is not a failure at this
// boundary; callers aggregate whatever samples arrive.
var ErrUnavailable = errors.New("forecast unavailable")

// Provider is a single upstream forecast source.
type Provider interface {
	Name() string
	Supports(loc models.Location, v models.Variable) bool
	Fetch(ctx context.Context, loc models.Location, date string, v models.Variable) (models.ForecastSample, error)
}

// cache holds fetched samples for a bounded freshness window so repeated
// scans within the window do not hit the upstream API again.
type cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	sample  models.ForecastSample
	expires time.Time
}

func newCache(ttl time.Duration) *cache {
	return &cache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func cacheKey(loc models.Location, date string, v models.Variable) string {
	return loc.Key + "|" + date + "|" + string(v)
}

func (c *cache) get(key string) (models.ForecastSample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, key)
		return models.ForecastSample{}, false
	}
	return e.sample, true
}

func (c *cache) put(key string, s models.ForecastSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{sample: s, expires: time.Now().Add(c.ttl)}
}
