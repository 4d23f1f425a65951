// Package cache provides an in-memory cache of projected satellite positions.
//
// Entries are keyed on (NORAD ID, instant truncated to Step) and tagged with
// the TLE store version they were computed from, so a dataset swap never
// serves positions derived from replaced elements. A background worker
// evicts entries whose instant or computation is older than Buffer and drops
// everything when the dataset changes.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/metrics"
	"github.com/star/skysat/internal/tle"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	Step   time.Duration // key granularity (default: 1s); 0 disables caching
	Buffer time.Duration // keep entries this long past their instant and past their computation (default: 60s)
}

type key struct {
	noradID int
	at      int64 // UnixNano of the step-aligned instant
}

type entry struct {
	position    geo.Position
	version     uint64
	generatedAt time.Time
}

// ComputeFunc produces the position of a satellite at a step-aligned instant.
type ComputeFunc func(at time.Time) (geo.Position, error)

// PositionCache is safe for concurrent use by multiple goroutines.
type PositionCache struct {
	mu      sync.RWMutex
	entries map[key]*entry

	config Config
	store  *tle.Store
	logger *slog.Logger

	// Store version the entries were built from.
	currentVersion atomic.Uint64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewPositionCache creates a cache bound to store's dataset version.
func NewPositionCache(config Config, store *tle.Store, logger *slog.Logger) *PositionCache {
	logger.Info("cache initialized",
		"step_seconds", config.Step.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
	)

	c := &PositionCache{
		entries: make(map[key]*entry),
		config:  config,
		store:   store,
		logger:  logger,
	}
	c.currentVersion.Store(store.Version())
	return c
}

// Enabled reports whether lookups are cached at all.
func (c *PositionCache) Enabled() bool {
	return c.config.Step > 0
}

// RoundToStep rounds a timestamp down to the nearest step boundary, in UTC.
func (c *PositionCache) RoundToStep(t time.Time) time.Time {
	if !c.Enabled() {
		return t.UTC()
	}
	return t.UTC().Truncate(c.config.Step)
}

// Get returns the cached position of noradID at the step containing t.
func (c *PositionCache) Get(noradID int, t time.Time) (geo.Position, bool) {
	if !c.Enabled() {
		return geo.Position{}, false
	}
	k := key{noradID: noradID, at: c.RoundToStep(t).UnixNano()}
	version := c.store.Version()

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if ok && e.version == version {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return e.position, true
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return geo.Position{}, false
}

// Put stores pos for noradID at the step containing pos.Time, tagged with
// the current store version.
func (c *PositionCache) Put(noradID int, pos geo.Position) {
	c.put(noradID, pos, c.store.Version())
}

// put stores pos under the store version it was computed from.
func (c *PositionCache) put(noradID int, pos geo.Position, version uint64) {
	if !c.Enabled() {
		return
	}
	k := key{noradID: noradID, at: c.RoundToStep(pos.Time).UnixNano()}
	e := &entry{
		position:    pos,
		version:     version,
		generatedAt: time.Now(),
	}

	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()

	c.updateMetrics()
}

// GetOrCompute returns the cached position for the step containing t, or
// calls compute with the step-aligned instant and caches the result.
// With caching disabled compute is called with t itself.
func (c *PositionCache) GetOrCompute(noradID int, t time.Time, compute ComputeFunc) (geo.Position, error) {
	if pos, ok := c.Get(noradID, t); ok {
		return pos, nil
	}

	// A refresh may swap the dataset while compute runs; the result then
	// belongs to the version read here, not the one current afterwards.
	version := c.store.Version()
	pos, err := compute(c.RoundToStep(t))
	if err != nil {
		return geo.Position{}, err
	}
	c.put(noradID, pos, version)
	return pos, nil
}

// Reset drops every entry.
func (c *PositionCache) Reset() {
	c.mu.Lock()
	removed := len(c.entries)
	c.entries = make(map[key]*entry)
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
	}
	c.updateMetrics()
}

// evictExpired removes entries whose instant is older than now - buffer, and
// entries computed more than buffer ago whatever their instant, so lookups
// of far-future times cannot accumulate.
func (c *PositionCache) evictExpired(now time.Time) int {
	cutoff := now.Add(-c.config.Buffer)
	cutoffNano := cutoff.UnixNano()
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if k.at < cutoffNano || e.generatedAt.Before(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}

	return removed
}

// Stats returns current cache statistics.
func (c *PositionCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	satellites := make(map[int]struct{})
	var oldest, newest int64
	for k := range c.entries {
		satellites[k.noradID] = struct{}{}
		if oldest == 0 || k.at < oldest {
			oldest = k.at
		}
		if newest == 0 || k.at > newest {
			newest = k.at
		}
	}
	c.mu.RUnlock()

	s := Stats{
		Entries:    count,
		Satellites: len(satellites),
		SizeBytes:  estimateSizeBytes(count),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
	}
	if count > 0 {
		s.OldestTimestamp = time.Unix(0, oldest).UTC()
		s.NewestTimestamp = time.Unix(0, newest).UTC()
	}
	return s
}

// Stats holds cache statistics for the metadata endpoint.
type Stats struct {
	Entries         int       `json:"entries"`
	Satellites      int       `json:"satellites"`
	SizeBytes       int64     `json:"size_bytes"`
	OldestTimestamp time.Time `json:"oldest_timestamp"`
	NewestTimestamp time.Time `json:"newest_timestamp"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	Evictions       int64     `json:"evictions"`
}

// estimateSizeBytes returns a rough estimate of the cache memory footprint.
func estimateSizeBytes(entries int) int64 {
	// Entry payload plus the map slot holding the key and pointer.
	perEntry := int64(unsafe.Sizeof(entry{})) + int64(unsafe.Sizeof(key{})) + 8
	return int64(entries) * perEntry
}

// updateMetrics publishes current cache size to Prometheus.
func (c *PositionCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
	metrics.SetCacheSizeBytes(estimateSizeBytes(count))
}
