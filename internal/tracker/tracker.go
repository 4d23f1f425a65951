// Package tracker ties the TLE store, the orbit propagator, the projector and
// the position cache together into the operations the API serves.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/star/skysat/internal/cache"
	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/metrics"
	"github.com/star/skysat/internal/orbit"
	"github.com/star/skysat/internal/tle"
)

var (
	// ErrNoDataset is returned while no TLE catalog has been loaded.
	ErrNoDataset = errors.New("no TLE dataset loaded")
	// ErrNotFound is returned for NORAD IDs absent from the catalog.
	ErrNotFound = errors.New("satellite not found")
)

// Tracker is safe for concurrent use.
type Tracker struct {
	store  *tle.Store
	cache  *cache.PositionCache
	prop   orbit.Propagator
	proj   geo.Projector
	logger *slog.Logger

	// workers > 1 spreads Sky over a goroutine pool.
	workers int

	mu           sync.RWMutex
	index        map[int]tle.Entry
	indexVersion uint64
}

// New creates a Tracker. cache may be nil to disable position caching.
func New(store *tle.Store, positions *cache.PositionCache, prop orbit.Propagator, proj geo.Projector, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		cache:  positions,
		prop:   prop,
		proj:   proj,
		logger: logger,
	}
}

// Project propagates el to at and projects the result. It does not touch
// the catalog or the cache.
func (t *Tracker) Project(el tle.OrbitalElements, at time.Time) geo.Position {
	start := time.Now()
	pos := t.proj.Project(t.prop.Propagate(el, at))
	metrics.ObservePropagation("project", time.Since(start))
	return pos
}

// Entry returns the catalog entry for noradID.
func (t *Tracker) Entry(noradID int) (tle.Entry, error) {
	index, err := t.currentIndex()
	if err != nil {
		return tle.Entry{}, err
	}
	e, ok := index[noradID]
	if !ok {
		return tle.Entry{}, fmt.Errorf("NORAD %d: %w", noradID, ErrNotFound)
	}
	return e, nil
}

// Entries returns the catalog in dataset order.
func (t *Tracker) Entries() ([]tle.Entry, error) {
	ds := t.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	return ds.Satellites, nil
}

// Position returns the position of noradID at at. With caching enabled the
// instant is rounded down to the cache step.
func (t *Tracker) Position(ctx context.Context, noradID int, at time.Time) (geo.Position, error) {
	if err := ctx.Err(); err != nil {
		return geo.Position{}, err
	}
	e, err := t.Entry(noradID)
	if err != nil {
		return geo.Position{}, err
	}

	compute := func(at time.Time) (geo.Position, error) {
		start := time.Now()
		pos := t.proj.Project(t.prop.Propagate(e.Elements, at))
		metrics.ObservePropagation("position", time.Since(start))
		return pos, nil
	}
	if t.cache == nil {
		return compute(at)
	}
	return t.cache.GetOrCompute(noradID, at, compute)
}

// currentIndex returns the NORAD ID index of the current dataset, rebuilding
// it when the store version moved.
func (t *Tracker) currentIndex() (map[int]tle.Entry, error) {
	version := t.store.Version()

	t.mu.RLock()
	if t.index != nil && t.indexVersion == version {
		index := t.index
		t.mu.RUnlock()
		return index, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another goroutine may have rebuilt it while we waited for the lock.
	if t.index != nil && t.indexVersion == version {
		return t.index, nil
	}

	ds := t.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	index := make(map[int]tle.Entry, len(ds.Satellites))
	for _, e := range ds.Satellites {
		index[e.NORADID] = e
	}
	t.index = index
	t.indexVersion = version

	t.logger.Info("satellite index rebuilt",
		"satellites", len(index),
		"source", ds.Source,
		"store_version", version,
	)
	return index, nil
}
