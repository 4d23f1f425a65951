package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/skysat/internal/metrics"
)

// ErrEmptyCatalog is returned when a fetched body holds no usable entries.
var ErrEmptyCatalog = errors.New("fetched catalog holds no valid entries")

// Refresher downloads the catalog, swaps it into the store and snapshots
// it to the on-disk cache.
type Refresher struct {
	fetcher *Fetcher
	cache   *Cache
	store   *Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewRefresher wires a fetcher, an optional cache and a store together.
func NewRefresher(fetcher *Fetcher, cache *Cache, store *Store, logger *slog.Logger) *Refresher {
	return &Refresher{
		fetcher: fetcher,
		cache:   cache,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Refresh fetches and installs a new dataset. Concurrent calls are
// serialized on the store's fetch lock. The store keeps its previous
// dataset on any failure.
func (r *Refresher) Refresh(ctx context.Context) (*Dataset, error) {
	defer r.store.BeginRefresh()()

	start := r.now()
	body, err := r.fetcher.Fetch(ctx)
	if err != nil {
		metrics.IncTLEFetch("error")
		return nil, fmt.Errorf("fetch: %w", err)
	}

	entries, err := Parse(bytes.NewReader(body), r.logger)
	if err != nil {
		metrics.IncTLEFetch("error")
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(entries) == 0 {
		metrics.IncTLEFetch("empty")
		return nil, ErrEmptyCatalog
	}

	ds := NewDataset(r.fetcher.SourceURL(), r.now(), entries)
	previous := 0
	if prev := r.store.Swap(ds); prev != nil {
		previous = len(prev.Satellites)
	}
	metrics.IncTLEFetch("success")
	metrics.SetTLEDatasetCount(len(entries))
	metrics.SetTLEDatasetAge(0)

	if r.cache != nil {
		if err := r.cache.Write(body, ds.FetchedAt); err != nil {
			r.logger.Warn("failed to write TLE cache", "error", err)
		}
	}

	r.logger.Info("TLE dataset refreshed",
		"source", ds.Source,
		"count", len(entries),
		"previous_count", previous,
		"bytes", len(body),
		"duration_ms", r.now().Sub(start).Milliseconds(),
	)
	return ds, nil
}

// Run refreshes whenever the dataset is missing or older than maxAge,
// checking every interval, until ctx is cancelled. A failed refresh is
// logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context, maxAge, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	check := func() {
		age := r.store.AgeSeconds()
		if age >= 0 && time.Duration(age*float64(time.Second)) < maxAge {
			return
		}
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("TLE refresh failed", "error", err)
		}
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			return
		}
	}
}
