package cache

import (
	"context"
	"time"
)

// Start runs the maintenance loop until ctx is cancelled: expired entries
// are evicted and the cache is cleared when the TLE dataset changes.
func (c *PositionCache) Start(ctx context.Context) {
	if !c.Enabled() {
		return
	}

	interval := c.config.Buffer / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache maintenance stopped")
			return
		case now := <-ticker.C:
			c.tick(now)
		}
	}
}

func (c *PositionCache) tick(now time.Time) {
	if c.datasetChanged() {
		c.invalidate()
		return
	}
	c.evictExpired(now)
}

// datasetChanged reports whether the store has been updated since the
// entries were built.
func (c *PositionCache) datasetChanged() bool {
	return c.store.Version() != c.currentVersion.Load()
}

// invalidate drops all entries computed from the previous dataset. Readers
// never see them anyway (Get checks the version), this only frees memory.
func (c *PositionCache) invalidate() {
	version := c.store.Version()
	removed := c.Stats().Entries
	c.Reset()
	c.currentVersion.Store(version)

	c.logger.Info("TLE dataset changed, position cache cleared",
		"entries_removed", removed,
		"store_version", version,
	)
}
