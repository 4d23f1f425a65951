package tle

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoCache is returned by LoadLatest when the cache directory holds no
// catalog snapshot.
var ErrNoCache = errors.New("no cached TLE catalog")

const (
	cachePrefix = "catalog_"
	cacheSuffix = ".tle"
)

// Cache keeps timestamped snapshots of fetched catalogs on disk so the
// service can warm-start without network access.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache that stores files in dir and keeps at most maxFiles.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

// Write saves a raw catalog snapshot fetched at ts and prunes old snapshots.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(c.dir, cachePrefix+strconv.FormatInt(ts.Unix(), 10)+cacheSuffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest reads the newest snapshot and the time it was fetched.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	snaps, err := c.snapshots()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(snaps) == 0 {
		return nil, time.Time{}, ErrNoCache
	}

	latest := snaps[len(snaps)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.fetchedAt, nil
}

// LoadDataset parses the newest snapshot into a Dataset labelled with source.
func (c *Cache) LoadDataset(source string, logger *slog.Logger) (*Dataset, error) {
	data, fetchedAt, err := c.LoadLatest()
	if err != nil {
		return nil, err
	}
	entries, err := Parse(bytes.NewReader(data), logger)
	if err != nil {
		return nil, fmt.Errorf("parsing cached catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("cached catalog holds no valid entries")
	}
	return NewDataset(source, fetchedAt, entries), nil
}

type snapshot struct {
	name      string
	fetchedAt time.Time
}

// snapshots lists cache files sorted oldest first.
func (c *Cache) snapshots() ([]snapshot, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var snaps []snapshot
	for _, e := range dirEntries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, cachePrefix) || !strings.HasSuffix(name, cacheSuffix) {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, cachePrefix), cacheSuffix), 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{name: name, fetchedAt: time.Unix(unix, 0).UTC()})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].fetchedAt.Before(snaps[j].fetchedAt)
	})
	return snaps, nil
}

func (c *Cache) prune() error {
	snaps, err := c.snapshots()
	if err != nil {
		return err
	}
	if len(snaps) <= c.maxFiles {
		return nil
	}

	for _, s := range snaps[:len(snaps)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, s.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", s.name, err)
		}
	}
	return nil
}
