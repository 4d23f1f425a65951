package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the catalog currently served. Reads never block; writers
// that download a replacement serialize on BeginRefresh.
type Store struct {
	dataset atomic.Pointer[Dataset]
	version atomic.Uint64
	refresh sync.Mutex
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil before the first load.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Loaded reports whether any dataset has been installed.
func (s *Store) Loaded() bool {
	return s.dataset.Load() != nil
}

// Set installs ds.
func (s *Store) Set(ds *Dataset) {
	s.Swap(ds)
}

// Swap installs ds and returns the dataset it replaced, nil on first load.
func (s *Store) Swap(ds *Dataset) *Dataset {
	prev := s.dataset.Swap(ds)
	s.version.Add(1)
	return prev
}

// Version increases on every install. Derived state (element indexes,
// cached positions) compares it to detect a new catalog.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// AgeSeconds returns how long ago the current dataset was fetched, or -1
// before the first load.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// BeginRefresh blocks until no other refresh is running and returns the
// function that ends this one.
func (s *Store) BeginRefresh() (done func()) {
	s.refresh.Lock()
	return s.refresh.Unlock
}
