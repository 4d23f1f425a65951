package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/tle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testStore() *tle.Store {
	store := tle.NewStore()
	store.Set(tle.NewDataset("test", time.Now(), []tle.Entry{{NORADID: 25544, Name: "ISS"}}))
	return store
}

func testConfig() Config {
	return Config{
		Step:   5 * time.Second,
		Buffer: 10 * time.Second,
	}
}

func positionAt(t time.Time) geo.Position {
	return geo.Position{Latitude: 12, Longitude: 34, Altitude: 420, Time: t}
}

// TestPositionCache tests basic cache operations: put, get, stats.
func TestPositionCache(t *testing.T) {
	c := NewPositionCache(testConfig(), testStore(), testLogger())

	target := time.Date(2026, 2, 6, 12, 0, 5, 0, time.UTC)
	c.Put(25544, positionAt(target))

	got, ok := c.Get(25544, target.Add(3*time.Second))
	if !ok {
		t.Fatal("expected cache hit within the same step")
	}
	if !got.Time.Equal(target) {
		t.Errorf("time mismatch: got %v, want %v", got.Time, target)
	}

	if _, ok := c.Get(44713, target); ok {
		t.Error("expected miss for another satellite")
	}
	if _, ok := c.Get(25544, target.Add(5*time.Second)); ok {
		t.Error("expected miss for the next step")
	}

	stats := c.Stats()
	if stats.Entries != 1 || stats.Satellites != 1 {
		t.Errorf("entries/satellites: got %d/%d, want 1/1", stats.Entries, stats.Satellites)
	}
	if stats.Hits != 1 || stats.Misses != 2 {
		t.Errorf("hits/misses: got %d/%d, want 1/2", stats.Hits, stats.Misses)
	}
	if !stats.OldestTimestamp.Equal(target) || !stats.NewestTimestamp.Equal(target) {
		t.Errorf("timestamps: %v..%v", stats.OldestTimestamp, stats.NewestTimestamp)
	}
	if stats.SizeBytes <= 0 || stats.SizeBytes > 1000 {
		t.Errorf("size estimate for one entry: %d bytes", stats.SizeBytes)
	}
}

// TestRoundToStep verifies timestamp rounding.
func TestRoundToStep(t *testing.T) {
	c := NewPositionCache(testConfig(), testStore(), testLogger())

	tests := []struct {
		input    time.Time
		expected time.Time
	}{
		{
			input:    time.Date(2026, 2, 6, 12, 0, 3, 0, time.UTC),
			expected: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			input:    time.Date(2026, 2, 6, 12, 0, 7, 0, time.UTC),
			expected: time.Date(2026, 2, 6, 12, 0, 5, 0, time.UTC),
		},
		{
			input:    time.Date(2026, 2, 6, 12, 0, 10, 0, time.UTC),
			expected: time.Date(2026, 2, 6, 12, 0, 10, 0, time.UTC),
		},
		{
			input:    time.Date(2026, 2, 6, 15, 0, 7, 0, time.FixedZone("UTC+3", 3*3600)),
			expected: time.Date(2026, 2, 6, 12, 0, 5, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		got := c.RoundToStep(tt.input)
		if !got.Equal(tt.expected) || got.Location() != time.UTC {
			t.Errorf("RoundToStep(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestGetOrCompute(t *testing.T) {
	c := NewPositionCache(testConfig(), testStore(), testLogger())

	calls := 0
	compute := func(at time.Time) (geo.Position, error) {
		calls++
		return positionAt(at), nil
	}

	requested := time.Date(2026, 2, 6, 12, 0, 7, 0, time.UTC)
	for i := 0; i < 3; i++ {
		pos, err := c.GetOrCompute(25544, requested, compute)
		if err != nil {
			t.Fatal(err)
		}
		if want := time.Date(2026, 2, 6, 12, 0, 5, 0, time.UTC); !pos.Time.Equal(want) {
			t.Errorf("position time = %v, want step-aligned %v", pos.Time, want)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	_, err := c.GetOrCompute(1, requested, func(time.Time) (geo.Position, error) {
		return geo.Position{}, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, ok := c.Get(1, requested); ok {
		t.Error("failed computations must not be cached")
	}
}

func TestDisabledCache(t *testing.T) {
	c := NewPositionCache(Config{}, testStore(), testLogger())

	requested := time.Date(2026, 2, 6, 12, 0, 7, 123, time.UTC)
	calls := 0
	for i := 0; i < 2; i++ {
		pos, err := c.GetOrCompute(25544, requested, func(at time.Time) (geo.Position, error) {
			calls++
			return positionAt(at), nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if !pos.Time.Equal(requested) {
			t.Errorf("disabled cache must not round: got %v", pos.Time)
		}
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}
	if c.Stats().Entries != 0 {
		t.Error("disabled cache stored entries")
	}
}

// TestEvictExpired verifies that expired entries are removed.
func TestEvictExpired(t *testing.T) {
	c := NewPositionCache(testConfig(), testStore(), testLogger())

	now := time.Now().UTC().Truncate(5 * time.Second)
	c.Put(25544, positionAt(now.Add(-2*time.Minute)))
	c.Put(25544, positionAt(now.Add(-5*time.Second)))
	c.Put(25544, positionAt(now.Add(time.Minute)))

	if removed := c.evictExpired(now); removed != 1 {
		t.Errorf("expected 1 eviction, got %d", removed)
	}
	if _, ok := c.Get(25544, now.Add(-2*time.Minute)); ok {
		t.Error("expected old entry to be evicted")
	}
	if _, ok := c.Get(25544, now.Add(-5*time.Second)); !ok {
		t.Error("expected entry inside the buffer to remain")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("evictions = %d, want 1", c.Stats().Evictions)
	}
}

// TestEvictFutureEntries verifies that entries for instants far ahead of
// now expire once they were computed longer than the buffer ago.
func TestEvictFutureEntries(t *testing.T) {
	c := NewPositionCache(testConfig(), testStore(), testLogger())

	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	compute := func(at time.Time) (geo.Position, error) {
		return positionAt(at), nil
	}
	for i := 0; i < 500; i++ {
		if _, err := c.GetOrCompute(25544, base.Add(time.Duration(i)*time.Hour), compute); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.Stats().Entries; got != 500 {
		t.Fatalf("entries = %d, want 500", got)
	}

	if removed := c.evictExpired(time.Now()); removed != 0 {
		t.Errorf("fresh entries evicted: %d", removed)
	}
	if removed := c.evictExpired(time.Now().Add(time.Minute)); removed != 500 {
		t.Errorf("expected 500 evictions, got %d", removed)
	}
	if got := c.Stats().Entries; got != 0 {
		t.Errorf("entries after eviction = %d", got)
	}
}

// TestDatasetSwapDuringCompute verifies a position computed from elements
// that were replaced mid-computation is not served as current.
func TestDatasetSwapDuringCompute(t *testing.T) {
	store := testStore()
	c := NewPositionCache(testConfig(), store, testLogger())
	at := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	pos, err := c.GetOrCompute(25544, at, func(at time.Time) (geo.Position, error) {
		store.Set(tle.NewDataset("updated", time.Now(), []tle.Entry{{NORADID: 25544}}))
		return geo.Position{Altitude: 111, Time: at}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if pos.Altitude != 111 {
		t.Errorf("altitude = %v, want the computed 111", pos.Altitude)
	}

	if got, ok := c.Get(25544, at); ok {
		t.Errorf("position from the replaced dataset served: %+v", got)
	}

	pos, err = c.GetOrCompute(25544, at, func(at time.Time) (geo.Position, error) {
		return geo.Position{Altitude: 222, Time: at}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if pos.Altitude != 222 {
		t.Errorf("altitude = %v, want recomputed 222", pos.Altitude)
	}
	if got, ok := c.Get(25544, at); !ok || got.Altitude != 222 {
		t.Errorf("Get after recompute = %+v, %v", got, ok)
	}
}

// TestDatasetChange verifies entries from a replaced dataset are never served
// and are dropped by the maintenance tick.
func TestDatasetChange(t *testing.T) {
	store := testStore()
	c := NewPositionCache(testConfig(), store, testLogger())

	now := time.Now()
	c.Put(25544, positionAt(now))
	if _, ok := c.Get(25544, now); !ok {
		t.Fatal("expected hit before dataset change")
	}

	store.Set(tle.NewDataset("updated", time.Now(), []tle.Entry{{NORADID: 25544}}))

	if _, ok := c.Get(25544, now); ok {
		t.Error("stale entry served after dataset change")
	}
	if !c.datasetChanged() {
		t.Fatal("expected datasetChanged() after store update")
	}

	c.tick(now)
	if c.Stats().Entries != 0 {
		t.Errorf("entries after invalidation: %d", c.Stats().Entries)
	}
	if c.datasetChanged() {
		t.Error("expected datasetChanged() to be false after invalidation")
	}

	c.Put(25544, positionAt(now))
	if _, ok := c.Get(25544, now); !ok {
		t.Error("expected hit for entry computed from the new dataset")
	}
}

func TestReset(t *testing.T) {
	c := NewPositionCache(testConfig(), testStore(), testLogger())
	base := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		c.Put(i, positionAt(base))
	}
	c.Reset()
	if s := c.Stats(); s.Entries != 0 || s.Evictions != 4 || !s.OldestTimestamp.IsZero() {
		t.Errorf("after Reset: %+v", s)
	}
}

// TestStartStops verifies the maintenance loop exits on cancellation.
func TestStartStops(t *testing.T) {
	c := NewPositionCache(testConfig(), testStore(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

// TestConcurrentAccess verifies cache is safe for concurrent reads and writes.
func TestConcurrentAccess(t *testing.T) {
	store := testStore()
	c := NewPositionCache(testConfig(), store, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				now := time.Now()
				_, _ = c.GetOrCompute(id, now, func(at time.Time) (geo.Position, error) {
					return positionAt(at), nil
				})
				c.Stats()
				if j%25 == 0 {
					c.tick(now)
				}
			}
		}(i)
	}
	wg.Wait()
}
