package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/tle"
)

// observeJob is a unit of work for the sky worker pool.
type observeJob struct {
	entry tle.Entry
}

// WithWorkers sets the number of goroutines Sky fans out to. Values below 2
// keep the sequential loop.
func (t *Tracker) WithWorkers(n int) *Tracker {
	t.workers = n
	return t
}

// observeBatch observes every entry from obs at at on a fixed pool of
// workers. Results come back in completion order.
func (t *Tracker) observeBatch(ctx context.Context, entries []tle.Entry, at time.Time, obs geo.Observer) ([]Observation, error) {
	workers := t.workers
	if workers > len(entries) {
		workers = len(entries)
	}

	jobs := make(chan observeJob, workers*2)
	results := make(chan Observation, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case results <- t.observe(job.entry, at, obs):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for _, e := range entries {
			select {
			case jobs <- observeJob{entry: e}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]Observation, 0, len(entries))
	for o := range results {
		out = append(out, o)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
