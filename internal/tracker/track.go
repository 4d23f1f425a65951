package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/metrics"
)

// Ground-track defaults: one sample per hour across a day.
const (
	DefaultTrackSamples = 24
	DefaultTrackStep    = time.Hour
	MaxTrackSamples     = 1440
)

// Track returns count positions of noradID starting at start, step apart.
// Zero count or step select the defaults.
func (t *Tracker) Track(ctx context.Context, noradID int, start time.Time, count int, step time.Duration) ([]geo.Position, error) {
	if count == 0 {
		count = DefaultTrackSamples
	}
	if step == 0 {
		step = DefaultTrackStep
	}
	if count < 0 || count > MaxTrackSamples {
		return nil, fmt.Errorf("sample count %d out of range [1, %d]", count, MaxTrackSamples)
	}
	if step < 0 {
		return nil, fmt.Errorf("negative step %v", step)
	}

	e, err := t.Entry(noradID)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	track := make([]geo.Position, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		at := start.Add(time.Duration(i) * step)
		track = append(track, t.proj.Project(t.prop.Propagate(e.Elements, at)))
	}
	metrics.ObservePropagation("track", time.Since(began)/time.Duration(count))

	return track, nil
}
