package tracker

import (
	"context"
	"sort"
	"time"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/metrics"
	"github.com/star/skysat/internal/passes"
	"github.com/star/skysat/internal/tle"
)

// Observation is a satellite seen from a ground observer.
type Observation struct {
	NORADID      int          `json:"norad_id"`
	Name         string       `json:"name"`
	Position     geo.Position `json:"position"`
	SurfaceKm    float64      `json:"surface_distance_km"`
	DistanceKm   float64      `json:"distance_km"`
	Magnitude    float64      `json:"magnitude"`
	ElevationDeg float64      `json:"elevation"`
	AzimuthDeg   float64      `json:"azimuth"`
	SlantRangeKm float64      `json:"slant_range_km"`
}

// Distance returns the distance from obs to noradID at at, with a
// brightness estimate and look angles.
func (t *Tracker) Distance(ctx context.Context, noradID int, at time.Time, obs geo.Observer) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}
	e, err := t.Entry(noradID)
	if err != nil {
		return Observation{}, err
	}
	return t.observe(e, at, obs), nil
}

// Sky returns every catalog satellite at or above minElevation as seen from
// obs, nearest first.
func (t *Tracker) Sky(ctx context.Context, obs geo.Observer, at time.Time, minElevation float64) ([]Observation, error) {
	entries, err := t.Entries()
	if err != nil {
		return nil, err
	}

	began := time.Now()
	var all []Observation
	if t.workers > 1 && len(entries) > 1 {
		all, err = t.observeBatch(ctx, entries, at, obs)
		if err != nil {
			return nil, err
		}
	} else {
		all = make([]Observation, 0, len(entries))
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			all = append(all, t.observe(e, at, obs))
		}
	}
	if len(entries) > 0 {
		metrics.ObservePropagation("sky", time.Since(began)/time.Duration(len(entries)))
	}

	out := []Observation{}
	for _, o := range all {
		if o.ElevationDeg >= minElevation {
			out = append(out, o)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].NORADID < out[j].NORADID
	})
	return out, nil
}

func (t *Tracker) observe(e tle.Entry, at time.Time, obs geo.Observer) Observation {
	st := t.prop.Propagate(e.Elements, at)
	pos := t.proj.Project(st)
	la := geo.LookAngles(obs, st)
	dist := geo.Distance(obs, pos)

	return Observation{
		NORADID:      e.NORADID,
		Name:         e.Name,
		Position:     pos,
		SurfaceKm:    geo.SurfaceDistance(obs.Latitude, obs.Longitude, pos.Latitude, pos.Longitude),
		DistanceKm:   dist,
		Magnitude:    geo.EstimateMagnitude(dist),
		ElevationDeg: la.ElevationDeg,
		AzimuthDeg:   la.AzimuthDeg,
		SlantRangeKm: la.RangeKm,
	}
}

// PassQuery selects the passes to predict for one satellite.
type PassQuery struct {
	Observer     geo.Observer
	Start        time.Time
	HorizonHours float64
	MinElevation float64
	MaxPasses    int
}

// Passes predicts the passes of noradID over q.Observer.
func (t *Tracker) Passes(ctx context.Context, noradID int, q PassQuery) ([]passes.PassEvent, error) {
	e, err := t.Entry(noradID)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	result, err := passes.Predict(ctx, t.prop, passes.Request{
		Observer:     q.Observer,
		Elements:     e.Elements,
		Start:        q.Start,
		HorizonHours: q.HorizonHours,
		MinElevation: q.MinElevation,
		MaxPasses:    q.MaxPasses,
	})
	t.logger.Debug("pass prediction",
		"norad_id", noradID,
		"passes", len(result),
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return result, err
}
