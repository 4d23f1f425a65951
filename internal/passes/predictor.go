// Package passes predicts when a satellite rises above, culminates over and
// sets below an observer's horizon, using the analytic orbit model.
package passes

import (
	"context"
	"time"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/orbit"
	"github.com/star/skysat/internal/tle"
	"github.com/star/skysat/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude_km"`
	Elevation float64   `json:"elevation"` // degrees above observer's horizon (0-90)
}

// PassEvent describes a single satellite pass over an observer location.
type PassEvent struct {
	StartTime        time.Time          `json:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max"`
	StartAzimuth     float64            `json:"start_azimuth"`
	EndAzimuth       float64            `json:"end_azimuth"`
	MinRangeKm       float64            `json:"min_range_km"`
	GroundTrack      []GroundTrackPoint `json:"ground_track"`
}

// Request holds the parameters for a pass prediction request.
type Request struct {
	Observer     geo.Observer
	Elements     tle.OrbitalElements
	Start        time.Time
	HorizonHours float64
	MinElevation float64 // degrees
	MaxPasses    int
}

const (
	coarseStepSec      = 30 // seconds between coarse scan steps
	fineStepSec        = 1  // seconds between fine scan steps
	groundTrackStepSec = 10 // seconds between ground track samples
	minPassDur         = 10 * time.Second
)

// Predict finds the passes of one satellite over req.Observer within the
// horizon. On cancellation it returns the passes found so far with the
// context error.
func Predict(ctx context.Context, prop orbit.Propagator, req Request) ([]PassEvent, error) {
	s := scanner{prop: prop, req: req}
	end := req.Start.Add(time.Duration(req.HorizonHours * float64(time.Hour)))
	passes := []PassEvent{}

	// Coarse scan: step through the time range looking for elevation > 0.
	t := req.Start
	for t.Before(end) && len(passes) < req.MaxPasses {
		if err := ctx.Err(); err != nil {
			return passes, err
		}

		if s.elevationAt(t) > 0 {
			// Found a candidate window; fine scan to find the full pass.
			pass, windowEnd := s.refinePass(ctx, t, end)
			if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDur {
				passes = append(passes, *pass)
			}
			// Jump past the end of this window.
			t = windowEnd.Add(coarseStepSec * time.Second)
		} else {
			t = t.Add(coarseStepSec * time.Second)
		}
	}

	return passes, ctx.Err()
}

type scanner struct {
	prop orbit.Propagator
	req  Request
}

// refinePass does a fine-grained scan around a coarse-detected above-horizon
// region. It backs up to find the actual rise, then scans forward until the
// satellite drops below the horizon again. Returns the pass (nil if it never
// reached MinElevation) and the time the visibility window ends.
func (s scanner) refinePass(ctx context.Context, coarseHit, windowEnd time.Time) (*PassEvent, time.Time) {
	searchStart := coarseHit.Add(-coarseStepSec * time.Second)
	if searchStart.Before(s.req.Start) {
		searchStart = s.req.Start
	}

	var (
		pass        PassEvent
		wasAbove    bool
		foundRise   bool
		visibleSeen bool
		lastAz      float64
	)

	t := searchStart
	for ; t.Before(windowEnd); t = t.Add(fineStepSec * time.Second) {
		if ctx.Err() != nil {
			break
		}

		st := s.prop.Propagate(s.req.Elements, t)
		la := geo.LookAngles(s.req.Observer, st)
		el := la.ElevationDeg
		lastAz = la.AzimuthDeg

		if el < 0 && visibleSeen {
			break
		}
		if el >= 0 {
			visibleSeen = true
		}

		above := el >= s.req.MinElevation
		if above && !wasAbove && !foundRise {
			foundRise = true
			pass.StartTime = t
			pass.StartAzimuth = la.AzimuthDeg
			pass.MaxElevation = el
			pass.MaxElevationTime = t
			pass.AzimuthAtMax = la.AzimuthDeg
			pass.MinRangeKm = la.RangeKm
		}

		if above && foundRise {
			if el > pass.MaxElevation {
				pass.MaxElevation = el
				pass.MaxElevationTime = t
				pass.AzimuthAtMax = la.AzimuthDeg
			}
			if la.RangeKm < pass.MinRangeKm {
				pass.MinRangeKm = la.RangeKm
			}
			if int(t.Sub(pass.StartTime).Seconds())%groundTrackStepSec == 0 {
				pass.GroundTrack = append(pass.GroundTrack, groundPoint(st, el))
			}
		}

		if !above && wasAbove && foundRise {
			pass.EndTime = t
			pass.EndAzimuth = la.AzimuthDeg
			break
		}

		wasAbove = above
	}

	if !foundRise {
		return nil, t
	}
	// Still above at the end of the horizon: close the pass there.
	if pass.EndTime.IsZero() {
		pass.EndTime = t
		pass.EndAzimuth = lastAz
	}
	pass.DurationSeconds = pass.EndTime.Sub(pass.StartTime).Seconds()
	return &pass, t
}

func (s scanner) elevationAt(t time.Time) float64 {
	return geo.LookAngles(s.req.Observer, s.prop.Propagate(s.req.Elements, t)).ElevationDeg
}

// groundPoint converts the state to a WGS-84 sub-satellite point.
func groundPoint(st orbit.State, el float64) GroundTrackPoint {
	ecef := transform.InertialToEarthFixed(st.Position, transform.GMST(st.Time, 0))
	g := transform.ECEFToGeodetic(ecef)
	return GroundTrackPoint{
		Time:      st.Time,
		Latitude:  g.LatDeg,
		Longitude: g.LonDeg,
		Altitude:  g.AltM / 1000,
		Elevation: el,
	}
}
