package passes

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/orbit"
	"github.com/star/skysat/internal/tle"
)

const issTLE = `ISS (ZARYA)
1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993
2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058`

var (
	nyc     = geo.Observer{Latitude: 40.7128, Longitude: -74.006, Altitude: 10}
	parrish = geo.Observer{Latitude: 27.5867, Longitude: -82.4251}
	feb14   = time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
)

func issRequest(t testing.TB, obs geo.Observer, hours float64) Request {
	t.Helper()
	el, err := tle.ParseElements(issTLE)
	if err != nil {
		t.Fatalf("ParseElements: %v", err)
	}
	return Request{
		Observer:     obs,
		Elements:     el,
		Start:        feb14,
		HorizonHours: hours,
		MaxPasses:    50,
	}
}

func predict(t *testing.T, req Request) []PassEvent {
	t.Helper()
	passes, err := Predict(context.Background(), orbit.DefaultPropagator(), req)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	return passes
}

func TestPredictPassShape(t *testing.T) {
	passes := predict(t, issRequest(t, nyc, 24))
	if len(passes) == 0 {
		t.Fatal("no ISS pass over NYC in 24h")
	}

	for i, p := range passes {
		if p.DurationSeconds < minPassDur.Seconds() {
			t.Errorf("pass %d: duration %.0fs below the minimum", i, p.DurationSeconds)
		}
		if p.MaxElevation <= 0 || p.MaxElevation > 90 {
			t.Errorf("pass %d: max elevation %.2f", i, p.MaxElevation)
		}
		if !p.StartTime.Before(p.EndTime) || p.MaxElevationTime.Before(p.StartTime) || p.MaxElevationTime.After(p.EndTime) {
			t.Errorf("pass %d: start %v max %v end %v out of order", i, p.StartTime, p.MaxElevationTime, p.EndTime)
		}
		for _, az := range []float64{p.StartAzimuth, p.AzimuthAtMax, p.EndAzimuth} {
			if az < 0 || az >= 360 {
				t.Errorf("pass %d: azimuth %.2f", i, az)
			}
		}
		if p.MinRangeKm < 400 || p.MinRangeKm > 3000 {
			t.Errorf("pass %d: min range %.0f km", i, p.MinRangeKm)
		}
		if i > 0 && !passes[i-1].EndTime.Before(p.StartTime) {
			t.Errorf("pass %d overlaps pass %d", i, i-1)
		}
		if len(p.GroundTrack) == 0 {
			t.Errorf("pass %d: empty ground track", i)
		}
		for _, gt := range p.GroundTrack {
			if gt.Time.Before(p.StartTime) || gt.Time.After(p.EndTime) {
				t.Errorf("pass %d: ground point at %v outside the pass", i, gt.Time)
			}
			if gt.Altitude < 100 || gt.Altitude > 1000 || gt.Elevation < 0 || gt.Elevation > 90 {
				t.Errorf("pass %d: ground point %+v", i, gt)
			}
		}
	}
}

func TestPredictOptions(t *testing.T) {
	all := predict(t, issRequest(t, nyc, 48))
	if len(all) < 2 {
		t.Fatalf("got %d passes in 48h, want several", len(all))
	}

	tests := []struct {
		name   string
		mutate func(*Request)
		check  func(t *testing.T, got []PassEvent)
	}{
		{
			name:   "max passes caps the result",
			mutate: func(r *Request) { r.MaxPasses = 1 },
			check: func(t *testing.T, got []PassEvent) {
				if len(got) != 1 || !got[0].StartTime.Equal(all[0].StartTime) {
					t.Errorf("got %d passes, want the first of %d", len(got), len(all))
				}
			},
		},
		{
			name:   "min elevation filters low passes",
			mutate: func(r *Request) { r.MinElevation = 45 },
			check: func(t *testing.T, got []PassEvent) {
				if len(got) >= len(all) {
					t.Errorf("%d passes above 45°, %d above 0°", len(got), len(all))
				}
				for _, p := range got {
					if p.MaxElevation < 45 {
						t.Errorf("pass peaking at %.1f° kept", p.MaxElevation)
					}
				}
			},
		},
		{
			name:   "zero horizon",
			mutate: func(r *Request) { r.HorizonHours = 0 },
			check: func(t *testing.T, got []PassEvent) {
				if len(got) != 0 {
					t.Errorf("got %d passes for an empty window", len(got))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := issRequest(t, nyc, 48)
			tt.mutate(&req)
			tt.check(t, predict(t, req))
		})
	}
}

func TestPredictCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	passes, err := Predict(ctx, orbit.DefaultPropagator(), issRequest(t, nyc, 24))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(passes) != 0 {
		t.Errorf("got %d passes after cancellation", len(passes))
	}
}

// visibilityRadiusKm is the largest surface distance at which a satellite
// at altKm can appear at elevation elDeg.
func visibilityRadiusKm(elDeg, altKm float64) float64 {
	const r = 6371.0
	el := elDeg * math.Pi / 180
	rho := math.Acos(math.Min(1, r*math.Cos(el)/(r+altKm))) - el
	return r * math.Max(0, rho)
}

// Each ground-track point must lie inside the circle from which the
// satellite could be seen at the reported elevation.
func TestGroundTrackWithinVisibilityCircle(t *testing.T) {
	req := issRequest(t, parrish, 24)
	req.Start = time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	passes := predict(t, req)
	if len(passes) == 0 {
		t.Fatal("no passes over Parrish FL in 24h")
	}

	for i, p := range passes {
		for j, gt := range p.GroundTrack {
			d := geo.SurfaceDistance(parrish.Latitude, parrish.Longitude, gt.Latitude, gt.Longitude)
			limit := visibilityRadiusKm(gt.Elevation, gt.Altitude) * 1.5
			if limit > 0 && d > limit {
				t.Errorf("pass %d point %d: %.0f km from observer, limit %.0f km (el %.1f°)", i, j, d, limit, gt.Elevation)
			}
		}
	}
}

func BenchmarkPredict24h(b *testing.B) {
	req := issRequest(b, nyc, 24)
	req.MinElevation = 10
	req.MaxPasses = 10
	prop := orbit.DefaultPropagator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Predict(context.Background(), prop, req)
	}
}
