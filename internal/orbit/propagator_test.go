package orbit

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/star/skysat/internal/tle"
	"github.com/star/skysat/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	issLine1 = "1 25544U 98067A   24045.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"

	liveLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993"
	liveLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058"
)

func mustElements(t *testing.T, line1, line2 string) tle.OrbitalElements {
	t.Helper()
	el, err := tle.ParseElements(line1 + "\n" + line2)
	require.NoError(t, err)
	return el
}

// angularSeparation returns the great-circle angle in degrees between two
// RA/Dec directions.
func angularSeparation(ra1, dec1, ra2, dec2 float64) float64 {
	d1, d2 := dec1*transform.Deg2Rad, dec2*transform.Deg2Rad
	c := math.Sin(d1)*math.Sin(d2) + math.Cos(d1)*math.Cos(d2)*math.Cos((ra1-ra2)*transform.Deg2Rad)
	return math.Acos(math.Max(-1, math.Min(1, c))) * transform.Rad2Deg
}

func TestPropagateRegression(t *testing.T) {
	el := mustElements(t, issLine1, issLine2)
	s := DefaultPropagator().Propagate(el, time.Date(2024, 2, 14, 18, 0, 0, 0, time.UTC))

	assert.InDelta(t, 0.125, s.DeltaDays, 1e-9)
	assert.InDelta(t, 697.500470165625, s.MeanAnomaly, 1e-6)
	assert.InDelta(t, 697.4982773919385, s.EccentricAnomaly, 1e-6)
	assert.InDelta(t, 6794.834124640863, s.SemiMajorAxis, 1e-6)
	assert.InDelta(t, 6794.206371641451, s.Radius, 1e-6)
	assert.InDelta(t, 85.89465693105365, s.RA, 1e-6)
	assert.InDelta(t, -17.114704514152745, s.Dec, 1e-6)
	assert.InDelta(t, 464.8613421868772, s.Position[0], 1e-5)
	assert.InDelta(t, 6476.680871097047, s.Position[1], 1e-5)
	assert.InDelta(t, -1999.437182548901, s.Position[2], 1e-5)
}

func TestPropagateAtEpoch(t *testing.T) {
	// Three hours after the epoch the shifted clock sits exactly on it.
	el := mustElements(t, issLine1, issLine2)
	s := DefaultPropagator().Propagate(el, time.Date(2024, 2, 14, 15, 0, 0, 0, time.UTC))

	assert.Equal(t, 0.0, s.DeltaDays)
	assert.Equal(t, 0.0, s.MeanAnomaly)
	assert.Equal(t, 0.0, s.EccentricAnomaly)
	assert.InDelta(t, 6794.840231587989, s.SemiMajorAxis, 1e-6)
	assert.InDelta(t, 6794.160747564831, s.Radius, 1e-6)
	assert.InDelta(t, s.PerigeeRadius(el.Eccentricity), s.Radius, 1e-9)
	assert.InDelta(t, 100.0, s.RA, 1e-9)
	assert.InDelta(t, 0.0, s.Dec, 1e-9)
}

func TestPropagateLiveISS(t *testing.T) {
	el := mustElements(t, liveLine1, liveLine2)
	s := DefaultPropagator().Propagate(el, time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC))

	assert.InDelta(t, 197.94951928891845, s.RA, 1e-6)
	assert.InDelta(t, 5.503186059544705, s.Dec, 1e-6)
	assert.InDelta(t, 6796.371249031334, s.Radius, 1e-6)
}

func TestPropagateZoneIndependent(t *testing.T) {
	el := mustElements(t, issLine1, issLine2)
	utc := time.Date(2024, 2, 14, 18, 0, 0, 0, time.UTC)
	zoned := utc.In(time.FixedZone("UTC-5", -5*3600))

	p := DefaultPropagator()
	a, b := p.Propagate(el, utc), p.Propagate(el, zoned)
	assert.Equal(t, a.RA, b.RA)
	assert.Equal(t, a.Dec, b.Dec)
	assert.Equal(t, a.Radius, b.Radius)
}

func TestPropagateEpochShift(t *testing.T) {
	el := mustElements(t, issLine1, issLine2)
	at := time.Date(2024, 2, 14, 18, 0, 0, 0, time.UTC)

	shifted := DefaultPropagator().Propagate(el, at)
	unshifted := Propagator{Solver: FirstOrderEccentricAnomaly}.Propagate(el, at.Add(DefaultEpochShift))

	assert.Equal(t, shifted.DeltaDays, unshifted.DeltaDays)
	assert.Equal(t, shifted.RA, unshifted.RA)
	assert.Equal(t, shifted.Dec, unshifted.Dec)
}

func TestPropagateCircularOrbit(t *testing.T) {
	el := mustElements(t, issLine1, issLine2)
	el.Eccentricity = 0

	p := DefaultPropagator()
	for _, h := range []int{0, 1, 5, 13, 47} {
		at := time.Date(2024, 2, 14, 15, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour)
		s := p.Propagate(el, at)

		assert.Equal(t, s.MeanAnomaly, s.EccentricAnomaly, "E must equal M when e=0 (h=%d)", h)
		assert.InDelta(t, s.SemiMajorAxis, s.Radius, 1e-9, "h=%d", h)
		r := math.Sqrt(s.Position[0]*s.Position[0] + s.Position[1]*s.Position[1] + s.Position[2]*s.Position[2])
		assert.InDelta(t, s.SemiMajorAxis, r, 1e-8, "rotation must preserve length (h=%d)", h)
	}
}

func TestPropagateDeterministic(t *testing.T) {
	el := mustElements(t, liveLine1, liveLine2)
	at := time.Date(2025, 2, 15, 3, 17, 42, 500_000_000, time.UTC)
	p := DefaultPropagator()
	want := p.Propagate(el, at)

	var wg sync.WaitGroup
	results := make([]State, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Propagate(el, at)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, want, got, "goroutine %d", i)
	}
}

func TestPropagateRanges(t *testing.T) {
	el := mustElements(t, liveLine1, liveLine2)
	p := DefaultPropagator()
	start := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)

	for m := 0; m < 3*24*60; m += 11 {
		s := p.Propagate(el, start.Add(time.Duration(m)*time.Minute))
		require.GreaterOrEqual(t, s.RA, 0.0)
		require.Less(t, s.RA, 360.0)
		require.LessOrEqual(t, math.Abs(s.Dec), el.Inclination+0.01, "declination cannot exceed inclination")
		require.InDelta(t, 6796, s.Radius, 30)
	}
}

func TestPropagateNilSolver(t *testing.T) {
	el := mustElements(t, issLine1, issLine2)
	at := time.Date(2024, 2, 14, 18, 0, 0, 0, time.UTC)

	got := Propagator{EpochShift: DefaultEpochShift}.Propagate(el, at)
	want := DefaultPropagator().Propagate(el, at)
	assert.Equal(t, want, got)
}

func TestNewtonSolver(t *testing.T) {
	for _, e := range []float64{0, 0.0001, 0.1, 0.5, 0.9} {
		for _, m := range []float64{-400, -10, 0, 1, 45, 179, 181, 359, 697.5, 1e4} {
			ea := NewtonEccentricAnomaly(m, e)
			back := (ea*transform.Deg2Rad - e*math.Sin(ea*transform.Deg2Rad)) * transform.Rad2Deg
			assert.InDelta(t, m, back, 1e-8, "M=%v e=%v", m, e)
		}
	}

	// Near-circular orbits: the series and the exact solution agree closely.
	for _, m := range []float64{0, 30, 90, 200, 697.5} {
		assert.InDelta(t, NewtonEccentricAnomaly(m, 0.0003457), FirstOrderEccentricAnomaly(m, 0.0003457), 1e-6)
	}
}

func TestSolverByName(t *testing.T) {
	el := mustElements(t, liveLine1, liveLine2)
	at := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

	for _, name := range []string{"", SolverSeries} {
		solver, err := SolverByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, DefaultPropagator().Propagate(el, at), Propagator{EpochShift: DefaultEpochShift, Solver: solver}.Propagate(el, at))
	}

	newton, err := SolverByName(SolverNewton)
	require.NoError(t, err)
	assert.Equal(t, NewtonEccentricAnomaly(697.5, 0.5), newton(697.5, 0.5))

	exact := Propagator{EpochShift: DefaultEpochShift, Solver: newton}.Propagate(el, at)
	series := DefaultPropagator().Propagate(el, at)
	assert.InDelta(t, series.Radius, exact.Radius, 0.01)
	assert.Less(t, angularSeparation(series.RA, series.Dec, exact.RA, exact.Dec), 1e-3)

	_, err = SolverByName("rk4")
	assert.Error(t, err)
}

func TestFirstOrderSolverCircular(t *testing.T) {
	for _, m := range []float64{-720.25, 0, 33.3, 359.999, 12345.678} {
		assert.Equal(t, m, FirstOrderEccentricAnomaly(m, 0))
	}
}

func TestReferenceAgreesAtEpoch(t *testing.T) {
	el := mustElements(t, issLine1, issLine2)
	ref, err := NewReference(issLine1, issLine2, 25544)
	require.NoError(t, err)

	epoch := el.EpochTime()
	analytic := Propagator{Solver: FirstOrderEccentricAnomaly}.Propagate(el, epoch)
	sgp4, err := ref.Propagate(epoch)
	require.NoError(t, err)

	sep := angularSeparation(analytic.RA, analytic.Dec, sgp4.RA, sgp4.Dec)
	assert.Less(t, sep, 2.0, "analytic %.3f/%.3f, sgp4 %.3f/%.3f", analytic.RA, analytic.Dec, sgp4.RA, sgp4.Dec)
	assert.InDelta(t, sgp4.Radius, analytic.Radius, 30.0)
}

func TestReferenceInvalidTLE(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
	}{
		{"garbage", "invalid line 1", "invalid line 2"},
		{"swapped", issLine2, issLine1},
		{"short", issLine1[:60], issLine2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReference(tt.line1, tt.line2, 99999)
			assert.Error(t, err)
		})
	}
}
