// Package orbit propagates TLE orbital elements to an instant with a
// first-order Keplerian model and a secular apsidal perturbation, yielding
// geocentric equatorial coordinates.
package orbit

import (
	"math"
	"time"

	"github.com/star/skysat/internal/tle"
	"github.com/star/skysat/internal/transform"
)

// DefaultEpochShift is applied to the requested instant before the time
// since epoch is computed. The reference model this engine reproduces
// evaluates positions three hours behind the requested time.
const DefaultEpochShift = -3 * time.Hour

// Propagator holds the model settings. The zero value has no shift and no
// solver; use DefaultPropagator or set Solver explicitly.
type Propagator struct {
	EpochShift time.Duration
	Solver     AnomalySolver
}

// DefaultPropagator returns the reference configuration.
func DefaultPropagator() Propagator {
	return Propagator{
		EpochShift: DefaultEpochShift,
		Solver:     FirstOrderEccentricAnomaly,
	}
}

// Propagate computes the satellite state at t. It never fails: elements
// that did not pass Validate may produce NaN fields.
func (p Propagator) Propagate(el tle.OrbitalElements, t time.Time) State {
	solver := p.Solver
	if solver == nil {
		solver = FirstOrderEccentricAnomaly
	}

	now := transform.DayNumberOf(t.UTC().Add(p.EpochShift))
	dt := now - el.EpochDayNumber
	e := el.Eccentricity

	meanAnomaly := el.MeanAnomaly + 360*(el.MeanMotion*dt+0.5*el.MeanMotionDot*dt*dt)
	eccAnomaly := solver(meanAnomaly, e)

	// Kepler's third law with the mean motion decayed by ṅ.
	minutesPerRev := 1440 / (el.MeanMotion + el.MeanMotionDot*dt)
	a := math.Pow(transform.KeplerConstant*minutesPerRev, 2.0/3.0)

	eRad := eccAnomaly * transform.Deg2Rad
	x0 := a * (math.Cos(eRad) - e)
	y0 := a * math.Sqrt(1-e*e) * math.Sin(eRad)

	oneMinusE2 := 1 - e*e
	cosI := math.Cos(el.Inclination * transform.Deg2Rad)
	argPerigee := el.ArgPerigee + dt*transform.ApsidalRateCoefficient*
		math.Pow(transform.EarthEquatorialRadiusKm/a, 3.5)*
		(5*cosI*cosI-1)/(oneMinusE2*oneMinusE2)

	pos := rotate(x0, y0, el.Inclination, el.RAAN, argPerigee)

	return State{
		Time:             t,
		DeltaDays:        dt,
		MeanAnomaly:      meanAnomaly,
		EccentricAnomaly: eccAnomaly,
		SemiMajorAxis:    a,
		PerifocalX:       x0,
		PerifocalY:       y0,
		Radius:           math.Sqrt(x0*x0 + y0*y0),
		ArgPerigee:       argPerigee,
		Position:         pos,
		RA:               transform.Rev(math.Atan2(pos[1], pos[0]) * transform.Rad2Deg),
		Dec:              math.Atan2(pos[2], math.Sqrt(pos[0]*pos[0]+pos[1]*pos[1])) * transform.Rad2Deg,
	}
}

// rotate maps perifocal coordinates into the equatorial frame through the
// P and Q unit vectors of the orbit plane. Angles are in degrees.
func rotate(x0, y0, incl, raan, argPerigee float64) [3]float64 {
	sinW, cosW := math.Sincos(argPerigee * transform.Deg2Rad)
	sinO, cosO := math.Sincos(raan * transform.Deg2Rad)
	sinI, cosI := math.Sincos(incl * transform.Deg2Rad)

	px := cosW*cosO - sinW*sinO*cosI
	py := cosW*sinO + sinW*cosO*cosI
	pz := sinW * sinI

	qx := -sinW*cosO - cosW*sinO*cosI
	qy := -sinW*sinO + cosW*cosO*cosI
	qz := cosW * sinI

	return [3]float64{
		px*x0 + qx*y0,
		py*x0 + qy*y0,
		pz*x0 + qz*y0,
	}
}
