package orbit

import (
	"fmt"
	"math"

	"github.com/star/skysat/internal/transform"
)

// AnomalySolver maps a mean anomaly (degrees) and eccentricity to an
// eccentric anomaly (degrees).
type AnomalySolver func(meanAnomalyDeg, eccentricity float64) float64

// FirstOrderEccentricAnomaly is the truncated series
//
//	E = M + e·sin M + ½e²·sin 2M
//
// It is accurate for the near-circular orbits found in TLE catalogs and
// returns exactly M when e is zero.
func FirstOrderEccentricAnomaly(meanAnomalyDeg, e float64) float64 {
	m := meanAnomalyDeg * transform.Deg2Rad
	return meanAnomalyDeg + transform.Rad2Deg*(e*math.Sin(m)+0.5*e*e*math.Sin(2*m))
}

// NewtonEccentricAnomaly solves Kepler's equation M = E − e·sin E by Newton
// iteration to 1e-12 rad. It is slower than the series but stays accurate
// at high eccentricity.
func NewtonEccentricAnomaly(meanAnomalyDeg, e float64) float64 {
	m := meanAnomalyDeg * transform.Deg2Rad
	turns := math.Floor(m / (2 * math.Pi))
	m -= turns * 2 * math.Pi

	ea := m
	if e > 0.8 {
		ea = math.Pi
	}
	for i := 0; i < 50; i++ {
		delta := (ea - e*math.Sin(ea) - m) / (1 - e*math.Cos(ea))
		ea -= delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}
	return (ea + turns*2*math.Pi) * transform.Rad2Deg
}

// Solver names accepted by SolverByName.
const (
	SolverSeries = "series"
	SolverNewton = "newton"
)

// SolverByName returns the anomaly solver for a configuration name.
func SolverByName(name string) (AnomalySolver, error) {
	switch name {
	case "", SolverSeries:
		return FirstOrderEccentricAnomaly, nil
	case SolverNewton:
		return NewtonEccentricAnomaly, nil
	default:
		return nil, fmt.Errorf("unknown anomaly solver %q (want %q or %q)", name, SolverSeries, SolverNewton)
	}
}
