// Package transform holds the time system and frame conversions shared by the
// propagator and the projector: day numbers, Julian dates, sidereal time,
// angle normalization, and the rotation from the inertial equatorial frame to
// Earth-fixed coordinates used for topocentric look angles.
//
// The inertial → Earth-fixed rotation uses GMST only. Polar motion, nutation
// and the equation of the equinoxes are ignored, which is well inside the
// accuracy of the simplified orbit model.
package transform

import "math"

// PositionECEF represents a position in the Earth-fixed frame (meters).
type PositionECEF struct {
	X, Y, Z float64
}

// InertialToEarthFixed rotates an equatorial inertial position (km) into the
// Earth-fixed frame at the given GMST (degrees). Output is in meters.
//
//	r_ECEF = R3(θ) · r_inertial
func InertialToEarthFixed(pos [3]float64, gmstDeg float64) PositionECEF {
	theta := gmstDeg * Deg2Rad
	cosG := math.Cos(theta)
	sinG := math.Sin(theta)

	x := pos[0]*cosG + pos[1]*sinG
	y := -pos[0]*sinG + pos[1]*cosG
	z := pos[2]

	return PositionECEF{
		X: x * 1000.0,
		Y: y * 1000.0,
		Z: z * 1000.0,
	}
}

// ValidateECEF checks that an ECEF position is physically reasonable for an
// Earth-orbiting satellite. Returns true if valid.
// Expected: magnitude between Earth radius (~6371km) and ~50000km (high orbit).
func ValidateECEF(pos PositionECEF) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)

	const minRadius = 6200.0 * 1000.0
	const maxRadius = 50000.0 * 1000.0

	return mag >= minRadius && mag <= maxRadius
}
