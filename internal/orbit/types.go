package orbit

import "time"

// State is the result of propagating one element set to one instant. All
// intermediate quantities are kept so callers and diagnostics can inspect
// how the position was reached.
type State struct {
	Time             time.Time // requested instant, before any epoch shift
	DeltaDays        float64   // days since the element epoch
	MeanAnomaly      float64   // degrees, not normalized
	EccentricAnomaly float64   // degrees, not normalized
	SemiMajorAxis    float64   // km
	PerifocalX       float64   // km, towards perigee
	PerifocalY       float64   // km
	Radius           float64   // km, |(PerifocalX, PerifocalY)|
	ArgPerigee       float64   // degrees, after the secular perturbation
	Position         [3]float64
	RA               float64 // right ascension, degrees in [0, 360)
	Dec              float64 // declination, degrees in [-90, 90]
}

// PerigeeRadius returns the closest orbital distance in km.
func (s State) PerigeeRadius(eccentricity float64) float64 {
	return s.SemiMajorAxis * (1 - eccentricity)
}
