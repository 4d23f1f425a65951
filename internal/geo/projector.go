// Package geo projects propagated orbital states onto the Earth: sub-satellite
// point, altitude, orbital speed, observer distance and look angles.
package geo

import (
	"math"
	"time"

	"github.com/star/skysat/internal/orbit"
	"github.com/star/skysat/internal/transform"
)

// Equatorial holds geocentric equatorial coordinates in degrees.
type Equatorial struct {
	RA  float64 `json:"ra"`  // [0, 360)
	Dec float64 `json:"dec"` // [-90, 90]
}

// Position is a projected satellite position. Latitude and Longitude follow
// the projector's policies.
type Position struct {
	Equatorial
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude_km"`
	Speed     float64   `json:"speed_km_s"`
	Time      time.Time `json:"time"`
}

// Observer is a location on the ground. Altitude is only used for look
// angles; distances treat the observer as sitting on the sphere.
type Observer struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude_m"`
}

// Projector converts orbit.State values into Positions.
type Projector struct {
	Latitude  LatitudePolicy
	Longitude LongitudePolicy
}

// DefaultProjector is the "reference" projection: latitude and longitude
// are both folded.
func DefaultProjector() Projector {
	return Projector{Latitude: FoldedLatitude, Longitude: FoldedLongitude}
}

// CorrectedProjector reports signed geographic latitude and longitude.
func CorrectedProjector() Projector {
	return Projector{Latitude: SignedLatitude, Longitude: SignedLongitude}
}

// Project derives the sub-satellite point of s. Longitude is the right
// ascension minus Greenwich mean sidereal time at s.Time.
func (p Projector) Project(s orbit.State) Position {
	latPolicy, lonPolicy := p.Latitude, p.Longitude
	if latPolicy == nil {
		latPolicy = FoldedLatitude
	}
	if lonPolicy == nil {
		lonPolicy = FoldedLongitude
	}

	lon := transform.Rev(s.RA - transform.GMST(s.Time, 0))

	return Position{
		Equatorial: Equatorial{RA: s.RA, Dec: s.Dec},
		Latitude:   latPolicy(s.Dec),
		Longitude:  lonPolicy(lon),
		Altitude:   s.Radius - transform.EarthEquatorialRadiusKm,
		Speed:      math.Sqrt(transform.GravParamKm3S2 / s.Radius),
		Time:       s.Time,
	}
}
