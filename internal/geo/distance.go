package geo

import (
	"math"

	"github.com/soniakeys/unit"

	"github.com/star/skysat/internal/transform"
)

// SurfaceDistance returns the great-circle distance in km between two points
// given in degrees, using the spherical law of cosines on a sphere where one
// arc minute is one nautical mile.
func SurfaceDistance(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	phi1 := unit.AngleFromDeg(lat1)
	phi2 := unit.AngleFromDeg(lat2)
	dLon := unit.AngleFromDeg(lon1 - lon2)

	c := phi1.Sin()*phi2.Sin() + phi1.Cos()*phi2.Cos()*dLon.Cos()
	c = math.Max(-1, math.Min(1, c))

	return unit.Angle(math.Acos(c)).Deg() * 60 * transform.NauticalMileKm
}

// Distance returns the straight-line approximation of the distance in km
// from obs to the satellite: the surface distance to the sub-point combined
// with the altitude.
func Distance(obs Observer, pos Position) float64 {
	d := SurfaceDistance(obs.Latitude, obs.Longitude, pos.Latitude, pos.Longitude)
	return math.Sqrt(d*d + pos.Altitude*pos.Altitude)
}
