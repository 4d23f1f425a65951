package transform

import "math"

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0 // meters
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// ObserverPosition is a ground site with its Earth-fixed position
// precomputed, so one value can be reused across many instants.
type ObserverPosition struct {
	LatRad, LonRad, AltM float64
	ECEF                 PositionECEF
}

// LookAngles is the direction and distance from an observer to a target.
type LookAngles struct {
	AzimuthDeg   float64 `json:"azimuth"`   // 0 = North, clockwise
	ElevationDeg float64 `json:"elevation"` // 0 = horizon, 90 = zenith
	RangeKm      float64 `json:"range_km"`
}

// GeodeticPoint is a WGS-84 latitude, longitude (degrees) and height (meters).
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// primeVerticalRadius is the ellipsoid's radius of curvature in the prime
// vertical at the given sine of latitude.
func primeVerticalRadius(sinLat float64) float64 {
	return wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
}

// NewObserverPosition places an observer at geodetic latitude and longitude
// (degrees) and height above the ellipsoid (meters).
func NewObserverPosition(latDeg, lonDeg, altM float64) ObserverPosition {
	lat, lon := latDeg*Deg2Rad, lonDeg*Deg2Rad
	sinLat, cosLat := math.Sincos(lat)
	n := primeVerticalRadius(sinLat)

	return ObserverPosition{
		LatRad: lat,
		LonRad: lon,
		AltM:   altM,
		ECEF: PositionECEF{
			X: (n + altM) * cosLat * math.Cos(lon),
			Y: (n + altM) * cosLat * math.Sin(lon),
			Z: (n*(1-wgs84E2) + altM) * sinLat,
		},
	}
}

// ECEFToGeodetic converts an Earth-fixed position (meters) to WGS-84
// geodetic coordinates with a fixed number of Bowring iterations, enough
// for sub-millimeter latitude in low Earth orbit.
func ECEFToGeodetic(pos PositionECEF) GeodeticPoint {
	p := math.Hypot(pos.X, pos.Y)
	lat := math.Atan2(pos.Z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		lat = math.Atan2(pos.Z+wgs84E2*primeVerticalRadius(math.Sin(lat))*math.Sin(lat), p)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := primeVerticalRadius(sinLat)
	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(pos.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * Rad2Deg,
		LonDeg: math.Atan2(pos.Y, pos.X) * Rad2Deg,
		AltM:   alt,
	}
}

// toSEZ rotates the Earth-fixed vector d into the observer's
// south-east-zenith frame.
func (o ObserverPosition) toSEZ(d PositionECEF) (south, east, zenith float64) {
	sinLat, cosLat := math.Sincos(o.LatRad)
	sinLon, cosLon := math.Sincos(o.LonRad)

	south = sinLat*cosLon*d.X + sinLat*sinLon*d.Y - cosLat*d.Z
	east = -sinLon*d.X + cosLon*d.Y
	zenith = cosLat*cosLon*d.X + cosLat*sinLon*d.Y + sinLat*d.Z
	return south, east, zenith
}

// ECEFToLookAngles returns azimuth, elevation and range from obs to a
// target at sat (Earth-fixed meters). A target at the observer is reported
// at the zenith with zero range.
func ECEFToLookAngles(obs ObserverPosition, sat PositionECEF) LookAngles {
	south, east, zenith := obs.toSEZ(PositionECEF{
		X: sat.X - obs.ECEF.X,
		Y: sat.Y - obs.ECEF.Y,
		Z: sat.Z - obs.ECEF.Z,
	})

	rng := math.Sqrt(south*south + east*east + zenith*zenith)
	if rng == 0 {
		return LookAngles{ElevationDeg: 90}
	}

	// North is -south.
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * Rad2Deg,
		ElevationDeg: math.Asin(zenith/rng) * Rad2Deg,
		RangeKm:      rng / 1000,
	}
}
