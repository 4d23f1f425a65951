package geo

import (
	"github.com/star/skysat/internal/orbit"
	"github.com/star/skysat/internal/transform"
)

// LookAngles returns the azimuth, elevation and range from obs to the
// satellite described by s. The inertial position is rotated into the
// Earth-fixed frame by GMST at s.Time, so the result does not depend on
// projection policy.
func LookAngles(obs Observer, s orbit.State) transform.LookAngles {
	sat := transform.InertialToEarthFixed(s.Position, transform.GMST(s.Time, 0))
	o := transform.NewObserverPosition(obs.Latitude, obs.Longitude, obs.Altitude)
	return transform.ECEFToLookAngles(o, sat)
}
