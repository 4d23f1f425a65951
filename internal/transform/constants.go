package transform

import "math"

// Angle conversion factors.
const (
	Deg2Rad = math.Pi / 180.0
	Rad2Deg = 180.0 / math.Pi
)

// Physical constants of the simplified orbit model.
const (
	// EarthEquatorialRadiusKm is the reference equatorial radius used for
	// altitudes and the perigee perturbation term.
	EarthEquatorialRadiusKm = 6378.135

	// GravParamKm3S2 is Earth's standard gravitational parameter (km³/s²).
	GravParamKm3S2 = 398600.5

	// KeplerConstant relates orbital period in minutes to semi-major axis in
	// km: a = (KeplerConstant · minutes)^(2/3).
	KeplerConstant = 6028.9

	// ApsidalRateCoefficient is the J2 apsidal rotation rate in degrees/day
	// for an orbit of one Earth radius.
	ApsidalRateCoefficient = 4.97

	// NauticalMileKm converts arc minutes on the Earth's surface to km.
	NauticalMileKm = 1.852
)

// Time constants.
const (
	minutesPerDay = 1440.0
	secondsPerDay = 86400.0

	// dayNumberOffset places day number 0 at 1999-12-31 00:00 UT.
	dayNumberOffset = 730530

	// julianDayOffset completes the b+c+d Julian day decomposition.
	julianDayOffset = 1720994.5

	// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
	j2000 = 2451545.0

	daysPerJulianCentury = 36525.0
)
