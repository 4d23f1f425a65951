package transform

import (
	"math"
	"time"
)

// JulianDate converts a time.Time (UTC) to Julian Date.
//
// Jan/Feb are treated as months 13/14 of the previous year, then
// JD = b + c + d + day + 1720994.5 with a = ⌊y/100⌋, b = 2 − a + ⌊a/4⌋,
// c = ⌊365.25·y⌋ and d = ⌊30.6001·(m+1)⌋.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9
	day := float64(t.Day()) + (float64(t.Hour())+float64(t.Minute())/60.0+s/3600.0)/24.0

	if m <= 2 {
		y -= 1
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)
	c := math.Floor(365.25 * y)
	d := math.Floor(30.6001 * (m + 1))

	return b + c + d + day + julianDayOffset
}

// GMST returns the Greenwich Mean Sidereal Time in degrees for t, shifted by
// longitudeDeg (east positive) and normalized to [0, 360). Passing a longitude
// of 0 gives Greenwich; an observer's longitude gives local mean sidereal time.
//
// Meeus eq. 12.4:
//
//	θ0 = 280.46061837 + 360.98564736629·(JD − 2451545) + 0.000387933·T² − T³/38710000
func GMST(t time.Time, longitudeDeg float64) float64 {
	jd := JulianDate(t)
	d := jd - j2000
	tc := d / daysPerJulianCentury

	theta := 280.46061837 +
		360.98564736629*d +
		0.000387933*tc*tc -
		tc*tc*tc/38710000.0

	return Rev(theta + longitudeDeg)
}
