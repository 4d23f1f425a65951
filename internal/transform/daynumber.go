package transform

import "time"

// DayNumber returns a continuous day count where day 0 is 1999-12-31 00:00 UT
// (so 2000-01-01 00:00 is day 1). The time of day is added linearly.
//
// The integer part uses the Gregorian day-number formula that is exact from
// March 1900 through February 2100.
func DayNumber(day, month, year, hour, minute int, second float64) float64 {
	d := 367*year -
		floorDiv(7*(year+floorDiv(month+9, 12)), 4) +
		floorDiv(275*month, 9) +
		day - dayNumberOffset

	return float64(d) +
		float64(hour)/24.0 +
		float64(minute)/minutesPerDay +
		second/secondsPerDay
}

// DayNumberOf returns the day number of t using t's own calendar components.
// Callers convert to UTC first when they need a UT-based day count.
func DayNumberOf(t time.Time) float64 {
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	return DayNumber(t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute(), sec)
}

// EpochDayNumber converts a TLE epoch (year, fractional day-of-year where
// day 1.0 is Jan 1 00:00) onto the DayNumber axis.
func EpochDayNumber(epochYear int, epochDay float64) float64 {
	return DayNumber(1, 1, epochYear, 0, 0, 0) + epochDay - 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
