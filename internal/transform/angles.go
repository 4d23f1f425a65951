package transform

import "math"

// Rev reduces an angle in degrees to [0, 360).
//
// Uses math.Mod so the cost does not grow with the magnitude of the input.
// 0 and exact multiples of 360 map to 0; negative zero maps to positive zero.
func Rev(deg float64) float64 {
	r := math.Mod(deg, 360.0)
	if r < 0 {
		r += 360.0
	}
	// A tiny negative remainder can round up to exactly 360 after the shift.
	if r >= 360.0 || r == 0 {
		return 0
	}
	return r
}
