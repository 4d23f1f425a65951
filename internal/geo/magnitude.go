package geo

import "math"

// EstimateMagnitude estimates the visual magnitude of a bright LEO object at
// rangeKm: −1.3 at 1000 km, dimming with the inverse square of distance.
// Ranges under 1 km are treated as 1 km. The result is rounded to 0.1.
func EstimateMagnitude(rangeKm float64) float64 {
	if rangeKm < 1 {
		rangeKm = 1
	}
	// Base 10 log: five magnitudes per factor of ten in range.
	mag := -1.3 + 5*math.Log10(rangeKm/1000)
	return math.Round(mag*10) / 10
}
