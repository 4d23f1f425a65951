package geo

import "fmt"

// LatitudePolicy turns a declination (degrees) into the reported latitude.
type LatitudePolicy func(decDeg float64) float64

// LongitudePolicy turns a longitude already normalized into [0, 360) into
// the reported longitude.
type LongitudePolicy func(lonDeg float64) float64

// FoldedLatitude reports the magnitude of the declination, dropping the
// hemisphere. Used by the "reference" projection.
func FoldedLatitude(decDeg float64) float64 {
	if decDeg < 0 {
		return -decDeg
	}
	return decDeg
}

// SignedLatitude reports the declination unchanged: north positive.
func SignedLatitude(decDeg float64) float64 {
	return decDeg
}

// FoldedLongitude mirrors longitudes above 180 to 360−x, giving a value in
// [0, 180] without an east/west sign. Used by the "reference" projection.
func FoldedLongitude(lonDeg float64) float64 {
	if lonDeg > 180 {
		return 360 - lonDeg
	}
	return lonDeg
}

// SignedLongitude maps longitudes above 180 to x−360, giving a value in
// (−180, 180] with east positive.
func SignedLongitude(lonDeg float64) float64 {
	if lonDeg > 180 {
		return lonDeg - 360
	}
	return lonDeg
}

// Projection names accepted by ProjectorByName.
const (
	ProjectionReference = "reference"
	ProjectionCorrected = "corrected"
)

// ProjectorByName returns the projector for a configuration name.
func ProjectorByName(name string) (Projector, error) {
	switch name {
	case "", ProjectionReference:
		return DefaultProjector(), nil
	case ProjectionCorrected:
		return CorrectedProjector(), nil
	default:
		return Projector{}, fmt.Errorf("unknown projection %q (want %q or %q)", name, ProjectionReference, ProjectionCorrected)
	}
}
