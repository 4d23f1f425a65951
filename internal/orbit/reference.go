package orbit

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/star/skysat/internal/transform"
)

// Reference wraps the go-satellite SGP4 implementation for a single
// satellite. It is not the primary model; it exists to measure how far the
// analytic propagator drifts from a full perturbation theory.
//
// go-satellite hides SGP4 error codes from Propagate, so failures are
// detected from NaN/Inf output and unreasonable radii.
type Reference struct {
	sat     satellite.Satellite
	noradID int
}

// ReferenceState is an SGP4 result in the TEME frame.
type ReferenceState struct {
	Position [3]float64 // km
	Velocity [3]float64 // km/s
	Radius   float64    // km
	RA       float64    // degrees in [0, 360)
	Dec      float64    // degrees
}

// NewReference creates an SGP4 propagator from TLE lines.
//
// The lines are pre-validated because go-satellite calls log.Fatal on
// malformed input.
func NewReference(line1, line2 string, noradID int) (*Reference, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", noradID, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &Reference{sat: sat, noradID: noradID}, nil
}

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// Propagate computes the SGP4 state at t (whole seconds, UTC).
func (r *Reference) Propagate(t time.Time) (ReferenceState, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(r.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	for _, v := range []float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ReferenceState{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", r.noradID)
		}
	}

	radius := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if radius < 6200.0 || radius > 50000.0 {
		return ReferenceState{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", r.noradID, radius)
	}

	return ReferenceState{
		Position: [3]float64{pos.X, pos.Y, pos.Z},
		Velocity: [3]float64{vel.X, vel.Y, vel.Z},
		Radius:   radius,
		RA:       transform.Rev(math.Atan2(pos.Y, pos.X) * transform.Rad2Deg),
		Dec:      math.Atan2(pos.Z, math.Hypot(pos.X, pos.Y)) * transform.Rad2Deg,
	}, nil
}
