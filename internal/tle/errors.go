package tle

import (
	"errors"
	"fmt"
)

// MalformedTLEError is returned when the element lines are missing, too
// short, or do not start with the "1"/"2" line markers.
type MalformedTLEError struct {
	Line   int // 1 or 2 for element lines, 0 for the block as a whole
	Reason string
}

func (e *MalformedTLEError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("malformed TLE: %s", e.Reason)
	}
	return fmt.Sprintf("malformed TLE line %d: %s", e.Line, e.Reason)
}

// FieldParseError is returned when a fixed-column field is not a valid number.
type FieldParseError struct {
	Field string // field name, e.g. "inclination"
	Raw   string // the raw column text
	Err   error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Raw, e.Err)
}

func (e *FieldParseError) Unwrap() error {
	return e.Err
}

// InvalidElementsError is returned when a decoded element is outside the
// physically valid range the propagator needs.
type InvalidElementsError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidElementsError) Error() string {
	return fmt.Sprintf("invalid orbital elements: %s = %g %s", e.Field, e.Value, e.Reason)
}

// ErrorKind classifies a parse error as "malformed", "field" or "elements"
// for metrics labels and API responses. Other errors are "unknown".
func ErrorKind(err error) string {
	var (
		malformed *MalformedTLEError
		field     *FieldParseError
		invalid   *InvalidElementsError
	)
	switch {
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &field):
		return "field"
	case errors.As(err, &invalid):
		return "elements"
	default:
		return "unknown"
	}
}
