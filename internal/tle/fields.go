package tle

import (
	"math"
	"strconv"
	"strings"
)

// fieldSpec describes one fixed-width numeric column of an element line.
// Start and end are 0-indexed, end exclusive.
type fieldSpec struct {
	name   string
	line   int
	start  int
	end    int
	prefix string // prepended before parsing, e.g. the implied "0." of eccentricity
}

var (
	fieldEpoch         = fieldSpec{name: "epoch", line: 1, start: 18, end: 32}
	fieldEpochYear     = fieldSpec{name: "epoch_year", line: 1, start: 18, end: 20, prefix: "20"}
	fieldEpochDay      = fieldSpec{name: "epoch_day", line: 1, start: 20, end: 32}
	fieldMeanMotionDot = fieldSpec{name: "mean_motion_dot", line: 1, start: 33, end: 43}

	fieldInclination  = fieldSpec{name: "inclination", line: 2, start: 8, end: 16}
	fieldRAAN         = fieldSpec{name: "raan", line: 2, start: 17, end: 25}
	fieldEccentricity = fieldSpec{name: "eccentricity", line: 2, start: 26, end: 33, prefix: "0."}
	fieldArgPerigee   = fieldSpec{name: "arg_perigee", line: 2, start: 34, end: 42}
	fieldMeanAnomaly  = fieldSpec{name: "mean_anomaly", line: 2, start: 43, end: 51}
	fieldMeanMotion   = fieldSpec{name: "mean_motion", line: 2, start: 52, end: 63}
	fieldNORADID      = fieldSpec{name: "norad_id", line: 1, start: 2, end: 7}
)

// Minimum line lengths needed to reach the last decoded column.
const (
	minLine1Len = 43
	minLine2Len = 63
	checksumCol = 68
)

func (f fieldSpec) raw(line1, line2 string) string {
	src := line1
	if f.line == 2 {
		src = line2
	}
	return strings.TrimSpace(src[f.start:f.end])
}

// decimalChars is every character a TLE decimal field may contain.
// ParseFloat also accepts "NaN", "Inf" and hex floats, which never appear
// in element sets.
const decimalChars = "0123456789.+-eE"

func (f fieldSpec) float(line1, line2 string) (float64, error) {
	raw := f.raw(line1, line2)
	if strings.Trim(raw, decimalChars) != "" {
		return 0, &FieldParseError{Field: f.name, Raw: raw, Err: strconv.ErrSyntax}
	}
	v, err := strconv.ParseFloat(f.prefix+raw, 64)
	if err != nil {
		return 0, &FieldParseError{Field: f.name, Raw: raw, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FieldParseError{Field: f.name, Raw: raw, Err: strconv.ErrRange}
	}
	return v, nil
}

func (f fieldSpec) integer(line1, line2 string) (int, error) {
	raw := f.raw(line1, line2)
	v, err := strconv.Atoi(f.prefix + raw)
	if err != nil {
		return 0, &FieldParseError{Field: f.name, Raw: raw, Err: err}
	}
	return v, nil
}

// checksum computes the modulo-10 checksum of an element line: digits count
// at face value, minus signs count as 1, everything else is ignored.
func checksum(line string) int {
	if len(line) > checksumCol {
		line = line[:checksumCol]
	}
	sum := 0
	for _, c := range line {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// checksumOK reports whether the line carries a checksum digit in column 69
// that matches its content. Lines without the digit are reported as valid.
func checksumOK(line string) bool {
	if len(line) <= checksumCol {
		return true
	}
	want := line[checksumCol]
	if want < '0' || want > '9' {
		return false
	}
	return checksum(line) == int(want-'0')
}
