package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/star/skysat/internal/metrics"
)

// ParseElements decodes a single 2- or 3-line TLE block. Blank lines and
// trailing whitespace are ignored; a leading name line is skipped.
func ParseElements(text string) (OrbitalElements, error) {
	lines := splitLines(text)
	switch len(lines) {
	case 2:
	case 3:
		lines = lines[1:]
	default:
		return OrbitalElements{}, &MalformedTLEError{
			Reason: fmt.Sprintf("expected 2 or 3 non-empty lines, got %d", len(lines)),
		}
	}
	return parseLines(lines[0], lines[1])
}

// parseLines decodes and validates a pair of element lines.
func parseLines(line1, line2 string) (OrbitalElements, error) {
	if !strings.HasPrefix(line1, "1") {
		return OrbitalElements{}, &MalformedTLEError{Line: 1, Reason: "must start with \"1\""}
	}
	if !strings.HasPrefix(line2, "2") {
		return OrbitalElements{}, &MalformedTLEError{Line: 2, Reason: "must start with \"2\""}
	}
	if len(line1) < minLine1Len {
		return OrbitalElements{}, &MalformedTLEError{
			Line:   1,
			Reason: fmt.Sprintf("too short: %d characters, need at least %d", len(line1), minLine1Len),
		}
	}
	if len(line2) < minLine2Len {
		return OrbitalElements{}, &MalformedTLEError{
			Line:   2,
			Reason: fmt.Sprintf("too short: %d characters, need at least %d", len(line2), minLine2Len),
		}
	}

	var (
		el  OrbitalElements
		err error
	)
	floats := []struct {
		spec fieldSpec
		dst  *float64
	}{
		{fieldEpoch, &el.Epoch},
		{fieldEpochDay, &el.EpochDay},
		{fieldMeanMotionDot, &el.MeanMotionDot},
		{fieldInclination, &el.Inclination},
		{fieldRAAN, &el.RAAN},
		{fieldEccentricity, &el.Eccentricity},
		{fieldArgPerigee, &el.ArgPerigee},
		{fieldMeanAnomaly, &el.MeanAnomaly},
		{fieldMeanMotion, &el.MeanMotion},
	}
	for _, f := range floats {
		if *f.dst, err = f.spec.float(line1, line2); err != nil {
			return OrbitalElements{}, err
		}
	}
	if el.EpochYear, err = fieldEpochYear.integer(line1, line2); err != nil {
		return OrbitalElements{}, err
	}

	if err := el.Validate(); err != nil {
		return OrbitalElements{}, err
	}
	return el.withDerived(), nil
}

func splitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r\t ")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Parse reads 3-line NORAD TLE format from r and returns parsed entries.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n\t ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i+2 < len(lines); {
		name := strings.TrimSpace(lines[i])
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resynchronize on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			metrics.IncTLEParseErrors("malformed")
			i++
			continue
		}
		i += 3

		el, err := parseLines(line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid elements", "name", name, "error", err)
			metrics.IncTLEParseErrors(ErrorKind(err))
			continue
		}
		noradID, err := fieldNORADID.integer(line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid NORAD ID", "name", name, "error", err)
			metrics.IncTLEParseErrors("field")
			continue
		}

		if !checksumOK(line1) || !checksumOK(line2) {
			logger.Debug("TLE checksum mismatch", "norad_id", noradID, "name", name)
		}

		entries = append(entries, Entry{
			NORADID:  noradID,
			Name:     name,
			Epoch:    el.EpochTime(),
			Line1:    line1,
			Line2:    line2,
			Elements: el,
		})
	}

	return entries, nil
}
