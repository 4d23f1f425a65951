package tle

import (
	"math"
	"time"

	"github.com/star/skysat/internal/transform"
)

// OrbitalElements is the decoded element set of one satellite. It is a value
// type: once parsed it is never mutated, so it can be shared across goroutines.
type OrbitalElements struct {
	Epoch          float64 // YYDDD.DDDDDDDD as written in the TLE
	EpochYear      int     // four-digit year, always 20YY
	EpochDay       float64 // fractional day of year, 1.0 = Jan 1 00:00 UT
	MeanMotionDot  float64 // first derivative of mean motion (rev/day²)
	Inclination    float64 // degrees
	RAAN           float64 // right ascension of the ascending node (degrees)
	Eccentricity   float64
	ArgPerigee     float64 // degrees
	MeanAnomaly    float64 // degrees
	MeanMotion     float64 // revolutions per day
	EpochDayNumber float64 // epoch on the transform.DayNumber axis
}

// EpochTime returns the element epoch as a UTC time.
func (el OrbitalElements) EpochTime() time.Time {
	start := time.Date(el.EpochYear, 1, 1, 0, 0, 0, 0, time.UTC)
	nanos := math.Round((el.EpochDay - 1) * 86400 * 1e9)
	return start.Add(time.Duration(nanos))
}

// Validate checks the physical ranges the propagator relies on.
func (el OrbitalElements) Validate() error {
	switch {
	case math.IsNaN(el.Eccentricity) || el.Eccentricity < 0 || el.Eccentricity >= 1:
		return &InvalidElementsError{Field: "eccentricity", Value: el.Eccentricity, Reason: "must be in [0, 1)"}
	case math.IsNaN(el.Inclination) || el.Inclination < 0 || el.Inclination > 180:
		return &InvalidElementsError{Field: "inclination", Value: el.Inclination, Reason: "must be in [0, 180]"}
	case math.IsNaN(el.MeanMotion) || el.MeanMotion <= 0:
		return &InvalidElementsError{Field: "mean_motion", Value: el.MeanMotion, Reason: "must be positive"}
	}
	return nil
}

// withDerived normalizes the angular elements and fills in the epoch day number.
func (el OrbitalElements) withDerived() OrbitalElements {
	el.RAAN = transform.Rev(el.RAAN)
	el.ArgPerigee = transform.Rev(el.ArgPerigee)
	el.MeanAnomaly = transform.Rev(el.MeanAnomaly)
	el.EpochDayNumber = transform.EpochDayNumber(el.EpochYear, el.EpochDay)
	return el
}

// Entry represents a single satellite's two-line element set in a catalog.
type Entry struct {
	NORADID  int
	Name     string
	Epoch    time.Time
	Line1    string
	Line2    string
	Elements OrbitalElements
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset represents a complete catalog of TLE data from a source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry
}

// NewDataset builds a dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: entries,
	}
	for i, e := range entries {
		if i == 0 || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}

// Find returns the entry with the given NORAD ID.
func (ds *Dataset) Find(noradID int) (Entry, bool) {
	for _, e := range ds.Satellites {
		if e.NORADID == noradID {
			return e, true
		}
	}
	return Entry{}, false
}
