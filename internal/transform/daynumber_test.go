package transform

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayNumberReferenceEpoch(t *testing.T) {
	assert.Equal(t, 0.0, DayNumber(31, 12, 1999, 0, 0, 0))
	assert.Equal(t, 1.0, DayNumber(1, 1, 2000, 0, 0, 0))
	assert.Equal(t, 1.5, DayNumber(1, 1, 2000, 12, 0, 0))
	assert.Equal(t, 8767.0, DayNumber(1, 1, 2024, 0, 0, 0))
	assert.Equal(t, 60.0, DayNumber(29, 2, 2000, 0, 0, 0))
	assert.Equal(t, 61.0, DayNumber(1, 3, 2000, 0, 0, 0))
}

func TestDayNumberTimeOfDay(t *testing.T) {
	base := DayNumber(14, 2, 2024, 0, 0, 0)
	assert.InDelta(t, base+0.25, DayNumber(14, 2, 2024, 6, 0, 0), 1e-12)
	assert.InDelta(t, base+1.0/1440, DayNumber(14, 2, 2024, 0, 1, 0), 1e-12)
	assert.InDelta(t, base+1.0/86400, DayNumber(14, 2, 2024, 0, 0, 1), 1e-12)
	assert.InDelta(t, base+0.5/86400, DayNumber(14, 2, 2024, 0, 0, 0.5), 1e-12)
}

func TestDayNumberDifferences(t *testing.T) {
	starts := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 31, 21, 30, 0, 0, time.UTC),
		time.Date(2024, 2, 28, 23, 59, 59, 0, time.UTC),
		time.Date(2057, 7, 4, 8, 15, 42, 0, time.UTC),
	}
	deltas := []float64{0, 0.125, 0.5, 1, 1.75, 29.0, 365.25, 1000.5}

	for _, t1 := range starts {
		for _, delta := range deltas {
			t2 := t1.Add(time.Duration(delta * 24 * float64(time.Hour)))
			got := DayNumberOf(t2) - DayNumberOf(t1)
			assert.InDelta(t, delta, got, 1e-9, "start %v delta %v", t1, delta)
		}
	}
}

func TestDayNumberOfMatchesJulianDate(t *testing.T) {
	// The day-number axis is the Julian date shifted by a constant.
	ts := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 14, 18, 0, 0, 0, time.UTC),
		time.Date(2056, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	for _, tt := range ts {
		assert.InDelta(t, JulianDate(tt)-2451543.5, DayNumberOf(tt), 1e-8, "at %v", tt)
	}
}

func TestEpochDayNumber(t *testing.T) {
	// 2024 day 45.5 is 2024-02-14 12:00 UT.
	assert.Equal(t, 8811.5, EpochDayNumber(2024, 45.5))
	assert.Equal(t, DayNumber(14, 2, 2024, 12, 0, 0), EpochDayNumber(2024, 45.5))
	assert.Equal(t, 1.0, EpochDayNumber(2000, 1.0))
	assert.InDelta(t, 9177.18032407, EpochDayNumber(2025, 45.18032407), 1e-9)
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 2, floorDiv(7, 3))
	assert.Equal(t, -3, floorDiv(-7, 3))
	assert.Equal(t, -3, floorDiv(7, -3))
	assert.Equal(t, 2, floorDiv(-7, -3))
	assert.Equal(t, 0, floorDiv(0, 5))
	assert.Equal(t, -1, floorDiv(-1, 12))
}

func TestRev(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{720, 0},
		{-360, 0},
		{45.25, 45.25},
		{359.5, 359.5},
		{-0.5, 359.5},
		{-90, 270},
		{1320.0566357486787 - 3*360, 240.05663574867870},
		{1e6 + 0.5, math.Mod(1e6+0.5, 360)},
	}

	for _, tt := range tests {
		got := Rev(tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "Rev(%v)", tt.in)
	}

	assert.False(t, math.Signbit(Rev(math.Copysign(0, -1))), "Rev(-0) must be +0")
}

func TestRevProperties(t *testing.T) {
	inputs := []float64{-1e7 - 0.25, -725.5, -360, -1e-13, 0, 0.125, 179.75, 359.875, 360, 1234.5, 9.87654321e8}

	for _, x := range inputs {
		r := Rev(x)
		require.GreaterOrEqual(t, r, 0.0, "Rev(%v)", x)
		require.Less(t, r, 360.0, "Rev(%v)", x)
		assert.Equal(t, r, Rev(r), "Rev must be idempotent for %v", x)

		for _, k := range []float64{-3, -1, 1, 2, 10} {
			assert.InDelta(t, r, Rev(x+360*k), 1e-6, "Rev(%v + 360·%v)", x, k)
		}
	}
}
