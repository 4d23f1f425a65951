package main

import (
	"math"
	"testing"
)

func TestSeparation(t *testing.T) {
	tests := []struct {
		ra1, dec1, ra2, dec2, want float64
	}{
		{0, 0, 0, 0, 0},
		{0, 0, 90, 0, 90},
		{10, 90, 200, 90, 0},
		{359.5, 0, 0.5, 0, 1},
		{0, -45, 180, -45, 90},
	}
	for _, tt := range tests {
		got := separation(tt.ra1, tt.dec1, tt.ra2, tt.dec2)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("separation(%v, %v, %v, %v) = %v, want %v", tt.ra1, tt.dec1, tt.ra2, tt.dec2, got, tt.want)
		}
	}
}
