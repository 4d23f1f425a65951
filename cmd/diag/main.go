// Command diag compares the analytic propagator with the SGP4 reference for
// every satellite in a TLE file at one instant, and optionally lists passes
// over an observer.
//
//	diag -tle /tmp/skysat/tle/catalog_1739534400.tle -time 2025-02-14T12:00:00Z -n 20
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/orbit"
	"github.com/star/skysat/internal/passes"
	"github.com/star/skysat/internal/tle"
	"github.com/star/skysat/internal/transform"
)

func main() {
	var (
		path    = flag.String("tle", "", "TLE file (3-line format)")
		at      = flag.String("time", "", "instant in RFC 3339 (default now)")
		limit   = flag.Int("n", 10, "satellites to compare (0 = all)")
		lat     = flag.Float64("lat", math.NaN(), "observer latitude for pass listing")
		lon     = flag.Float64("lon", math.NaN(), "observer longitude for pass listing")
		horizon = flag.Float64("hours", 24, "pass prediction horizon in hours")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: diag -tle FILE [-time RFC3339] [-n N] [-lat DEG -lon DEG]")
		os.Exit(2)
	}

	t := time.Now().UTC()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			fmt.Println("ERROR parsing -time:", err)
			os.Exit(1)
		}
		t = parsed.UTC()
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Println("ERROR reading TLE file:", err)
		os.Exit(1)
	}
	entries, err := tle.Parse(bytes.NewReader(data), logger)
	if err != nil {
		fmt.Println("ERROR parsing TLE:", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d TLE entries\n", len(entries))
	if len(entries) == 0 {
		return
	}

	fmt.Printf("Instant: %s  JD %.6f (meeus %.6f)  GMST %.6f°\n",
		t.Format(time.RFC3339), transform.JulianDate(t), julian.TimeToJD(t), transform.GMST(t, 0))

	subset := entries
	if *limit > 0 && *limit < len(subset) {
		subset = subset[:*limit]
	}

	prop := orbit.DefaultPropagator()
	proj := geo.CorrectedProjector()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "NORAD\tRA\tDec\tr km\tSGP4 RA\tSGP4 Dec\tSGP4 r km\tsep°\tΔr km\tlat\tlon\talt km\t")

	var sumSep, maxSep float64
	var compared int
	for _, e := range subset {
		st := prop.Propagate(e.Elements, t)
		pos := proj.Project(st)

		ref, err := orbit.NewReference(e.Line1, e.Line2, e.NORADID)
		if err != nil {
			fmt.Printf("  NORAD %d: ERROR %v\n", e.NORADID, err)
			continue
		}
		rs, err := ref.Propagate(t)
		if err != nil {
			fmt.Printf("  NORAD %d: SGP4 ERROR %v\n", e.NORADID, err)
			continue
		}

		sep := separation(st.RA, st.Dec, rs.RA, rs.Dec)
		sumSep += sep
		maxSep = math.Max(maxSep, sep)
		compared++

		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%.1f\t%.3f\t%.3f\t%.1f\t%.3f\t%.1f\t%.3f\t%.3f\t%.1f\t\n",
			e.NORADID, st.RA, st.Dec, st.Radius, rs.RA, rs.Dec, rs.Radius, sep, st.Radius-rs.Radius,
			pos.Latitude, pos.Longitude, pos.Altitude)
	}
	tw.Flush()

	if compared > 0 {
		fmt.Printf("\nCompared %d satellites: mean separation %.3f°, max %.3f°\n", compared, sumSep/float64(compared), maxSep)
	}

	if math.IsNaN(*lat) || math.IsNaN(*lon) {
		return
	}

	obs := geo.Observer{Latitude: *lat, Longitude: *lon}
	fmt.Printf("\nPasses over (%.4f, %.4f) in the next %.0f h:\n", *lat, *lon, *horizon)
	totalPasses := 0
	for _, e := range subset {
		found, err := passes.Predict(context.Background(), prop, passes.Request{
			Observer:     obs,
			Elements:     e.Elements,
			Start:        t,
			HorizonHours: *horizon,
			MinElevation: 10,
			MaxPasses:    10,
		})
		if err != nil {
			fmt.Printf("  NORAD %d: ERROR %v\n", e.NORADID, err)
			continue
		}
		fmt.Printf("  NORAD %d %s: %d passes\n", e.NORADID, e.Name, len(found))
		totalPasses += len(found)
		for j, p := range found {
			fmt.Printf("    pass %d: start=%v maxEl=%.1f° dur=%.0fs\n",
				j, p.StartTime.Format(time.RFC3339), p.MaxElevation, p.DurationSeconds)
		}
	}
	fmt.Printf("\nTotal passes found: %d\n", totalPasses)
}

// separation returns the great-circle angle in degrees between two
// equatorial directions.
func separation(ra1, dec1, ra2, dec2 float64) float64 {
	const d2r = transform.Deg2Rad
	cos := math.Sin(dec1*d2r)*math.Sin(dec2*d2r) +
		math.Cos(dec1*d2r)*math.Cos(dec2*d2r)*math.Cos((ra1-ra2)*d2r)
	return math.Acos(math.Max(-1, math.Min(1, cos))) * transform.Rad2Deg
}
