package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/star/skysat/internal/cache"
	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/metrics"
	"github.com/star/skysat/internal/passes"
	"github.com/star/skysat/internal/tle"
	"github.com/star/skysat/internal/tracker"
)

const (
	maxTLEBodyBytes = 4096
	fetchTimeout    = 2 * time.Minute

	defaultPassHours   = 24
	maxPassHours       = 240
	defaultMinElev     = 10
	defaultMaxPasses   = 10
	maxPassesPerQuery  = 50
	defaultSkyLimit    = 50
	maxSkyLimit        = 1000
	maxTrackStepSecond = 86400
)

func indexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "skysat",
		"routes": []string{
			"GET /api/v1/tle/metadata",
			"POST /api/v1/tle/fetch",
			"GET /api/v1/satellites",
			"GET /api/v1/satellites/{norad_id}/position",
			"GET /api/v1/satellites/{norad_id}/track",
			"GET /api/v1/satellites/{norad_id}/distance",
			"GET /api/v1/satellites/{norad_id}/passes",
			"POST /api/v1/position",
			"GET /api/v1/sky",
			"GET /api/v1/cache/stats",
			"GET /api/v1/stream/satellites/{norad_id}",
			"GET /api/v1/ws/satellites/{norad_id}",
		},
	})
}

type tleMetadata struct {
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	AgeSeconds int       `json:"age_seconds"`
	Count      int       `json:"count"`
	EpochMin   time.Time `json:"epoch_min"`
	EpochMax   time.Time `json:"epoch_max"`
}

func metadataOf(ds *tle.Dataset) tleMetadata {
	return tleMetadata{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt.UTC(),
		AgeSeconds: int(time.Since(ds.FetchedAt).Seconds()),
		Count:      len(ds.Satellites),
		EpochMin:   ds.EpochRange.Min.UTC(),
		EpochMax:   ds.EpochRange.Max.UTC(),
	}
}

// GET /api/v1/tle/metadata
func tleMetadataHandler(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, tracker.ErrNoDataset.Error())
			return
		}
		writeJSON(w, http.StatusOK, metadataOf(ds))
	}
}

// POST /api/v1/tle/fetch
func tleFetchHandler(refresher *tle.Refresher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refresher == nil {
			writeError(w, http.StatusForbidden, "TLE fetch is disabled")
			return
		}

		// The download outlives a client hang-up.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), fetchTimeout)
		defer cancel()

		ds, err := refresher.Refresh(ctx)
		if err != nil {
			logger.Warn("manual TLE fetch failed", "component", "api", "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, metadataOf(ds))
	}
}

type satelliteSummary struct {
	NORADID int       `json:"norad_id"`
	Name    string    `json:"name"`
	Epoch   time.Time `json:"epoch"`
}

// GET /api/v1/satellites?q=starlink
func satellitesHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := tr.Entries()
		if err != nil {
			writeLookupError(w, err)
			return
		}

		filter := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
		out := make([]satelliteSummary, 0, len(entries))
		for _, e := range entries {
			if filter != "" && !strings.Contains(strings.ToLower(e.Name), filter) {
				continue
			}
			out = append(out, satelliteSummary{NORADID: e.NORADID, Name: e.Name, Epoch: e.Epoch.UTC()})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":      len(out),
			"satellites": out,
		})
	}
}

type positionResponse struct {
	NORADID int    `json:"norad_id"`
	Name    string `json:"name"`
	geo.Position
}

// GET /api/v1/satellites/{norad_id}/position?time=2025-02-14T12:00:00Z
func positionHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseNORADID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		at, err := parseTime(r.URL.Query(), "time")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		e, err := tr.Entry(id)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		pos, err := tr.Position(r.Context(), id, at)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, positionResponse{NORADID: id, Name: e.Name, Position: pos})
	}
}

// GET /api/v1/satellites/{norad_id}/track?start=...&count=24&step=3600
func trackHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseNORADID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q := r.URL.Query()
		start, err := parseTime(q, "start")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		count, err := parseInt(q, "count", tracker.DefaultTrackSamples, 1, tracker.MaxTrackSamples)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		stepSec, err := parseFloat(q, "step", tracker.DefaultTrackStep.Seconds(), 1, maxTrackStepSecond)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		step := time.Duration(stepSec * float64(time.Second))

		e, err := tr.Entry(id)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		track, err := tr.Track(r.Context(), id, start, count, step)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"norad_id":     id,
			"name":         e.Name,
			"step_seconds": step.Seconds(),
			"positions":    track,
		})
	}
}

// GET /api/v1/satellites/{norad_id}/distance?lat=..&lon=..&time=..
func distanceHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseNORADID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q := r.URL.Query()
		obs, err := parseObserver(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		at, err := parseTime(q, "time")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		o, err := tr.Distance(r.Context(), id, at, obs)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// GET /api/v1/satellites/{norad_id}/passes?lat=..&lon=..&hours=24&min_elevation=10&max=10
func passesHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseNORADID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q := r.URL.Query()
		obs, err := parseObserver(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start, err := parseTime(q, "start")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		hours, err := parseFloat(q, "hours", defaultPassHours, 0.1, maxPassHours)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		minElev, err := parseFloat(q, "min_elevation", defaultMinElev, 0, 90)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		maxPasses, err := parseInt(q, "max", defaultMaxPasses, 1, maxPassesPerQuery)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		e, err := tr.Entry(id)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		result, err := tr.Passes(r.Context(), id, tracker.PassQuery{
			Observer:     obs,
			Start:        start,
			HorizonHours: hours,
			MinElevation: minElev,
			MaxPasses:    maxPasses,
		})
		if err != nil {
			writeLookupError(w, err)
			return
		}
		if result == nil {
			result = []passes.PassEvent{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"norad_id": id,
			"name":     e.Name,
			"observer": obs,
			"passes":   result,
		})
	}
}

type elementsSummary struct {
	Epoch         time.Time `json:"epoch"`
	Inclination   float64   `json:"inclination"`
	RAAN          float64   `json:"raan"`
	Eccentricity  float64   `json:"eccentricity"`
	ArgPerigee    float64   `json:"arg_perigee"`
	MeanAnomaly   float64   `json:"mean_anomaly"`
	MeanMotion    float64   `json:"mean_motion"`
	MeanMotionDot float64   `json:"mean_motion_dot"`
}

// POST /api/v1/position?time=..  body: 2- or 3-line TLE text
func rawPositionHandler(tr *tracker.Tracker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := parseTime(r.URL.Query(), "time")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTLEBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "TLE body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
			return
		}

		el, err := tle.ParseElements(string(body))
		if err != nil {
			kind := tle.ErrorKind(err)
			metrics.IncTLEParseErrors(kind)
			logger.Debug("rejected TLE", "component", "api", "kind", kind, "error", err)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": err.Error(),
				"kind":  kind,
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"elements": elementsSummary{
				Epoch:         el.EpochTime(),
				Inclination:   el.Inclination,
				RAAN:          el.RAAN,
				Eccentricity:  el.Eccentricity,
				ArgPerigee:    el.ArgPerigee,
				MeanAnomaly:   el.MeanAnomaly,
				MeanMotion:    el.MeanMotion,
				MeanMotionDot: el.MeanMotionDot,
			},
			"position": tr.Project(el, at),
		})
	}
}

// GET /api/v1/sky?lat=..&lon=..&time=..&min_elevation=0&limit=50
func skyHandler(tr *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		obs, err := parseObserver(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		at, err := parseTime(q, "time")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		minElev, err := parseFloat(q, "min_elevation", 0, -90, 90)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit, err := parseInt(q, "limit", defaultSkyLimit, 1, maxSkyLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		sky, err := tr.Sky(r.Context(), obs, at, minElev)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		total := len(sky)
		if len(sky) > limit {
			sky = sky[:limit]
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"observer":   obs,
			"time":       at,
			"total":      total,
			"count":      len(sky),
			"satellites": sky,
		})
	}
}

// GET /api/v1/cache/stats
func cacheStatsHandler(positions *cache.PositionCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if positions == nil || !positions.Enabled() {
			writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Enabled bool `json:"enabled"`
			cache.Stats
		}{Enabled: true, Stats: positions.Stats()})
	}
}
