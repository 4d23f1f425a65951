package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/tracker"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLookupError maps tracker errors onto HTTP statuses.
func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tracker.ErrNoDataset):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// paramError is a client error in a query or path parameter.
type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s parameter: %s", e.name, e.msg)
}

func parseNORADID(r *http.Request) (int, error) {
	raw := r.PathValue("norad_id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, &paramError{name: "norad_id", msg: fmt.Sprintf("%q is not a positive integer", raw)}
	}
	return id, nil
}

// parseTime reads an RFC 3339 timestamp or Unix seconds. A missing value
// means now.
func parseTime(q url.Values, name string) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), nil
	}
	return time.Time{}, &paramError{name: name, msg: "want RFC 3339 or Unix seconds"}
}

func parseFloat(q url.Values, name string, def, min, max float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < min || f > max {
		return 0, &paramError{name: name, msg: fmt.Sprintf("must be a number in [%g, %g]", min, max)}
	}
	return f, nil
}

func parseInt(q url.Values, name string, def, min, max int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, &paramError{name: name, msg: fmt.Sprintf("must be an integer in [%d, %d]", min, max)}
	}
	return n, nil
}

// parseObserver reads lat and lon (required, degrees) and alt (optional,
// meters).
func parseObserver(q url.Values) (geo.Observer, error) {
	if q.Get("lat") == "" || q.Get("lon") == "" {
		return geo.Observer{}, &paramError{name: "lat/lon", msg: "both are required"}
	}
	lat, err := parseFloat(q, "lat", 0, -90, 90)
	if err != nil {
		return geo.Observer{}, err
	}
	lon, err := parseFloat(q, "lon", 0, -180, 180)
	if err != nil {
		return geo.Observer{}, err
	}
	alt, err := parseFloat(q, "alt", 0, -500, 9000)
	if err != nil {
		return geo.Observer{}, err
	}
	return geo.Observer{Latitude: lat, Longitude: lon, Altitude: alt}, nil
}
