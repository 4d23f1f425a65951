// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysat_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skysat_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysat_propagations_total",
			Help: "Number of element sets propagated, by operation.",
		},
		[]string{"operation"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skysat_propagation_duration_seconds",
			Help:    "Time spent propagating and projecting a single position.",
			Buckets: []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3},
		},
	)

	tleParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysat_tle_parse_errors_total",
			Help: "TLE parse failures on request input, by error kind.",
		},
		[]string{"kind"},
	)

	tleFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysat_tle_fetches_total",
			Help: "TLE catalog fetch attempts, by result.",
		},
		[]string{"result"},
	)

	tleDatasetCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skysat_tle_dataset_satellites",
		Help: "Number of satellites in the loaded TLE dataset.",
	})

	tleDatasetAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skysat_tle_dataset_age_seconds",
		Help: "Seconds since the loaded TLE dataset was fetched.",
	})

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skysat_cache_hits_total",
		Help: "Position cache hits.",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skysat_cache_misses_total",
		Help: "Position cache misses.",
	})

	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skysat_cache_evictions_total",
		Help: "Position cache entries evicted.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skysat_cache_entries",
		Help: "Number of cached positions.",
	})

	cacheSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skysat_cache_size_bytes",
		Help: "Estimated memory held by the position cache.",
	})

	streamsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skysat_streams_active",
			Help: "Open position streams, by transport.",
		},
		[]string{"transport"},
	)

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysat_stream_messages_total",
			Help: "Position messages sent to stream clients, by transport.",
		},
		[]string{"transport"},
	)

	streamRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skysat_stream_rejected_total",
			Help: "Stream connections refused, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationsTotal,
		propagationDurationSeconds,
		tleParseErrorsTotal,
		tleFetchesTotal,
		tleDatasetCount,
		tleDatasetAge,
		cacheHits,
		cacheMisses,
		cacheEvictions,
		cacheEntries,
		cacheSizeBytes,
		streamsActive,
		streamMessagesTotal,
		streamRejectedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePropagation records one propagation for the named operation.
func ObservePropagation(operation string, d time.Duration) {
	propagationsTotal.WithLabelValues(operation).Inc()
	propagationDurationSeconds.Observe(d.Seconds())
}

// IncTLEParseErrors counts a rejected TLE of the given error kind.
func IncTLEParseErrors(kind string) { tleParseErrorsTotal.WithLabelValues(kind).Inc() }

// IncTLEFetch counts a catalog fetch with result "success" or "error".
func IncTLEFetch(result string) { tleFetchesTotal.WithLabelValues(result).Inc() }

// SetTLEDatasetCount sets the number of satellites in the current dataset.
func SetTLEDatasetCount(n int) { tleDatasetCount.Set(float64(n)) }

// SetTLEDatasetAge sets the current dataset age in seconds.
func SetTLEDatasetAge(seconds float64) { tleDatasetAge.Set(seconds) }

func IncCacheHits() { cacheHits.Inc() }
func IncCacheMisses() { cacheMisses.Inc() }
func AddCacheEvictions(n int) { cacheEvictions.Add(float64(n)) }
func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }
func SetCacheSizeBytes(n int64) { cacheSizeBytes.Set(float64(n)) }

// StreamOpened and StreamClosed track open streams per transport ("sse", "ws").
func StreamOpened(transport string) { streamsActive.WithLabelValues(transport).Inc() }
func StreamClosed(transport string) { streamsActive.WithLabelValues(transport).Dec() }

// IncStreamMessages counts one message sent on the given transport.
func IncStreamMessages(transport string) { streamMessagesTotal.WithLabelValues(transport).Inc() }

// IncStreamRejected counts a refused stream connection.
func IncStreamRejected(reason string) { streamRejectedTotal.WithLabelValues(reason).Inc() }

// exactRoutes are served as-is; everything else is matched by prefix or
// collapsed to "other" to bound label cardinality.
var exactRoutes = map[string]bool{
	"/":                    true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
	"/api/v1/tle/fetch":    true,
	"/api/v1/satellites":   true,
	"/api/v1/position":     true,
	"/api/v1/sky":          true,
	"/api/v1/cache/stats":  true,
}

var satelliteActions = map[string]bool{
	"position": true,
	"track":    true,
	"distance": true,
	"passes":   true,
}

// normalizeRoute maps a request path to a bounded route label.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/satellites/"); ok {
		id, action, found := strings.Cut(rest, "/")
		if found && isNumeric(id) && satelliteActions[action] {
			return "/api/v1/satellites/{norad_id}/" + action
		}
		return "other"
	}

	for _, prefix := range []string{"/api/v1/stream/satellites/", "/api/v1/ws/satellites/"} {
		if id, ok := strings.CutPrefix(path, prefix); ok && isNumeric(id) {
			return prefix + "{norad_id}"
		}
	}

	return "other"
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
