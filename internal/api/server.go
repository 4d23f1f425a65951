// Package api serves the satellite position engine over HTTP.
package api

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/star/skysat/internal/auth"
	"github.com/star/skysat/internal/cache"
	"github.com/star/skysat/internal/health"
	"github.com/star/skysat/internal/httputil"
	"github.com/star/skysat/internal/metrics"
	"github.com/star/skysat/internal/stream"
	"github.com/star/skysat/internal/tle"
	"github.com/star/skysat/internal/tracker"
)

// Config holds the HTTP surface configuration.
type Config struct {
	Addr           string
	Auth           auth.Config
	TrustProxy     bool
	RateLimitRPS   float64 // <= 0 disables request rate limiting
	RateLimitBurst int
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. positions, refresher and
// streams may be nil: cache stats then report disabled, TLE fetch answers
// 403 and the stream routes are not registered.
func NewServer(cfg Config, logger *slog.Logger, store *tle.Store, tr *tracker.Tracker, positions *cache.PositionCache, refresher *tle.Refresher, streams *stream.Handler) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", indexHandler)
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(store))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/tle/metadata", tleMetadataHandler(store))
	mux.HandleFunc("POST /api/v1/tle/fetch", tleFetchHandler(refresher, logger))
	mux.HandleFunc("GET /api/v1/satellites", satellitesHandler(tr))
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/position", positionHandler(tr))
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/track", trackHandler(tr))
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/distance", distanceHandler(tr))
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/passes", passesHandler(tr))
	mux.HandleFunc("POST /api/v1/position", rawPositionHandler(tr, logger))
	mux.HandleFunc("GET /api/v1/sky", skyHandler(tr))
	mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(positions))

	if streams != nil {
		mux.HandleFunc("GET /api/v1/stream/satellites/{norad_id}", streams.HandleSSE)
		mux.HandleFunc("GET /api/v1/ws/satellites/{norad_id}", streams.HandleWebSocket)
	}

	var limiter *httputil.IPRateLimiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = httputil.NewIPRateLimiter(cfg.RateLimitRPS, burst)
	}
	onReject := func(ip string) {
		logger.Debug("request rate limited", "component", "api", "remote_ip", ip)
	}

	// Build middleware chain: metrics -> logging -> rate limit -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = httputil.RateLimitMiddleware(limiter, cfg.TrustProxy, onReject)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
