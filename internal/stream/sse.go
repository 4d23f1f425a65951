// Package stream pushes live positions of one satellite to clients over
// Server-Sent Events or WebSocket. The satellite is re-propagated every
// interval until the client disconnects.
//
// SSE wire format:
//
//	retry: 4123
//
//	data: {"type":"metadata","norad_id":25544,"name":"ISS (ZARYA)",...}
//
//	data: {"type":"position","norad_id":25544,"position":{"ra":...}}
//
// Keep-alive comments (:\n\n) are sent when no position went out for
// KeepaliveInterval. WebSocket clients receive the same JSON messages as
// text frames.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/star/skysat/internal/geo"
	"github.com/star/skysat/internal/httputil"
	"github.com/star/skysat/internal/metrics"
	"github.com/star/skysat/internal/tle"
	"github.com/star/skysat/internal/tracker"
)

const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"

	minInterval = time.Second
	maxInterval = time.Minute
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // default 10
	MaxConcurrent      int           // global cap, default 1000
	Interval           time.Duration // default update period, 1s
	KeepaliveInterval  time.Duration // default 30s
	TrustProxy         bool
}

// Handler serves the SSE and WebSocket position feeds.
type Handler struct {
	tracker *tracker.Tracker
	store   *tle.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a streaming handler. Zero config fields take defaults.
func NewHandler(tr *tracker.Tracker, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		tracker: tr,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

// Active returns the number of open streams across both transports.
func (h *Handler) Active() int {
	return h.limiter.active()
}

// subscription is a validated stream request.
type subscription struct {
	entry    tle.Entry
	interval time.Duration
	ip       string
}

// HandleSSE serves GET /api/v1/stream/satellites/{norad_id}?interval=1.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subscribe(w, r, transportSSE)
	if !ok {
		return
	}
	defer h.unsubscribe(sub, transportSSE, time.Now())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &sseClient{
		w:       w,
		flusher: flusher,
		rc:      rc,
		logger:  h.logger,
	}

	// Jittered retry (3-7s) spreads reconnects after a server restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if err := c.sendJSON(h.metadata(sub)); err != nil {
		metrics.IncStreamRejected("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", sub.ip, "error", err)
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(sub.interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	send := func(t time.Time) bool {
		msg, err := h.position(ctx, sub, t)
		if err != nil {
			h.logger.Warn("stream propagation failed", "norad_id", sub.entry.NORADID, "error", err)
			return false
		}
		if err := c.sendJSON(msg); err != nil {
			metrics.IncStreamRejected("send_error")
			h.logger.Warn("stream send error", "remote_ip", sub.ip, "error", err)
			return false
		}
		keepalive.Reset(h.config.KeepaliveInterval)
		return true
	}

	if !send(time.Now()) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if !send(t) {
				return
			}
		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamRejected("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", sub.ip, "error", err)
				return
			}
		}
	}
}

// subscribe validates the request and takes a limiter slot. On failure it
// has already written the error response.
func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request, transport string) (subscription, bool) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid NORAD ID")
		return subscription{}, false
	}

	interval := h.config.Interval
	if v := r.URL.Query().Get("interval"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		d := time.Duration(secs * float64(time.Second))
		if err != nil || d < minInterval || d > maxInterval {
			writeError(w, http.StatusBadRequest, "invalid interval parameter, must be 1-60 seconds")
			return subscription{}, false
		}
		interval = d
	}

	entry, err := h.tracker.Entry(id)
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return subscription{}, false
	case errors.Is(err, tracker.ErrNoDataset):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return subscription{}, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return subscription{}, false
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if ok, reason := h.limiter.acquire(ip); !ok {
		metrics.IncStreamRejected(reason)
		h.logger.Warn("stream limit exceeded",
			"remote_ip", ip,
			"reason", reason,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return subscription{}, false
	}

	metrics.StreamOpened(transport)
	h.logger.Info("stream connected",
		"transport", transport,
		"remote_ip", ip,
		"norad_id", id,
		"interval_ms", interval.Milliseconds(),
		"user_agent", r.Header.Get("User-Agent"),
	)
	return subscription{entry: entry, interval: interval, ip: ip}, true
}

func (h *Handler) unsubscribe(sub subscription, transport string, started time.Time) {
	h.limiter.release(sub.ip)
	metrics.StreamClosed(transport)
	h.logger.Info("stream disconnected",
		"transport", transport,
		"remote_ip", sub.ip,
		"norad_id", sub.entry.NORADID,
		"duration_seconds", int(time.Since(started).Seconds()),
	)
}

func (h *Handler) metadata(sub subscription) metadataMessage {
	msg := metadataMessage{
		Type:       "metadata",
		NORADID:    sub.entry.NORADID,
		Name:       sub.entry.Name,
		TLEEpoch:   sub.entry.Epoch.UTC().Format(time.RFC3339),
		IntervalMs: sub.interval.Milliseconds(),
	}
	if ds := h.store.Get(); ds != nil {
		msg.DatasetFetchedAt = ds.FetchedAt.UTC().Format(time.RFC3339)
		msg.TLEAge = int(time.Since(ds.FetchedAt).Seconds())
	}
	return msg
}

func (h *Handler) position(ctx context.Context, sub subscription, t time.Time) (positionMessage, error) {
	pos, err := h.tracker.Position(ctx, sub.entry.NORADID, t)
	if err != nil {
		return positionMessage{}, err
	}
	return positionMessage{Type: "position", NORADID: sub.entry.NORADID, Position: pos}, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Stream message payload types.

type metadataMessage struct {
	Type             string `json:"type"`
	NORADID          int    `json:"norad_id"`
	Name             string `json:"name"`
	TLEEpoch         string `json:"tle_epoch"`
	DatasetFetchedAt string `json:"dataset_fetched_at,omitempty"`
	TLEAge           int    `json:"tle_age_seconds"`
	IntervalMs       int64  `json:"interval_ms"`
}

type positionMessage struct {
	Type     string       `json:"type"`
	NORADID  int          `json:"norad_id"`
	Position geo.Position `json:"position"`
}
