package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/star/skysat/internal/metrics"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Cross-origin browser clients are allowed; auth is enforced by the
// middleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket serves GET /api/v1/ws/satellites/{norad_id}?interval=1.
// Sends are paced by a token bucket of one message per interval.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subscribe(w, r, transportWebSocket)
	if !ok {
		return
	}
	defer h.unsubscribe(sub, transportWebSocket, time.Now())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.IncStreamRejected("upgrade_error")
		h.logger.Warn("websocket upgrade failed", "remote_ip", sub.ip, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read loop only handles control frames; it ends the stream when
	// the client goes away.
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v any) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(v); err != nil {
			return err
		}
		metrics.IncStreamMessages(transportWebSocket)
		return nil
	}

	if err := send(h.metadata(sub)); err != nil {
		h.logger.Warn("websocket send error (metadata)", "remote_ip", sub.ip, "error", err)
		return
	}

	limiter := rate.NewLimiter(rate.Every(sub.interval), 1)
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		select {
		case <-ping.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				h.logger.Debug("websocket ping failed", "remote_ip", sub.ip, "error", err)
				return
			}
		default:
		}

		msg, err := h.position(ctx, sub, time.Now())
		if err != nil {
			h.logger.Warn("stream propagation failed", "norad_id", sub.entry.NORADID, "error", err)
			break
		}
		if err := send(msg); err != nil {
			metrics.IncStreamRejected("send_error")
			h.logger.Warn("websocket send error", "remote_ip", sub.ip, "error", err)
			return
		}
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
