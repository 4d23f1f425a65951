package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the limiter map. When it fills up the map is
// dropped and every client starts again with a full bucket.
const maxTrackedIPs = 10000

// IPRateLimiter hands out one token-bucket limiter per client IP.
type IPRateLimiter struct {
	mu  sync.Mutex
	ips map[string]*rate.Limiter
	r   rate.Limit
	b   int
}

// NewIPRateLimiter allows rps requests per second per IP with bursts of burst.
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   rate.Limit(rps),
		b:   burst,
	}
}

// Limiter returns the limiter for ip, creating it on first use.
func (l *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.ips[ip]
	if !ok {
		if len(l.ips) >= maxTrackedIPs {
			l.ips = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.r, l.b)
		l.ips[ip] = limiter
	}
	return limiter
}

// Allow reports whether ip may make a request now.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.Limiter(ip).Allow()
}

// Tracked returns the number of IPs with a live limiter.
func (l *IPRateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}

// RateLimitMiddleware rejects requests over the per-IP rate with 429.
// A nil limiter disables limiting. Probe and metrics paths are never limited.
func RateLimitMiddleware(l *IPRateLimiter, trustProxy bool, onReject func(ip string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r, trustProxy)
			if !l.Allow(ip) {
				if onReject != nil {
					onReject(ip)
				}
				retry := 1
				if l.r > 0 && float64(l.r) < 1 {
					retry = int(1/float64(l.r)) + 1
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
