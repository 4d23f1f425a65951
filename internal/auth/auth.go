// Package auth guards the API with a single static bearer token.
//
// Browsers cannot attach headers to EventSource or WebSocket handshakes, so
// the token is also accepted as the access_token query parameter.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
	// PublicPrefixes lists extra path prefixes served without a token,
	// e.g. "/api/v1/satellites/" to keep position lookups open.
	PublicPrefixes []string
}

// publicPaths never require a token.
var publicPaths = map[string]bool{
	"/":                    true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
}

func (cfg Config) public(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, prefix := range cfg.PublicPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// presentedToken returns the bearer token from the Authorization header,
// falling back to the access_token query parameter.
func presentedToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}

// Authorized reports whether r may reach a protected route.
func (cfg Config) Authorized(r *http.Request) bool {
	if !cfg.Enabled || cfg.public(r.URL.Path) {
		return true
	}
	token := presentedToken(r)
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) == 1
}

// Middleware rejects unauthorized requests with 401.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Authorized(r) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="skysat"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
